// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package paths returns platform and user-specific default paths to
// the tailscale binary and tailtray's own files.
package paths

import (
	"os"
	"os/exec"
	"path/filepath"
)

// AppName is the directory and file stem used for tailtray's own files.
const AppName = "tailtray"

// cliCandidates is the list of locations where the tailscale CLI is
// commonly installed, tried in order after $PATH. It is set per platform.
var cliCandidates []string

// isExecutable reports whether path names an executable file. It is set
// per platform.
var isExecutable = func(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// DefaultCLIPath returns the path of the tailscale binary to run.
//
// It looks in $PATH first, then in the platform's usual install
// locations. If nothing is found it returns "tailscale", so that the
// failure is reported when the binary is actually executed.
func DefaultCLIPath() string {
	if p, err := exec.LookPath("tailscale"); err == nil {
		return p
	}
	for _, p := range cliCandidates {
		if isExecutable(p) {
			return p
		}
	}
	return "tailscale"
}

// ConfigDir returns the directory holding tailtray's config file,
// creating nothing.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName)
}

// DefaultConfigFile returns the path of the HuJSON config file,
// or the empty string if the user's config directory is unknown.
func DefaultConfigFile() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, AppName+".hujson")
}
