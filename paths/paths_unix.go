// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !windows && !wasm && !plan9

package paths

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func init() {
	isExecutable = isExecutableUnix
	switch runtime.GOOS {
	case "darwin":
		cliCandidates = []string{
			"/Applications/Tailscale.app/Contents/MacOS/Tailscale",
			"/opt/homebrew/bin/tailscale",
			"/usr/local/bin/tailscale",
		}
	case "freebsd", "openbsd":
		cliCandidates = []string{"/usr/local/bin/tailscale"}
	default:
		cliCandidates = []string{
			"/usr/bin/tailscale",
			"/usr/local/bin/tailscale",
			"/usr/sbin/tailscale",
			"/snap/bin/tailscale",
		}
	}
}

func isExecutableUnix(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}
