// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package paths

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())
	got := DefaultConfigFile()
	if got == "" {
		t.Fatal("DefaultConfigFile returned empty string")
	}
	if base := filepath.Base(got); base != "tailtray.hujson" {
		t.Errorf("base name = %q; want tailtray.hujson", base)
	}
	if dir := filepath.Base(filepath.Dir(got)); dir != AppName {
		t.Errorf("parent dir = %q; want %q", dir, AppName)
	}
}

func TestDefaultCLIPathFallback(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	old := cliCandidates
	cliCandidates = []string{filepath.Join(t.TempDir(), "missing", "tailscale")}
	t.Cleanup(func() { cliCandidates = old })

	if got := DefaultCLIPath(); got != "tailscale" {
		t.Errorf("DefaultCLIPath = %q; want %q", got, "tailscale")
	}
}
