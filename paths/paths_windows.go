// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package paths

import (
	"os"
	"path/filepath"
)

func init() {
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
		if dir := os.Getenv(env); dir != "" {
			cliCandidates = append(cliCandidates, filepath.Join(dir, "Tailscale", "tailscale.exe"))
		}
	}
}
