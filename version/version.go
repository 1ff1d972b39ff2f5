// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package version provides the version that the binary was built at.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// base is the release this tree builds, used when the linker does not
// stamp Short and Long.
const base = "0.1.0"

var (
	// Long is a full version number for this build. Release builds set
	// it with -ldflags "-X github.com/tailtray/tailtray/version.Long=...".
	// Otherwise it is of the form "0.1.0-dev20250316-t29837428937{,-dirty}",
	// derived from the Go toolchain's VCS stamping.
	Long string

	// Short is like Long, ending at the date part for development builds.
	Short string

	// GitCommit, if non-empty, is the git commit this binary was built at.
	GitCommit string

	// GitDirty is whether Go stamped the binary as having uncommitted
	// changes.
	GitDirty bool
)

func init() {
	initVersion()
}

func initVersion() {
	if Long != "" && Short != "" {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		Long = base + "-ERR-BuildInfo"
		Short = Long
		return
	}
	short, long := fromBuildInfo(bi)
	if Short == "" {
		Short = short
	}
	if Long == "" {
		Long = long
	}
}

// fromBuildInfo derives development version strings from bi and records
// the VCS settings it finds.
func fromBuildInfo(bi *debug.BuildInfo) (short, long string) {
	var dirty string
	var commitDate string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			GitCommit = s.Value
		case "vcs.time":
			if len(s.Value) >= len("yyyy-mm-dd") {
				commitDate = strings.ReplaceAll(s.Value[:len("yyyy-mm-dd")], "-", "")
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "-dirty"
				GitDirty = true
			}
		}
	}
	if GitCommit == "" {
		return base + "-dev", base + "-dev"
	}
	abbrev := GitCommit
	if len(abbrev) >= 9 {
		abbrev = abbrev[:9]
	}
	short = base + "-dev" + commitDate
	return short, short + "-t" + abbrev + dirty
}

// Meta is a JSON-serializable description of this build.
type Meta struct {
	// Short is Short.
	Short string `json:"short"`

	// Long is Long.
	Long string `json:"long"`

	// GitCommit is GitCommit, with a "-dirty" suffix if GitDirty.
	GitCommit string `json:"gitCommit,omitempty"`

	// GoVersion is the Go toolchain that built the binary.
	GoVersion string `json:"goVersion"`

	// CLILong is the version reported by `tailscale version`, if it was
	// queried.
	CLILong string `json:"cliLong,omitempty"`
}

// GetMeta returns version metadata about the current build.
func GetMeta() Meta {
	m := Meta{
		Short:     Short,
		Long:      Long,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
	if GitCommit != "" && GitDirty {
		m.GitCommit += "-dirty"
	}
	return m
}

// String returns a multi-line description of the build, as printed by
// `tailtray version`.
func String() string {
	var ret strings.Builder
	ret.WriteString(Short)
	ret.WriteByte('\n')
	if GitCommit != "" {
		var dirty string
		if GitDirty {
			dirty = "-dirty"
		}
		fmt.Fprintf(&ret, "  commit: %s%s\n", GitCommit, dirty)
	}
	fmt.Fprintf(&ret, "  go version: %s\n", runtime.Version())
	return strings.TrimSpace(ret.String())
}
