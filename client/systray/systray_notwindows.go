// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !windows

package systray

// darkMode reports whether to draw the icon light on dark. Linux panels
// are dark far more often than not.
func darkMode() bool { return true }
