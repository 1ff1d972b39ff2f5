// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package systray

import (
	"sync"

	"golang.org/x/sys/windows/registry"
)

// darkMode reports whether Windows apps use the dark theme, in which
// case the taskbar icon is drawn light on dark.
var darkMode = sync.OnceValue(func() bool {
	k, err := registry.OpenKey(registry.CURRENT_USER, `Software\Microsoft\Windows\CurrentVersion\Themes\Personalize`, registry.QUERY_VALUE)
	if err != nil {
		return false // assume light mode
	}
	defer k.Close()

	v, _, err := k.GetIntegerValue("SystemUsesLightTheme")
	if err != nil {
		return false
	}
	return v == 0
})
