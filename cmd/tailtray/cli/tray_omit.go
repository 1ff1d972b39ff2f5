// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !cgo && darwin

package cli

import (
	"context"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
)

var trayHelp = strings.TrimSpace(`
The tray icon is not included in this build; macOS builds need cgo.
Use "tailtray window" for the status window instead.
`)

func trayCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "tray",
		ShortUsage: "tailtray tray",
		ShortHelp:  "Not available in this build",
		LongHelp:   trayHelp,
		Exec:       runTray,
	}
}

func runTray(context.Context, []string) error {
	outln(trayHelp)
	return nil
}
