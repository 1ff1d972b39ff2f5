// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/client/systray"
)

func installAutostartCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "install-autostart",
		ShortUsage: "tailtray install-autostart [--init=systemd|freedesktop]",
		ShortHelp:  "Start the tray when you log in",
		LongHelp: strings.TrimSpace(`
The install-autostart command installs a per-user systemd service or a
freedesktop autostart entry that runs "tailtray tray" at login.
`),
		Exec: runInstallAutostart,
		FlagSet: (func() *flag.FlagSet {
			fs := newFlagSet("install-autostart")
			fs.StringVar(&autostartArgs.initSystem, "init", "", `init system to install for: "systemd" or "freedesktop" (default: systemd if running)`)
			return fs
		})(),
	}
}

var autostartArgs struct {
	initSystem string
}

func runInstallAutostart(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("too many non-flag arguments: %q", args)
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "freebsd" && runtime.GOOS != "openbsd" {
		return fmt.Errorf("install-autostart is not supported on %s", runtime.GOOS)
	}
	initSystem := autostartArgs.initSystem
	if initSystem == "" {
		initSystem = detectInitSystem()
	}
	return systray.InstallStartupScript(initSystem)
}

// detectInitSystem returns "systemd" if systemd is the running init
// system and "freedesktop" otherwise.
func detectInitSystem() string {
	if fi, err := os.Stat("/run/systemd/system"); err == nil && fi.IsDir() {
		return "systemd"
	}
	return "freedesktop"
}
