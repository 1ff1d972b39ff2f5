// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo || !darwin

package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/client/systray"
	"github.com/tailtray/tailtray/envknob"
)

func trayCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "tray",
		ShortUsage: "tailtray tray",
		ShortHelp:  "Run the tray icon (the default)",
		Exec:       runTray,
	}
}

func runTray(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown subcommand or argument %q", args[0])
	}
	cfg, c, err := setup()
	if err != nil {
		return err
	}
	if rootArgs.verbose {
		envknob.LogCurrent(log.Printf)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(c)
	opener := &windowOpener{
		ctx:  ctx,
		srv:  newWindowServer(m, cfg),
		addr: cfg.ListenAddr(),
	}
	menu := &systray.Menu{
		Model:        m,
		Logf:         log.Printf,
		PollInterval: cfg.Poll(),
		OpenWindow:   opener.Open,
	}
	return menu.Run(ctx)
}
