// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"context"
	"fmt"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/client/viewmodel"
)

func upCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "up",
		ShortUsage: "tailtray up",
		ShortHelp:  "Connect to Tailscale, as the tray's Connect item does",
		Exec: func(ctx context.Context, args []string) error {
			return runModelAction(ctx, "up", args, (*viewmodel.Model).Connect)
		},
	}
}

func downCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "down",
		ShortUsage: "tailtray down",
		ShortHelp:  "Disconnect from Tailscale, as the tray's Disconnect item does",
		Exec: func(ctx context.Context, args []string) error {
			return runModelAction(ctx, "down", args, (*viewmodel.Model).Disconnect)
		},
	}
}

// runModelAction runs action through the same Model the tray uses and
// prints the resulting state.
func runModelAction(ctx context.Context, name string, args []string, action func(*viewmodel.Model, context.Context) error) error {
	if len(args) > 0 {
		return fmt.Errorf("too many non-flag arguments to %q: %q", name, args)
	}
	_, c, err := setup()
	if err != nil {
		return err
	}
	m := newModel(c)
	if err := action(m, ctx); err != nil {
		return err
	}
	if rec := m.Snapshot().Record; rec != nil {
		outln(rec.BackendState.Description())
	}
	return nil
}
