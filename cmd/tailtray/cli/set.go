// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/types/netstatus"
)

func setOperatorCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "set-operator",
		ShortUsage: "tailtray set-operator [USER]",
		ShortHelp:  "Allow a user to manage Tailscale without sudo",
		LongHelp: strings.TrimSpace(`
The set-operator command runs "tailscale set --operator=USER". USER
defaults to the operator named in the config file, then to the current
user. Making yourself the operator usually needs sudo:

  sudo tailtray set-operator $USER
`),
		Exec: runSetOperator,
	}
}

func runSetOperator(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("too many non-flag arguments: %q", args)
	}
	cfg, c, err := setup()
	if err != nil {
		return err
	}
	name := cfg.Operator
	if len(args) == 1 {
		name = args[0]
	}
	m := newModel(c)
	if err := m.SetOperator(ctx, name); err != nil {
		return err
	}
	outln("Operator updated.")
	return nil
}

func exitNodeCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "exit-node",
		ShortUsage: "tailtray exit-node [--allow-lan-access=BOOL] [PEER|none]",
		ShortHelp:  "List or select exit nodes",
		LongHelp: strings.TrimSpace(`
Without arguments, exit-node lists the peers offering to be an exit node.

With a PEER (a name, MagicDNS name or Tailscale IP), it routes internet
traffic through that peer. "none" stops using an exit node.
`),
		Exec: runExitNode,
		FlagSet: (func() *flag.FlagSet {
			fs := newFlagSet("exit-node")
			fs.BoolVar(&exitNodeArgs.allowLANAccess, "allow-lan-access", false, "allow direct access to the local network while using an exit node")
			exitNodeArgs.fs = fs
			return fs
		})(),
	}
}

var exitNodeArgs struct {
	fs             *flag.FlagSet
	allowLANAccess bool
}

func flagWasSet(fs *flag.FlagSet, name string) (set bool) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func runExitNode(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("too many non-flag arguments: %q", args)
	}
	_, c, err := setup()
	if err != nil {
		return err
	}
	setLAN := flagWasSet(exitNodeArgs.fs, "allow-lan-access")
	if len(args) == 0 && !setLAN {
		rec, err := c.Status(ctx)
		if err != nil {
			return err
		}
		printExitNodes(rec)
		return nil
	}

	m := newModel(c)
	if len(args) == 1 {
		target := args[0]
		if target == "none" {
			target = ""
		}
		if target != "" {
			if err := m.Refresh(ctx); err != nil {
				return err
			}
			p, err := resolveExitNode(m.Snapshot().Record, target)
			if err != nil {
				return err
			}
			target = p.Target()
		}
		if err := m.SetExitNode(ctx, target); err != nil {
			return err
		}
	}
	if setLAN {
		if err := m.SetExitNodeAllowLANAccess(ctx, exitNodeArgs.allowLANAccess); err != nil {
			return err
		}
	}
	if rec := m.Snapshot().Record; rec != nil {
		if p, ok := rec.ExitNode(); ok {
			printf("Using exit node %s (%s).\n", p.Name, p.IP)
		} else {
			outln("Not using an exit node.")
		}
	}
	return nil
}

// resolveExitNode finds the peer named by s among rec's exit node
// options.
func resolveExitNode(rec *netstatus.Record, s string) (netstatus.PeerInfo, error) {
	if rec == nil {
		return netstatus.PeerInfo{}, errors.New("status unknown")
	}
	for _, p := range rec.ExitNodeOptions() {
		if p.IP == s || strings.EqualFold(p.Name, s) || strings.EqualFold(strings.TrimSuffix(p.DNSName, "."), strings.TrimSuffix(s, ".")) {
			if !p.Online {
				return p, fmt.Errorf("exit node %q is offline", p.Name)
			}
			return p, nil
		}
	}
	return netstatus.PeerInfo{}, fmt.Errorf("no exit node %q; run 'tailtray exit-node' to list them", s)
}

func printExitNodes(rec *netstatus.Record) {
	opts := rec.ExitNodeOptions()
	if len(opts) == 0 {
		outln("No exit nodes found.")
		return
	}
	tw := tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IP\tNAME\tSTATUS")
	for _, p := range opts {
		var status []string
		if p.Online {
			status = append(status, "online")
		} else {
			status = append(status, "offline")
		}
		if p.ExitNode || p.ID == rec.ExitNodeID {
			status = append(status, "selected")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.IP, p.Name, strings.Join(status, "; "))
	}
	tw.Flush()
}
