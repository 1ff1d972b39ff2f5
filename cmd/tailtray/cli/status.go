// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/mattn/go-isatty"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/types/netstatus"
)

func statusCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "status",
		ShortUsage: "tailtray status [--json] [--active] [--peers=false]",
		ShortHelp:  "Show the status tailtray displays",
		LongHelp: strings.TrimSpace(`
The status command runs "tailscale status" once, the way the tray does,
and prints what it understood.
`),
		Exec: runStatus,
		FlagSet: (func() *flag.FlagSet {
			fs := newFlagSet("status")
			fs.BoolVar(&statusArgs.json, "json", false, "output the parsed status in JSON format")
			fs.BoolVar(&statusArgs.active, "active", false, "only show peers that are online")
			fs.BoolVar(&statusArgs.peers, "peers", true, "show peers")
			return fs
		})(),
	}
}

var statusArgs struct {
	json   bool
	active bool
	peers  bool
}

func runStatus(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return errors.New("unexpected non-flag arguments to 'tailtray status'")
	}
	_, c, err := setup()
	if err != nil {
		return err
	}
	// Through the Model, a stopped or logged-out backend is a Record
	// rather than an error.
	m := newModel(c)
	if err := m.Refresh(ctx); err != nil {
		return err
	}
	rec := new(netstatus.Record)
	*rec = *m.Snapshot().Record
	if statusArgs.active {
		rec.Peers = rec.OnlinePeers()
	}
	if !statusArgs.peers {
		rec.Peers = nil
	}
	if statusArgs.json {
		return jsonv2.MarshalWrite(Stdout, rec, jsontext.WithIndent("\t"))
	}
	printStatus(Stdout, rec, isTerminal(Stdout))
	return nil
}

// isTerminal reports whether w is a terminal, in which case status dots
// are printed instead of words.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printStatus(w io.Writer, rec *netstatus.Record, tty bool) {
	if !rec.Connected {
		fmt.Fprintln(w, rec.BackendState.Description())
		if rec.AuthURL != "" {
			fmt.Fprintf(w, "\nLog in at: %s\n", rec.AuthURL)
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t\t\tthis device\n", cmp.Or(rec.DeviceIP, "-"), cmp.Or(rec.DeviceName, "-"))
	for _, p := range rec.Peers {
		var state string
		switch {
		case tty && p.Online:
			state = "🟢"
		case tty:
			state = "⚫"
		case p.Online:
			state = "online"
		default:
			state = "offline"
		}
		switch {
		case p.ExitNode:
			state += "; exit node"
		case p.ExitNodeOption:
			state += "; offers exit node"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", cmp.Or(p.IP, "-"), p.Name, cmp.Or(p.Owner, "-"), cmp.Or(p.OS, "-"), state)
	}
	tw.Flush()
	if rec.Peers != nil && len(rec.Peers) == 0 {
		fmt.Fprintln(w, "\n# No peers.")
	}
	if len(rec.Health) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# Health check:")
		for _, m := range rec.Health {
			fmt.Fprintf(w, "#     - %s\n", m)
		}
	}
}
