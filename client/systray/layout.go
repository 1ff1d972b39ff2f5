// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package systray

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"

	"github.com/tailtray/tailtray/client/viewmodel"
	"github.com/tailtray/tailtray/ipn"
	"github.com/tailtray/tailtray/types/netstatus"
)

const operatorHelpURL = "https://tailscale.com/s/cli-operator"

type entryKind int

const (
	kindItem entryKind = iota
	kindCheckbox
	kindSeparator
)

// action is what happens when a menu entry is clicked.
type action int

const (
	actNone action = iota
	actConnect
	actDisconnect
	actCopyIP      // arg is the IP, name the device
	actSetExitNode // arg is the exit node target; empty for none
	actLANAccess   // arg is "true" or "false"
	actSetOperator // arg is the user name
	actOpenURL     // arg is the URL
	actOpenWindow
	actRefresh
	actQuit
)

// entry is one menu item, independent of the systray package so that
// menu contents can be computed and compared without a display.
type entry struct {
	title    string
	tooltip  string
	kind     entryKind
	disabled bool
	checked  bool
	action   action
	arg      string
	name     string
	children []entry
}

func separator() entry { return entry{kind: kindSeparator} }

func label(title string) entry { return entry{title: title, disabled: true} }

type layoutOptions struct {
	hasWindow bool   // show "Open status window"
	user      string // default operator user name
}

// layout returns the menu for s.
func layout(s viewmodel.State, opts layoutOptions) []entry {
	var out []entry
	rec := s.Record

	if s.ReadOnly {
		out = append(out,
			entry{title: multiline("No permission to manage Tailscale.", "See tailscale.com/s/cli-operator"), action: actOpenURL, arg: operatorHelpURL},
		)
		if opts.user != "" {
			out = append(out, entry{
				title:    fmt.Sprintf("Set operator to %s", opts.user),
				tooltip:  "Runs tailscale set --operator",
				action:   actSetOperator,
				arg:      opts.user,
				disabled: s.Busy,
			})
		}
		out = append(out, separator())
	}

	out = append(out, label(statusLine(s)))
	if s.Err != nil {
		out = append(out, label("⚠ "+viewmodel.UserMessage(s.Err)))
	}

	switch {
	case rec != nil && rec.Connected:
		out = append(out, entry{title: "Disconnect", action: actDisconnect, disabled: s.Busy})
	case rec != nil && rec.BackendState == ipn.NeedsLogin && rec.AuthURL != "":
		out = append(out, entry{title: "Log in...", action: actOpenURL, arg: rec.AuthURL})
	default:
		out = append(out, entry{title: "Connect", action: actConnect, disabled: s.Busy})
	}
	out = append(out, separator())

	if rec != nil && rec.DeviceIP != "" {
		out = append(out, entry{
			title:   fmt.Sprintf("This Device: %s (%s)", rec.DeviceName, rec.DeviceIP),
			tooltip: "Copy IP address",
			action:  actCopyIP,
			arg:     rec.DeviceIP,
			name:    rec.DeviceName,
		})
	} else {
		out = append(out, label("This Device: not connected"))
	}

	if rec != nil && rec.Connected {
		out = append(out, peersMenu(rec), exitNodeMenu(s))
	}
	out = append(out, separator())

	if opts.hasWindow {
		out = append(out, entry{title: "Open status window", action: actOpenWindow})
	}
	out = append(out,
		entry{title: "Refresh", action: actRefresh, disabled: s.Busy},
		entry{title: "Quit", tooltip: "Quit the app", action: actQuit},
	)
	return out
}

// statusLine describes the backend state and any command in progress.
func statusLine(s viewmodel.State) string {
	if s.Busy {
		switch s.Op {
		case viewmodel.OpConnect:
			return "Connecting..."
		case viewmodel.OpDisconnect:
			return "Disconnecting..."
		}
	}
	rec := s.Record
	if rec == nil {
		if s.Err != nil {
			return "Status unknown"
		}
		return "Checking status..."
	}
	if rec.Connected && rec.TailnetName != "" {
		return "Connected to " + rec.TailnetName
	}
	return rec.BackendState.Description()
}

func peersMenu(rec *netstatus.Record) entry {
	m := entry{title: fmt.Sprintf("Peers (%d of %d online)", len(rec.OnlinePeers()), len(rec.Peers))}
	if len(rec.Peers) == 0 {
		m.children = []entry{label("No peers")}
		return m
	}
	for _, p := range rec.Peers {
		m.children = append(m.children, entry{
			title:   p.Label(),
			tooltip: "Copy IP address",
			action:  actCopyIP,
			arg:     p.IP,
			name:    p.Name,
		})
	}
	return m
}

func exitNodeMenu(s viewmodel.State) entry {
	rec := s.Record
	cur, using := rec.ExitNode()
	m := entry{title: "Exit Nodes"}
	m.children = append(m.children, entry{
		title:    "None",
		kind:     kindCheckbox,
		checked:  !using,
		action:   actSetExitNode,
		disabled: s.Busy,
	})

	opts := rec.ExitNodeOptions()
	if len(opts) > 0 {
		m.children = append(m.children, separator(), label("Tailnet Exit Nodes"))
	}
	for _, p := range opts {
		title := p.Name
		if !p.Online {
			title += " (offline)"
		}
		m.children = append(m.children, entry{
			title:    title,
			kind:     kindCheckbox,
			checked:  using && p.ID == cur.ID,
			disabled: s.Busy || !p.Online,
			action:   actSetExitNode,
			arg:      p.Target(),
		})
	}

	m.children = append(m.children, separator(), entry{
		title:    "Allow Local Network Access",
		kind:     kindCheckbox,
		checked:  s.AllowLANAccess,
		disabled: s.Busy,
		action:   actLANAccess,
		arg:      strconv.FormatBool(!s.AllowLANAccess),
	})
	return m
}

// trayIcon returns the icon and tooltip for s.
func trayIcon(s viewmodel.State) (tsLogo, string) {
	if s.Busy && (s.Op == viewmodel.OpConnect || s.Op == viewmodel.OpDisconnect) {
		return loading, statusLine(s)
	}
	rec := s.Record
	if rec == nil {
		return disconnected, "Disconnected"
	}
	switch rec.BackendState {
	case ipn.Running:
		if p, ok := rec.ExitNode(); ok {
			if p.Online {
				return exitNodeOnline, "Using exit node"
			}
			return exitNodeOffline, "Exit node offline"
		}
		if rec.TailnetName != "" {
			return connected, "Connected to " + rec.TailnetName
		}
		return connected, "Connected"
	case ipn.Starting:
		return loading, "Connecting"
	}
	return disconnected, "Disconnected"
}

// multiline joins lines for a menu title. Windows and macOS menus
// don't support multi-line items.
func multiline(first, second string) string {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return first + " (" + second + ")"
	}
	return first + "\n" + second
}

func equalEntries(a, b []entry) bool {
	return slices.EqualFunc(a, b, func(x, y entry) bool {
		return x.title == y.title &&
			x.tooltip == y.tooltip &&
			x.kind == y.kind &&
			x.disabled == y.disabled &&
			x.checked == y.checked &&
			x.action == y.action &&
			x.arg == y.arg &&
			x.name == y.name &&
			equalEntries(x.children, y.children)
	})
}
