// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package netstatus contains the Record type, a snapshot of what the
// tailscale CLI last reported about this device and its peers.
package netstatus

import (
	"fmt"
	"slices"

	"github.com/tailtray/tailtray/ipn"
)

// Format identifies which CLI output a Record was parsed from.
type Format string

const (
	FormatJSON Format = "json" // tailscale status --json
	FormatText Format = "text" // tailscale status
)

// Record is one snapshot of network status.
//
// A Record is built wholesale from a single successful CLI query and is
// never modified afterwards; a new query produces a new Record.
type Record struct {
	DeviceName   string    // local hostname
	DeviceIP     string    // first Tailscale IP of the local device, if any
	Connected    bool      // BackendState == Running
	BackendState ipn.State // as reported by the CLI
	TailnetName  string    // empty in text mode
	AuthURL      string    // set when BackendState is NeedsLogin
	Health       []string  // health warnings, if any
	Peers        []PeerInfo
	ExitNodeID   string // ID of the exit node in use; empty if none
	Format       Format
}

// PeerInfo is one peer as shown in the peer list.
type PeerInfo struct {
	ID             string // stable node ID; the IP in text mode
	Name           string // short display name
	DNSName        string // MagicDNS name, if known
	IP             string // first Tailscale IP
	OS             string
	Owner          string
	Online         bool
	ExitNode       bool // currently used as exit node
	ExitNodeOption bool // offers to be an exit node
}

// Label returns the menu label for p: a status dot, the name and the IP.
func (p PeerInfo) Label() string {
	dot := "⚫"
	if p.Online {
		dot = "🟢"
	}
	if p.IP == "" {
		return dot + " " + p.Name
	}
	return fmt.Sprintf("%s %s (%s)", dot, p.Name, p.IP)
}

// Target returns the value to pass to `tailscale set --exit-node`
// to select p.
func (p PeerInfo) Target() string {
	if p.IP != "" {
		return p.IP
	}
	return p.Name
}

// OnlinePeers returns the peers that are online.
func (r *Record) OnlinePeers() []PeerInfo {
	var out []PeerInfo
	for _, p := range r.Peers {
		if p.Online {
			out = append(out, p)
		}
	}
	return out
}

// PeerByIP returns the peer with the given IP.
func (r *Record) PeerByIP(ip string) (PeerInfo, bool) {
	i := slices.IndexFunc(r.Peers, func(p PeerInfo) bool { return p.IP == ip })
	if i < 0 {
		return PeerInfo{}, false
	}
	return r.Peers[i], true
}

// PeerByID returns the peer with the given ID.
func (r *Record) PeerByID(id string) (PeerInfo, bool) {
	if id == "" {
		return PeerInfo{}, false
	}
	i := slices.IndexFunc(r.Peers, func(p PeerInfo) bool { return p.ID == id })
	if i < 0 {
		return PeerInfo{}, false
	}
	return r.Peers[i], true
}

// ExitNode returns the peer in use as an exit node, if any.
func (r *Record) ExitNode() (PeerInfo, bool) {
	if p, ok := r.PeerByID(r.ExitNodeID); ok {
		return p, true
	}
	i := slices.IndexFunc(r.Peers, func(p PeerInfo) bool { return p.ExitNode })
	if i < 0 {
		return PeerInfo{}, false
	}
	return r.Peers[i], true
}

// ExitNodeOptions returns the peers offering to be an exit node,
// including the one currently in use.
func (r *Record) ExitNodeOptions() []PeerInfo {
	var out []PeerInfo
	for _, p := range r.Peers {
		if p.ExitNodeOption || p.ExitNode {
			out = append(out, p)
		}
	}
	return out
}

// SortOnlineFirst stably reorders peers so online peers come before
// offline ones, preserving the relative order within each group.
func SortOnlineFirst(peers []PeerInfo) {
	slices.SortStableFunc(peers, func(a, b PeerInfo) int {
		switch {
		case a.Online == b.Online:
			return 0
		case a.Online:
			return -1
		default:
			return 1
		}
	})
}
