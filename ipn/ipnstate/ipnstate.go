// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package ipnstate describes the document printed by
// `tailscale status --json`.
//
// Only the fields tailtray reads are declared; the CLI emits many more,
// and unknown members are ignored when decoding. The format is owned by
// the tailscale CLI and has changed between releases, so every field is
// optional.
package ipnstate

import (
	"cmp"
	"net/netip"
	"slices"
	"strings"
	"time"
)

// Status represents the entire state of the IPN network.
type Status struct {
	// Version is the daemon's long version (see version.Long).
	Version string

	// BackendState is an ipn.State string value:
	//  "NoState", "NeedsLogin", "NeedsMachineAuth", "Stopped",
	//  "Starting", "Running".
	BackendState string

	// AuthURL is a non-empty URL if BackendState is NeedsLogin.
	AuthURL string

	// TailscaleIPs are the Tailscale IP(s) assigned to this node.
	TailscaleIPs []netip.Addr

	// Self is the local node. It may be nil before login.
	Self *PeerStatus

	// ExitNodeStatus describes the current exit node.
	// If nil, an exit node is not in use.
	ExitNodeStatus *ExitNodeStatus `json:",omitempty"`

	// Health contains health check problems.
	// Empty means everything is good.
	Health []string

	// MagicDNSSuffix is the network's MagicDNS suffix for nodes
	// in the network such as "userfoo.tailscale.net".
	MagicDNSSuffix string

	// CurrentTailnet is information about the tailnet that the node
	// is currently connected to. It may be nil when logged out.
	CurrentTailnet *TailnetStatus

	// Peer is the state of each peer, keyed by each peer's public key.
	Peer map[string]*PeerStatus

	// User contains profile information about UserIDs referenced by
	// PeerStatus.UserID, keyed by decimal user ID.
	User map[string]UserProfile
}

// TailnetStatus is information about a Tailscale network ("tailnet").
type TailnetStatus struct {
	// Name is the name of the network that's currently in use.
	Name string

	// MagicDNSSuffix is the network's MagicDNS suffix for nodes
	// in the network such as "userfoo.tailscale.net".
	MagicDNSSuffix string

	// MagicDNSEnabled is whether or not the network has MagicDNS enabled.
	MagicDNSEnabled bool
}

// ExitNodeStatus describes the current exit node.
type ExitNodeStatus struct {
	// ID is the exit node's stable ID.
	ID string

	// Online is whether the exit node is alive.
	Online bool

	// TailscaleIPs are the exit node's IP addresses assigned to the node.
	TailscaleIPs []netip.Prefix
}

// UserProfile is the display information about a user.
type UserProfile struct {
	ID          int64
	LoginName   string // "alice@smith.com"; for display purposes only
	DisplayName string // "Alice Smith"
}

// PeerStatus describes a peer node and its current state.
type PeerStatus struct {
	ID        string // stable node ID
	PublicKey string
	HostName  string // HostInfo's Hostname (not a DNS name or necessarily unique)
	DNSName   string // MagicDNS name, with a trailing dot
	OS        string // HostInfo.OS
	UserID    int64

	// AltSharerUserID is the user who shared this node
	// if it's different than UserID.
	AltSharerUserID int64 `json:",omitempty"`

	// TailscaleIPs are the IP addresses assigned to the node.
	TailscaleIPs []netip.Addr

	Relay   string // DERP region
	CurAddr string // one of Addrs, or unique if roaming

	RxBytes  int64
	TxBytes  int64
	LastSeen time.Time // last seen to tailcontrol; only present if offline

	Online         bool // whether node is connected to the control plane
	Active         bool // whether the peer has recent traffic
	ExitNode       bool // true if this is the currently selected exit node
	ExitNodeOption bool // true if this node can be an exit node (offered && approved)

	// ShareeNode indicates this node exists in the netmap because
	// it's owned by a shared-to user and that node might connect
	// to us. These nodes are hidden by "tailscale status".
	ShareeNode bool `json:",omitempty"`
}

// Peers returns the keys of s.Peer, sorted.
func (s *Status) Peers() []string {
	kk := make([]string, 0, len(s.Peer))
	for k := range s.Peer {
		kk = append(kk, k)
	}
	slices.Sort(kk)
	return kk
}

// TailnetName returns the name of the current tailnet, or the empty string.
func (s *Status) TailnetName() string {
	if s.CurrentTailnet == nil {
		return ""
	}
	return s.CurrentTailnet.Name
}

// DNSSuffix returns the MagicDNS suffix of the current tailnet,
// preferring CurrentTailnet over the older top-level field.
func (s *Status) DNSSuffix() string {
	if s.CurrentTailnet != nil && s.CurrentTailnet.MagicDNSSuffix != "" {
		return s.CurrentTailnet.MagicDNSSuffix
	}
	return s.MagicDNSSuffix
}

// Owner returns the login name of the user owning ps, trimmed to the
// part before and including the '@' like `tailscale status` prints it,
// or "-" if unknown.
func (s *Status) Owner(ps *PeerStatus) string {
	uid := cmp.Or(ps.AltSharerUserID, ps.UserID)
	if uid == 0 {
		return "-"
	}
	for _, u := range s.User {
		if u.ID != uid {
			continue
		}
		if i := strings.Index(u.LoginName, "@"); i != -1 {
			return u.LoginName[:i+1]
		}
		return u.LoginName
	}
	return "-"
}

// BaseName returns ps's MagicDNS name with the tailnet suffix
// removed, falling back to SimpleHostName.
func (ps *PeerStatus) BaseName(suffix string) string {
	name := strings.TrimSuffix(ps.DNSName, ".")
	suffix = strings.TrimSuffix(strings.TrimPrefix(suffix, "."), ".")
	if suffix != "" {
		name = strings.TrimSuffix(name, "."+suffix)
	}
	if name == "" {
		return ps.SimpleHostName()
	}
	if i := strings.IndexByte(name, '.'); i != -1 && suffix == "" {
		name = name[:i]
	}
	return name
}

// SimpleHostName returns a potentially simplified version of ps.HostName for display purposes.
func (ps *PeerStatus) SimpleHostName() string {
	n := ps.HostName
	n = strings.TrimSuffix(n, ".local")
	n = strings.TrimSuffix(n, ".localdomain")
	return n
}

// FirstIP returns the first Tailscale IP of ps as a string,
// or the empty string if it has none.
func (ps *PeerStatus) FirstIP() string {
	if len(ps.TailscaleIPs) == 0 {
		return ""
	}
	return ps.TailscaleIPs[0].String()
}

// SortPeers sorts peers by either their DNS name, hostname, Tailscale IP,
// or ultimately their current public key.
func SortPeers(peers []*PeerStatus) {
	slices.SortStableFunc(peers, comparePeers)
}

func comparePeers(a, b *PeerStatus) int {
	if a.DNSName != "" || b.DNSName != "" {
		if v := strings.Compare(a.DNSName, b.DNSName); v != 0 {
			return v
		}
	}
	if a.HostName != "" || b.HostName != "" {
		if v := strings.Compare(a.HostName, b.HostName); v != 0 {
			return v
		}
	}
	if a.FirstIP() != "" || b.FirstIP() != "" {
		if v := strings.Compare(a.FirstIP(), b.FirstIP()); v != 0 {
			return v
		}
	}
	return strings.Compare(a.PublicKey, b.PublicKey)
}
