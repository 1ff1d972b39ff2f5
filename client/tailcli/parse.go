// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tailcli

import (
	"errors"
	"net/netip"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tailtray/tailtray/ipn"
	"github.com/tailtray/tailtray/ipn/ipnstate"
	"github.com/tailtray/tailtray/types/netstatus"
)

// mullvadSuffix is the MagicDNS suffix of location-based exit nodes.
// Like `tailscale status`, they are hidden unless in use.
const mullvadSuffix = "mullvad.ts.net."

// ParseStatusJSON parses the output of `tailscale status --json`.
func ParseStatusJSON(b []byte) (*netstatus.Record, error) {
	var st ipnstate.Status
	if err := jsonv2.Unmarshal(b, &st); err != nil {
		return nil, &ParseError{Format: "json", Err: err}
	}
	if st.BackendState == "" {
		return nil, &ParseError{Format: "json", Err: errors.New("missing BackendState")}
	}
	return recordFromStatus(&st), nil
}

func recordFromStatus(st *ipnstate.Status) *netstatus.Record {
	state := ipn.ParseState(st.BackendState)
	r := &netstatus.Record{
		BackendState: state,
		Connected:    state == ipn.Running,
		TailnetName:  st.TailnetName(),
		AuthURL:      st.AuthURL,
		Health:       st.Health,
		Format:       netstatus.FormatJSON,
	}
	suffix := st.DNSSuffix()
	if self := st.Self; self != nil {
		r.DeviceName = self.HostName
		if r.DeviceName == "" {
			r.DeviceName = self.BaseName(suffix)
		}
		r.DeviceIP = self.FirstIP()
	}
	if r.DeviceIP == "" && len(st.TailscaleIPs) > 0 {
		r.DeviceIP = st.TailscaleIPs[0].String()
	}

	var peers []*ipnstate.PeerStatus
	for _, k := range st.Peers() {
		ps := st.Peer[k]
		if ps == nil || ps.ShareeNode {
			continue
		}
		if ps.ExitNodeOption && !ps.ExitNode && strings.HasSuffix(ps.DNSName, mullvadSuffix) {
			continue
		}
		peers = append(peers, ps)
	}
	ipnstate.SortPeers(peers)

	r.Peers = make([]netstatus.PeerInfo, 0, len(peers))
	for _, ps := range peers {
		id := ps.ID
		if id == "" {
			id = ps.PublicKey
		}
		r.Peers = append(r.Peers, netstatus.PeerInfo{
			ID:             id,
			Name:           ps.BaseName(suffix),
			DNSName:        strings.TrimSuffix(ps.DNSName, "."),
			IP:             ps.FirstIP(),
			OS:             ps.OS,
			Owner:          st.Owner(ps),
			Online:         ps.Online,
			ExitNode:       ps.ExitNode,
			ExitNodeOption: ps.ExitNodeOption,
		})
		if ps.ExitNode && r.ExitNodeID == "" {
			r.ExitNodeID = id
		}
	}
	if es := st.ExitNodeStatus; es != nil && es.ID != "" {
		r.ExitNodeID = es.ID
	}
	netstatus.SortOnlineFirst(r.Peers)
	return r
}

// ParseStatusText parses the table printed by `tailscale status`.
//
// Each device line has the form
//
//	IP  HOSTNAME  OWNER  OS  STATUS...
//
// and the first device line is the local machine. Lines starting with
// '#' hold health warnings and hints; lines with fewer than four fields
// are ignored. If the output is one of the sentences printed instead of
// a table, a *StateError matching ErrStopped, ErrNeedsLogin or
// ErrNeedsMachineAuth is returned.
func ParseStatusText(b []byte) (*netstatus.Record, error) {
	out := string(b)
	if st, ok := stateFromSentence(out); ok {
		return nil, &StateError{State: st, AuthURL: loginURL(out)}
	}

	r := &netstatus.Record{
		BackendState: ipn.Running,
		Connected:    true,
		Format:       netstatus.FormatText,
		Peers:        []netstatus.PeerInfo{},
	}
	var (
		sawSelf  bool
		inHealth bool
	)
	for line := range strings.Lines(out) {
		line = strings.TrimSpace(line)
		if line == "" {
			inHealth = false
			continue
		}
		if strings.HasPrefix(line, "#") {
			c := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			switch {
			case strings.HasPrefix(c, "Health check:"):
				inHealth = true
			case inHealth && strings.HasPrefix(c, "- "):
				r.Health = append(r.Health, strings.TrimPrefix(c, "- "))
			}
			continue
		}
		p, ok := parseTableLine(line)
		if !ok {
			continue
		}
		if !sawSelf {
			sawSelf = true
			r.DeviceName = p.Name
			r.DeviceIP = p.IP
			continue
		}
		if p.ExitNode {
			r.ExitNodeID = p.ID
		}
		r.Peers = append(r.Peers, p)
	}
	if !sawSelf {
		return nil, &ParseError{Format: "text", Err: errors.New("no device lines in output")}
	}
	netstatus.SortOnlineFirst(r.Peers)
	return r, nil
}

// parseTableLine parses one device line of the status table.
func parseTableLine(line string) (p netstatus.PeerInfo, ok bool) {
	f := strings.Fields(line)
	if len(f) < 4 {
		return p, false
	}
	if _, err := netip.ParseAddr(f[0]); err != nil {
		// Column headers ("IP Hostname ..."), their underlines,
		// or something we don't understand.
		return p, false
	}
	name := f[1]
	// Punycode names are followed by their Unicode form: "xn--x (ü)".
	if len(f) >= 5 && strings.HasPrefix(f[2], "(") && strings.HasSuffix(f[2], ")") && strings.HasPrefix(name, "xn-") {
		name = strings.TrimSuffix(strings.TrimPrefix(f[2], "("), ")")
		f = append(f[:2:2], f[3:]...)
	}
	// Hosts without a MagicDNS name are printed as ("hostname").
	if strings.HasPrefix(name, `("`) && strings.HasSuffix(name, `")`) {
		name = name[2 : len(name)-2]
	}
	details := strings.Join(f[4:], " ")
	exitNode := strings.Contains(strings.ReplaceAll(details, "offers exit node", ""), "exit node")
	return netstatus.PeerInfo{
		ID:             f[0],
		Name:           name,
		IP:             f[0],
		Owner:          f[2],
		OS:             f[3],
		Online:         !strings.Contains(details, "offline"),
		ExitNode:       exitNode,
		ExitNodeOption: exitNode || strings.Contains(details, "offers exit node"),
	}, true
}
