// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package netstatus

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSortOnlineFirst(t *testing.T) {
	c := qt.New(t)
	peers := []PeerInfo{
		{Name: "a", Online: false},
		{Name: "b", Online: true},
		{Name: "c", Online: false},
		{Name: "d", Online: true},
	}
	SortOnlineFirst(peers)
	var names []string
	for _, p := range peers {
		names = append(names, p.Name)
	}
	c.Assert(names, qt.DeepEquals, []string{"b", "d", "a", "c"})
}

func TestLabel(t *testing.T) {
	c := qt.New(t)
	c.Assert(PeerInfo{Name: "nas", IP: "100.64.0.2", Online: true}.Label(), qt.Equals, "🟢 nas (100.64.0.2)")
	c.Assert(PeerInfo{Name: "phone", IP: "100.64.0.3"}.Label(), qt.Equals, "⚫ phone (100.64.0.3)")
	c.Assert(PeerInfo{Name: "ghost"}.Label(), qt.Equals, "⚫ ghost")
}

func TestRecordLookups(t *testing.T) {
	c := qt.New(t)
	r := &Record{
		Peers: []PeerInfo{
			{ID: "n1", Name: "nas", IP: "100.64.0.2", Online: true},
			{ID: "n2", Name: "exit", IP: "100.64.0.3", Online: true, ExitNodeOption: true},
			{ID: "n3", Name: "old", IP: "100.64.0.4"},
		},
		ExitNodeID: "n2",
	}

	p, ok := r.PeerByIP("100.64.0.4")
	c.Assert(ok, qt.IsTrue)
	c.Assert(p.Name, qt.Equals, "old")

	_, ok = r.PeerByIP("100.64.0.99")
	c.Assert(ok, qt.IsFalse)

	exit, ok := r.ExitNode()
	c.Assert(ok, qt.IsTrue)
	c.Assert(exit.Name, qt.Equals, "exit")
	c.Assert(exit.Target(), qt.Equals, "100.64.0.3")

	c.Assert(r.OnlinePeers(), qt.HasLen, 2)
	c.Assert(r.ExitNodeOptions(), qt.HasLen, 1)
}

func TestExitNodeByFlag(t *testing.T) {
	c := qt.New(t)
	r := &Record{Peers: []PeerInfo{{ID: "100.64.0.3", Name: "exit", ExitNode: true}}}
	exit, ok := r.ExitNode()
	c.Assert(ok, qt.IsTrue)
	c.Assert(exit.Name, qt.Equals, "exit")

	empty := &Record{}
	_, ok = empty.ExitNode()
	c.Assert(ok, qt.IsFalse)
	c.Assert(empty.Peers, qt.HasLen, 0)
}
