// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package ipn

import "testing"

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
	}{
		{"Running", Running},
		{"Stopped", Stopped},
		{"NeedsLogin", NeedsLogin},
		{"NeedsMachineAuth", NeedsMachineAuth},
		{"Starting", Starting},
		{"NoState", NoState},
		{"", NoState},
		{"running", NoState},
		{"Bogus", NoState},
	}
	for _, tt := range tests {
		if got := ParseState(tt.in); got != tt.want {
			t.Errorf("ParseState(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestStateRoundTripText(t *testing.T) {
	for s := NoState; s <= Running; s++ {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got State
		if err := got.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Errorf("round trip of %v = %v", s, got)
		}
	}
	if got := State(42).String(); got != "State(42)" {
		t.Errorf("String of out-of-range state = %q", got)
	}
}

func TestDescription(t *testing.T) {
	if got, want := Stopped.Description(), "Tailscale is stopped."; got != want {
		t.Errorf("Stopped.Description() = %q; want %q", got, want)
	}
	if !Running.IsRunningOrStarting() || !Starting.IsRunningOrStarting() || Stopped.IsRunningOrStarting() {
		t.Errorf("IsRunningOrStarting mismatch")
	}
}
