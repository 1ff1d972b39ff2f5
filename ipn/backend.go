// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package ipn

import "fmt"

// State is the backend state reported by tailscaled.
type State int

const (
	NoState = State(iota)
	NeedsLogin
	NeedsMachineAuth
	Stopped
	Starting
	Running
)

var stateNames = [...]string{"NoState", "NeedsLogin", "NeedsMachineAuth",
	"Stopped", "Starting", "Running"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState returns the State named by s, as found in the
// BackendState field of `tailscale status --json`.
// Unknown names map to NoState.
func ParseState(s string) State {
	for i, name := range stateNames {
		if name == s {
			return State(i)
		}
	}
	return NoState
}

// IsRunningOrStarting reports whether s is Running or Starting.
func (s State) IsRunningOrStarting() bool {
	return s == Running || s == Starting
}

// Description returns a description of the state suitable to display
// to a user.
func (s State) Description() string {
	switch s {
	case Stopped:
		return "Tailscale is stopped."
	case NeedsLogin:
		return "Logged out."
	case NeedsMachineAuth:
		return "Machine is not yet approved by tailnet admin."
	case Starting:
		return "Connecting..."
	case Running:
		return "Connected."
	}
	return "Tailscale is not running."
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	*s = ParseState(string(b))
	return nil
}
