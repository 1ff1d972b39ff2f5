// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tailcli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tailtray/tailtray/ipn"
)

// ErrNotFound is returned (wrapped) when the tailscale binary, or the
// configured prefix command, cannot be found or executed.
var ErrNotFound = errors.New("tailscale binary not found")

// Errors matched with errors.Is against an *ExitError, or returned by
// ParseStatusText, when the CLI reports that the backend is not running.
var (
	ErrStopped          = errors.New(ipn.Stopped.Description())
	ErrNeedsLogin       = errors.New(ipn.NeedsLogin.Description())
	ErrNeedsMachineAuth = errors.New(ipn.NeedsMachineAuth.Description())
)

// ErrInvalidArgument is returned (wrapped) by CheckOperator and
// CheckExitNode, before any command runs.
var ErrInvalidArgument = errors.New("invalid argument")

// CheckOperator reports whether user can be passed to
// `tailscale set --operator`.
func CheckOperator(user string) error {
	if user == "" || strings.ContainsAny(user, " \t\n=") {
		return fmt.Errorf("%w: operator user name %q", ErrInvalidArgument, user)
	}
	return nil
}

// CheckExitNode reports whether target can be passed to
// `tailscale set --exit-node`. The empty target is valid.
func CheckExitNode(target string) error {
	if strings.ContainsAny(target, " \t\n=") {
		return fmt.Errorf("%w: exit node %q", ErrInvalidArgument, target)
	}
	return nil
}

// StateError is returned by ParseStatusText when the CLI printed a
// backend-state sentence instead of a table. It matches ErrStopped,
// ErrNeedsLogin or ErrNeedsMachineAuth with errors.Is.
type StateError struct {
	State   ipn.State
	AuthURL string // from "Log in at:", if printed
}

func (e *StateError) Error() string { return e.State.Description() }

func (e *StateError) Is(target error) bool { return target == stateError(e.State) }

// LoginURL returns the URL that `tailscale status` printed after
// "Log in at:" for a logged-out backend, or the empty string.
func LoginURL(err error) string {
	var se *StateError
	if errors.As(err, &se) {
		return se.AuthURL
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if u := loginURL(ee.Stdout); u != "" {
			return u
		}
		return loginURL(ee.Stderr)
	}
	return ""
}

func loginURL(out string) string {
	for l := range strings.Lines(out) {
		if u, ok := strings.CutPrefix(strings.TrimSpace(l), "Log in at:"); ok {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

type notFoundError struct {
	path string
	err  error
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrNotFound, e.path, e.err)
}

func (e *notFoundError) Unwrap() []error { return []error{ErrNotFound, e.err} }

// ExitError is returned when the CLI exits with a non-zero status.
type ExitError struct {
	Args   []string // tailscale arguments, without the binary or prefix
	Code   int      // exit code; -1 if killed by a signal
	Stdout string
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	if msg == "" {
		return fmt.Sprintf("tailscale %s: exit status %d", strings.Join(e.Args, " "), e.Code)
	}
	return fmt.Sprintf("tailscale %s: exit status %d: %s", strings.Join(e.Args, " "), e.Code, firstLine(msg))
}

// Is reports whether the CLI output matches one of the backend-state
// sentinels ErrStopped, ErrNeedsLogin or ErrNeedsMachineAuth.
func (e *ExitError) Is(target error) bool {
	st, ok := stateFromSentence(e.Stdout)
	if !ok {
		return false
	}
	return target == stateError(st)
}

// ParseError is returned when CLI output cannot be understood.
type ParseError struct {
	Format string // "json", "text" or the subcommand name
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing tailscale %s output: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsAccessDenied reports whether err is a CLI failure caused by missing
// permission to change tailscaled's settings, which is typically fixed
// with `sudo tailscale set --operator=$USER`.
func IsAccessDenied(err error) bool {
	var ee *ExitError
	if !errors.As(err, &ee) {
		return false
	}
	s := strings.ToLower(ee.Stderr)
	return strings.Contains(s, "access denied") ||
		strings.Contains(s, "sudo tailscale") ||
		strings.Contains(s, "permission denied")
}

// IsDaemonDown reports whether err is a CLI failure caused by tailscaled
// not running or not being reachable.
func IsDaemonDown(err error) bool {
	var ee *ExitError
	if !errors.As(err, &ee) {
		return false
	}
	s := strings.ToLower(ee.Stderr)
	for _, sub := range []string{
		"failed to connect to local tailscale",
		"is tailscaled running",
		"cannot connect to the tailscale daemon",
		"tailscale is not running",
	} {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// stateFromSentence reports the backend state described by out when out
// consists of one of the sentences `tailscale status` prints instead of
// a table.
func stateFromSentence(out string) (ipn.State, bool) {
	var line string
	for l := range strings.Lines(out) {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		line = l
		break
	}
	for _, st := range []ipn.State{ipn.Stopped, ipn.NeedsLogin, ipn.NeedsMachineAuth} {
		if line == st.Description() {
			return st, true
		}
	}
	return ipn.NoState, false
}

func stateError(st ipn.State) error {
	switch st {
	case ipn.Stopped:
		return ErrStopped
	case ipn.NeedsLogin:
		return ErrNeedsLogin
	case ipn.NeedsMachineAuth:
		return ErrNeedsMachineAuth
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
