// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package viewmodel holds the state shared by the tray and the status
// window: the most recent netstatus.Record, the last error, and whether
// a CLI command is currently running.
//
// All CLI work goes through a Model, which runs at most one command at
// a time. Renderers read a State with Snapshot or get each new State
// from Subscribe; they never call the CLI themselves.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"sync"
	"time"

	"github.com/tailtray/tailtray/client/tailcli"
	"github.com/tailtray/tailtray/ipn"
	"github.com/tailtray/tailtray/syncs"
	"github.com/tailtray/tailtray/types/logger"
	"github.com/tailtray/tailtray/types/netstatus"
)

// ErrBusy is returned when an action is requested while another CLI
// command is still running. The adapter is not called.
var ErrBusy = errors.New("another tailscale command is still running")

// Adapter is the subset of *tailcli.Client used by a Model.
type Adapter interface {
	Status(context.Context) (*netstatus.Record, error)
	Up(context.Context) error
	Down(context.Context) error
	SetOperator(ctx context.Context, user string) error
	SetExitNode(ctx context.Context, target string) error
	SetExitNodeAllowLANAccess(ctx context.Context, allow bool) error
}

var _ Adapter = (*tailcli.Client)(nil)

// Op names the action a Model is performing.
type Op string

const (
	OpNone        Op = ""
	OpRefresh     Op = "refresh"
	OpConnect     Op = "connect"
	OpDisconnect  Op = "disconnect"
	OpSetExitNode Op = "set-exit-node"
	OpLANAccess   Op = "lan-access"
	OpSetOperator Op = "set-operator"
)

// State is an immutable snapshot of a Model.
type State struct {
	// Record is the result of the most recent successful status query.
	// It is nil until the first one succeeds.
	Record *netstatus.Record

	// Err is the error from the most recent action, or nil if it
	// succeeded. Use UserMessage to display it.
	Err error

	// Busy reports whether a CLI command is running. Op says which.
	Busy bool
	Op   Op

	// Updated is when Record was obtained.
	Updated time.Time

	// ReadOnly is set when the CLI refused a change because the user is
	// not the tailscaled operator. It is cleared by the next successful
	// change.
	ReadOnly bool

	// AllowLANAccess is the value last applied through this Model. The
	// CLI's status output does not report it.
	AllowLANAccess bool
}

// Connected reports whether s has a Record that is connected.
func (s State) Connected() bool {
	return s.Record != nil && s.Record.Connected
}

// Model serializes CLI commands and publishes their results.
//
// A status query that fails only because the backend is stopped, logged
// out or awaiting approval is not an error: the CLI exits non-zero in
// those states, but the Model publishes a disconnected Record with Err
// nil, carrying the login URL if one was printed.
type Model struct {
	adapter Adapter
	logf    logger.Logf
	now     func() time.Time

	sem   syncs.Semaphore // held while a CLI command runs
	state syncs.AtomicValue[State]

	mu      sync.Mutex // guards subs and nextSub
	subs    map[int]func(State)
	nextSub int
}

// New returns a Model running CLI commands through a.
func New(a Adapter, logf logger.Logf) *Model {
	if logf == nil {
		logf = logger.Discard
	}
	return &Model{
		adapter: a,
		logf:    logf,
		now:     time.Now,
		sem:     syncs.NewSemaphore(1),
		subs:    make(map[int]func(State)),
	}
}

// Snapshot returns the current State.
func (m *Model) Snapshot() State {
	return m.state.Load()
}

// Subscribe registers fn to be called with every new State, including
// the transitions into and out of Busy. Calls are made synchronously
// from the goroutine performing the action, one at a time.
func (m *Model) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Model) publish(s State) {
	m.state.Store(s)
	m.mu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// do runs fn, if non-nil, then queries status, holding the in-flight
// guard throughout. It returns fn's error, or the status error if fn
// succeeded.
func (m *Model) do(ctx context.Context, op Op, fn func(context.Context) error) error {
	if !m.sem.TryAcquire() {
		return ErrBusy
	}
	defer m.sem.Release()

	s := m.Snapshot()
	s.Busy = true
	s.Op = op
	m.publish(s)

	var opErr error
	if fn != nil {
		opErr = fn(ctx)
		if opErr != nil {
			m.logf("%s: %v", op, opErr)
		}
	}
	rec, statusErr := m.adapter.Status(ctx)
	if statusErr != nil {
		if r, ok := recordForState(statusErr); ok {
			rec, statusErr = r, nil
		}
	}

	s = m.Snapshot()
	s.Busy = false
	s.Op = OpNone
	if rec != nil {
		s.Record = rec
		s.Updated = m.now()
	}
	switch {
	case opErr != nil:
		s.Err = opErr
		if tailcli.IsAccessDenied(opErr) {
			s.ReadOnly = true
		}
	case statusErr != nil:
		s.Err = statusErr
	default:
		s.Err = nil
		if fn != nil {
			s.ReadOnly = false
		}
	}
	m.publish(s)

	if opErr != nil {
		return opErr
	}
	return statusErr
}

// recordForState turns the error reported by `tailscale status` for a
// backend that is not running into a disconnected Record.
func recordForState(err error) (*netstatus.Record, bool) {
	var st ipn.State
	switch {
	case errors.Is(err, tailcli.ErrStopped):
		st = ipn.Stopped
	case errors.Is(err, tailcli.ErrNeedsLogin):
		st = ipn.NeedsLogin
	case errors.Is(err, tailcli.ErrNeedsMachineAuth):
		st = ipn.NeedsMachineAuth
	default:
		return nil, false
	}
	return &netstatus.Record{
		BackendState: st,
		AuthURL:      tailcli.LoginURL(err),
		Peers:        []netstatus.PeerInfo{},
		Format:       netstatus.FormatText,
	}, true
}

// Refresh queries status.
func (m *Model) Refresh(ctx context.Context) error {
	return m.do(ctx, OpRefresh, nil)
}

// Connect runs `tailscale up`.
func (m *Model) Connect(ctx context.Context) error {
	return m.do(ctx, OpConnect, m.adapter.Up)
}

// Disconnect runs `tailscale down`.
func (m *Model) Disconnect(ctx context.Context) error {
	return m.do(ctx, OpDisconnect, m.adapter.Down)
}

// Toggle disconnects if the last known state is connected and
// connects otherwise.
func (m *Model) Toggle(ctx context.Context) error {
	if m.Snapshot().Connected() {
		return m.Disconnect(ctx)
	}
	return m.Connect(ctx)
}

// SetExitNode selects the peer identified by target (an IP or name) as
// exit node. The empty string stops using an exit node.
//
// An invalid target fails with tailcli.ErrInvalidArgument before any
// command runs.
func (m *Model) SetExitNode(ctx context.Context, target string) error {
	if err := tailcli.CheckExitNode(target); err != nil {
		return err
	}
	return m.do(ctx, OpSetExitNode, func(ctx context.Context) error {
		return m.adapter.SetExitNode(ctx, target)
	})
}

// SetExitNodeAllowLANAccess sets whether the local network stays
// reachable while using an exit node.
func (m *Model) SetExitNodeAllowLANAccess(ctx context.Context, allow bool) error {
	return m.do(ctx, OpLANAccess, func(ctx context.Context) error {
		if err := m.adapter.SetExitNodeAllowLANAccess(ctx, allow); err != nil {
			return err
		}
		s := m.Snapshot()
		s.AllowLANAccess = allow
		m.state.Store(s)
		return nil
	})
}

// SetOperator makes name the tailscaled operator. If name is empty, the
// current OS user is used. An invalid name fails with
// tailcli.ErrInvalidArgument before any command runs.
func (m *Model) SetOperator(ctx context.Context, name string) error {
	if name == "" {
		u, err := user.Current()
		if err != nil {
			return fmt.Errorf("looking up current user: %w", err)
		}
		name = u.Username
	}
	if err := tailcli.CheckOperator(name); err != nil {
		return err
	}
	return m.do(ctx, OpSetOperator, func(ctx context.Context) error {
		return m.adapter.SetOperator(ctx, name)
	})
}

// Run refreshes status every interval until ctx is done. Ticks that
// arrive while another command is running are skipped. If interval is
// not positive, status is queried once.
func (m *Model) Run(ctx context.Context, interval time.Duration) error {
	logf := logger.RateLimitedFn(m.logf, time.Minute, 2, 16)
	poll := func() {
		switch err := m.Refresh(ctx); {
		case err == nil:
		case errors.Is(err, ErrBusy):
		case ctx.Err() != nil:
		default:
			logf("poll: %v", err)
		}
	}
	poll()
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			poll()
		}
	}
}
