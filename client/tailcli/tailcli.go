// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package tailcli runs the tailscale command-line client as a subprocess
// and turns its output into a netstatus.Record.
//
// The CLI and its output formats are owned by the tailscale package; this
// package only knows the handful of subcommands a tray needs.
package tailcli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/tailtray/tailtray/paths"
	"github.com/tailtray/tailtray/types/logger"
	"github.com/tailtray/tailtray/types/netstatus"
)

// Client runs the tailscale CLI.
//
// Its zero value is valid to use: it runs the binary found by
// paths.DefaultCLIPath, asks for JSON status and does not log.
//
// Any exported fields should be set before using methods on the type
// and not changed thereafter.
type Client struct {
	// Path is the tailscale binary. If empty, paths.DefaultCLIPath is used.
	Path string

	// Prefix, if non-empty, is a command line that wraps every
	// invocation, such as []string{"sudo", "-n"}.
	Prefix []string

	// Env holds extra "KEY=value" environment entries for the subprocess.
	Env []string

	// Format selects `status --json` (the default) or the plain table.
	Format netstatus.Format

	// Timeout bounds each invocation. Zero means no limit beyond ctx.
	Timeout time.Duration

	// Logf logs each invocation. If nil, nothing is logged.
	Logf logger.Logf

	// DebugLogf, if non-nil, receives the raw output of each invocation.
	DebugLogf logger.Logf
}

func (c *Client) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

func (c *Client) path() string {
	if c.Path != "" {
		return c.Path
	}
	return paths.DefaultCLIPath()
}

// argv returns the full command line for the tailscale arguments args.
func (c *Client) argv(args ...string) []string {
	argv := make([]string, 0, len(c.Prefix)+1+len(args))
	argv = append(argv, c.Prefix...)
	argv = append(argv, c.path())
	return append(argv, args...)
}

// run runs tailscale with args and returns its stdout.
//
// The error is one of *ExitError (non-zero exit), an error wrapping
// ErrNotFound (binary missing or not executable), or a context error.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	argv := c.argv(args...)
	c.logf("running %s", shellquote.Join(argv...))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if c.DebugLogf != nil {
		c.DebugLogf("%s: exit after %v; stdout=%q stderr=%q", args[0], time.Since(start).Round(time.Millisecond), stdout.Bytes(), stderr.Bytes())
	}
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("tailscale %s: %w", args[0], ctxErr)
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return nil, &ExitError{
			Args:   args,
			Code:   ee.ExitCode(),
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return nil, &notFoundError{path: argv[0], err: err}
	}
	return nil, fmt.Errorf("running %s: %w", argv[0], err)
}

// Status runs `tailscale status` and parses its output.
//
// A non-zero exit always results in a nil Record and a non-nil error.
func (c *Client) Status(ctx context.Context) (*netstatus.Record, error) {
	if c.Format == netstatus.FormatText {
		out, err := c.run(ctx, "status")
		if err != nil {
			return nil, err
		}
		return ParseStatusText(out)
	}
	out, err := c.run(ctx, "status", "--json")
	if err != nil {
		return nil, err
	}
	return ParseStatusJSON(out)
}

// Up runs `tailscale up`, connecting to the tailnet.
func (c *Client) Up(ctx context.Context) error {
	_, err := c.run(ctx, "up")
	return err
}

// Down runs `tailscale down`, disconnecting from the tailnet.
func (c *Client) Down(ctx context.Context) error {
	_, err := c.run(ctx, "down")
	return err
}

// SetOperator runs `tailscale set --operator=user`, allowing user to
// manage tailscaled without sudo.
func (c *Client) SetOperator(ctx context.Context, user string) error {
	if err := CheckOperator(user); err != nil {
		return err
	}
	_, err := c.run(ctx, "set", "--operator="+user)
	return err
}

// SetExitNode runs `tailscale set --exit-node=target`. The target is a
// peer IP or base name; the empty string stops using an exit node.
func (c *Client) SetExitNode(ctx context.Context, target string) error {
	if err := CheckExitNode(target); err != nil {
		return err
	}
	_, err := c.run(ctx, "set", "--exit-node="+target)
	return err
}

// SetExitNodeAllowLANAccess runs
// `tailscale set --exit-node-allow-lan-access=allow`.
func (c *Client) SetExitNodeAllowLANAccess(ctx context.Context, allow bool) error {
	_, err := c.run(ctx, "set", "--exit-node-allow-lan-access="+strconv.FormatBool(allow))
	return err
}

// Version returns the first line of `tailscale version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "version")
	if err != nil {
		return "", err
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	if sc.Scan() {
		if v := strings.TrimSpace(sc.Text()); v != "" {
			return v, nil
		}
	}
	return "", &ParseError{Format: "version", Err: errors.New("empty output")}
}
