// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tailcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tailtray/tailtray/types/logger"
	"github.com/tailtray/tailtray/types/netstatus"
)

// fakeClient returns a Client whose "tailscale" is this test binary
// re-executed as TestHelperProcess, behaving as described by scenario.
// The returned function reports the argument lists it was invoked with.
func fakeClient(t *testing.T, scenario string) (*Client, func() [][]string) {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), "invocations")
	c := &Client{
		Path:   "tailscale",
		Prefix: []string{os.Args[0], "-test.run=^TestHelperProcess$", "--"},
		Env: []string{
			"GO_WANT_HELPER_PROCESS=1",
			"TAILCLI_TEST_SCENARIO=" + scenario,
			"TAILCLI_TEST_LOG=" + logFile,
		},
		Logf:      logger.TestLogger(t),
		DebugLogf: logger.TestLogger(t),
	}
	calls := func() [][]string {
		b, err := os.ReadFile(logFile)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			t.Fatal(err)
		}
		var out [][]string
		for line := range strings.Lines(string(b)) {
			out = append(out, strings.Split(strings.TrimSuffix(line, "\n"), "\x00"))
		}
		return out
	}
	return c, calls
}

// TestHelperProcess is not a real test. It stands in for the tailscale
// binary when re-executed by fakeClient.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "helper: no command")
		os.Exit(2)
	}
	args = args[2:] // "--" and the binary name
	if f := os.Getenv("TAILCLI_TEST_LOG"); f != "" {
		lf, err := os.OpenFile(f, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintln(lf, strings.Join(args, "\x00"))
			lf.Close()
		}
	}
	os.Exit(fakeTailscale(os.Getenv("TAILCLI_TEST_SCENARIO"), args))
}

func fakeTailscale(scenario string, args []string) int {
	cmd := strings.Join(args, " ")
	switch scenario {
	case "ok":
		switch cmd {
		case "status --json":
			b, err := os.ReadFile(filepath.Join("testdata", "status.json"))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			os.Stdout.Write(b)
		case "status":
			b, err := os.ReadFile(filepath.Join("testdata", "status.txt"))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			os.Stdout.Write(b)
		case "version":
			fmt.Println("1.84.0")
			fmt.Println("  tailscale commit: 0123456789abcdef")
			fmt.Println("  go version: go1.25.0")
		}
		return 0
	case "stopped":
		fmt.Println("Tailscale is stopped.")
		return 1
	case "denied":
		fmt.Fprintln(os.Stderr, "Access denied: prefs write access denied")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Use 'sudo tailscale set --operator=$USER' to allow this user to change settings.")
		return 1
	case "daemon-down":
		fmt.Fprintln(os.Stderr, "failed to connect to local tailscaled; it doesn't appear to be running (sudo systemctl start tailscaled ?)")
		return 1
	case "partial":
		// Valid output, but a failing exit code.
		b, _ := os.ReadFile(filepath.Join("testdata", "status.json"))
		os.Stdout.Write(b)
		fmt.Fprintln(os.Stderr, "something went wrong halfway")
		return 3
	case "garbage":
		fmt.Println("<html>not what you expected</html>")
		return 0
	case "empty":
		return 0
	case "hang":
		time.Sleep(time.Minute)
		return 0
	}
	fmt.Fprintf(os.Stderr, "helper: unknown scenario %q\n", scenario)
	return 2
}

func TestStatus(t *testing.T) {
	for _, format := range []netstatus.Format{netstatus.FormatJSON, netstatus.FormatText} {
		t.Run(string(format), func(t *testing.T) {
			c, calls := fakeClient(t, "ok")
			c.Format = format
			r, err := c.Status(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if r.DeviceName != "workstation" || !r.Connected || r.Format != format {
				t.Errorf("got %+v", r)
			}
			if len(r.Peers) == 0 {
				t.Error("no peers")
			}
			want := [][]string{{"status", "--json"}}
			if format == netstatus.FormatText {
				want = [][]string{{"status"}}
			}
			if diff := cmp.Diff(want, calls()); diff != "" {
				t.Errorf("invocations (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNonZeroExitYieldsNoRecord(t *testing.T) {
	for _, scenario := range []string{"stopped", "denied", "daemon-down", "partial"} {
		for _, format := range []netstatus.Format{netstatus.FormatJSON, netstatus.FormatText} {
			t.Run(scenario+"/"+string(format), func(t *testing.T) {
				c, _ := fakeClient(t, scenario)
				c.Format = format
				r, err := c.Status(context.Background())
				if err == nil {
					t.Fatal("got nil error")
				}
				if r != nil {
					t.Errorf("got record %+v alongside error", r)
				}
				var ee *ExitError
				if !errors.As(err, &ee) {
					t.Fatalf("err = %T %v; want *ExitError", err, err)
				}
				if ee.Code == 0 {
					t.Errorf("Code = 0")
				}
			})
		}
	}
}

func TestExitErrorClassification(t *testing.T) {
	ctx := context.Background()

	c, _ := fakeClient(t, "stopped")
	c.Format = netstatus.FormatText
	_, err := c.Status(ctx)
	if !errors.Is(err, ErrStopped) {
		t.Errorf("stopped: errors.Is(%v, ErrStopped) = false", err)
	}
	if errors.Is(err, ErrNeedsLogin) {
		t.Errorf("stopped: matched ErrNeedsLogin")
	}

	c, _ = fakeClient(t, "denied")
	err = c.Down(ctx)
	if !IsAccessDenied(err) {
		t.Errorf("denied: IsAccessDenied(%v) = false", err)
	}
	if IsDaemonDown(err) {
		t.Errorf("denied: IsDaemonDown = true")
	}
	if got, want := err.Error(), "tailscale down: exit status 1: Access denied: prefs write access denied"; got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}

	c, _ = fakeClient(t, "daemon-down")
	_, err = c.Status(ctx)
	if !IsDaemonDown(err) {
		t.Errorf("daemon-down: IsDaemonDown(%v) = false", err)
	}
	if IsAccessDenied(err) {
		t.Errorf("daemon-down: IsAccessDenied = true")
	}
}

func TestUnparsableOutput(t *testing.T) {
	for _, scenario := range []string{"garbage", "empty"} {
		for _, format := range []netstatus.Format{netstatus.FormatJSON, netstatus.FormatText} {
			t.Run(scenario+"/"+string(format), func(t *testing.T) {
				c, _ := fakeClient(t, scenario)
				c.Format = format
				r, err := c.Status(context.Background())
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("err = %v; want *ParseError", err)
				}
				if pe.Format != string(format) {
					t.Errorf("Format = %q; want %q", pe.Format, format)
				}
				if r != nil {
					t.Errorf("got record alongside error")
				}
			})
		}
	}
}

func TestBinaryNotFound(t *testing.T) {
	for _, path := range []string{
		filepath.Join(t.TempDir(), "no-such-tailscale"),
		"tailtray-test-no-such-binary-in-path",
	} {
		c := &Client{Path: path, Logf: logger.TestLogger(t)}
		r, err := c.Status(context.Background())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v; want ErrNotFound", path, err)
		}
		if r != nil {
			t.Errorf("%s: got record alongside error", path)
		}
		var ee *ExitError
		if errors.As(err, &ee) {
			t.Errorf("%s: binary-not-found reported as exit error", path)
		}
	}
}

func TestTimeout(t *testing.T) {
	c, _ := fakeClient(t, "hang")
	c.Timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := c.Status(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want DeadlineExceeded", err)
	}
	if d := time.Since(start); d > 30*time.Second {
		t.Errorf("took %v", d)
	}
}

func TestSetCommands(t *testing.T) {
	ctx := context.Background()
	c, calls := fakeClient(t, "ok")
	steps := []func() error{
		func() error { return c.Up(ctx) },
		func() error { return c.Down(ctx) },
		func() error { return c.SetOperator(ctx, "alice") },
		func() error { return c.SetExitNode(ctx, "100.64.0.3") },
		func() error { return c.SetExitNode(ctx, "") },
		func() error { return c.SetExitNodeAllowLANAccess(ctx, true) },
	}
	for i, f := range steps {
		if err := f(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	want := [][]string{
		{"up"},
		{"down"},
		{"set", "--operator=alice"},
		{"set", "--exit-node=100.64.0.3"},
		{"set", "--exit-node="},
		{"set", "--exit-node-allow-lan-access=true"},
	}
	if diff := cmp.Diff(want, calls()); diff != "" {
		t.Errorf("invocations (-want +got):\n%s", diff)
	}
}

func TestSetRejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	c, calls := fakeClient(t, "ok")
	for _, user := range []string{"", "bob smith", "a=b", "x\ny"} {
		if err := c.SetOperator(ctx, user); err == nil {
			t.Errorf("SetOperator(%q) succeeded", user)
		}
	}
	if err := c.SetExitNode(ctx, "two words"); err == nil {
		t.Error("SetExitNode with a space succeeded")
	}
	if got := calls(); len(got) != 0 {
		t.Errorf("CLI invoked for invalid arguments: %q", got)
	}
}

func TestVersion(t *testing.T) {
	c, _ := fakeClient(t, "ok")
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != "1.84.0" {
		t.Errorf("Version = %q; want 1.84.0", v)
	}

	c, _ = fakeClient(t, "empty")
	if _, err := c.Version(context.Background()); err == nil {
		t.Error("empty version output: got nil error")
	}
}

func TestArgv(t *testing.T) {
	c := &Client{Path: "/usr/bin/tailscale", Prefix: []string{"sudo", "-n"}}
	got := c.argv("set", "--operator=bob")
	want := []string{"sudo", "-n", "/usr/bin/tailscale", "set", "--operator=bob"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("argv (-want +got):\n%s", diff)
	}
}
