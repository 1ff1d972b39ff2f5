// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	jsonv2 "github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/kballard/go-shellquote"
	"github.com/tailtray/tailtray/client/tailcli"
	"github.com/tailtray/tailtray/client/window"
	"github.com/tailtray/tailtray/envknob"
	"github.com/tailtray/tailtray/ipn/conffile"
	"github.com/tailtray/tailtray/types/netstatus"
	"github.com/tailtray/tailtray/version"
)

// TestHelperProcess is not a real test. It is run as the tailscale binary
// by the other tests, keeping its state in files under
// TAILTRAY_TEST_STATE.
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
	os.Exit(fakeTailscale(os.Getenv("TAILTRAY_TEST_STATE"), args[2:]))
}

const fakeTable = `100.101.102.103  workstation  alice@          linux    -
100.64.0.3       exit-fra     tagged-devices  linux    %s
100.64.0.4       pixel-8      alice@          android  offline, last seen 3d ago
100.64.0.2       nas          alice@          linux    -

# Health check:
#     - Tailscale could not connect to the 'fra' relay server.
`

func fakeTailscale(dir string, args []string) int {
	read := func(name string) string {
		b, _ := os.ReadFile(filepath.Join(dir, name))
		return string(b)
	}
	write := func(name, val string) {
		os.WriteFile(filepath.Join(dir, name), []byte(val), 0o600)
	}
	if f, err := os.OpenFile(filepath.Join(dir, "log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
		fmt.Fprintln(f, strings.Join(args, " "))
		f.Close()
	}

	cmd := strings.Join(args, " ")
	switch {
	case cmd == "status":
		if read("state") == "down" {
			fmt.Println("Tailscale is stopped.")
			return 1
		}
		exit := "idle; offers exit node"
		if read("exit-node") == "100.64.0.3" {
			exit = "active; exit node; direct 203.0.113.7:41641, tx 2048 rx 1024"
		}
		fmt.Printf(fakeTable, exit)
	case cmd == "up":
		write("state", "up")
	case cmd == "down":
		write("state", "down")
	case cmd == "version":
		fmt.Println("1.84.0")
		fmt.Println("  go version: go1.25.0")
	case strings.HasPrefix(cmd, "set --operator="):
		if read("deny") != "" {
			fmt.Fprintln(os.Stderr, "Access denied: prefs write access denied")
			return 1
		}
	case strings.HasPrefix(cmd, "set --exit-node="):
		write("exit-node", strings.TrimPrefix(cmd, "set --exit-node="))
	case strings.HasPrefix(cmd, "set --exit-node-allow-lan-access="):
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return 2
	}
	return 0
}

type cliEnv struct {
	c      *qt.C
	dir    string
	config string
}

// newCLIEnv writes a config file pointing tailtray at the fake tailscale.
func newCLIEnv(t *testing.T) *cliEnv {
	c := qt.New(t)
	dir := t.TempDir()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("TAILTRAY_TEST_STATE", dir)

	prefix, err := jsonv2.Marshal(shellquote.Join(os.Args[0], "-test.run=^TestHelperProcess$", "--"))
	c.Assert(err, qt.IsNil)
	cfg := fmt.Sprintf(`{
		// Fake tailscale; see TestHelperProcess.
		"CLI": "tailscale",
		"CLIPrefix": %s,
		"Format": "text",
		"CommandTimeout": "30s",
	}`, prefix)
	path := filepath.Join(dir, "tailtray.hujson")
	c.Assert(os.WriteFile(path, []byte(cfg), 0o600), qt.IsNil)
	return &cliEnv{c: c, dir: dir, config: path}
}

// run runs tailtray with args and returns its standard output.
func (e *cliEnv) run(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &stdout, &stderr
	defer func() { Stdout, Stderr = oldOut, oldErr }()
	err := Run(append([]string{"--config", e.config}, args...))
	return stdout.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	out, err := e.run(args...)
	e.c.Assert(err, qt.IsNil, qt.Commentf("tailtray %s", strings.Join(args, " ")))
	return out
}

// invocations returns the tailscale commands run so far.
func (e *cliEnv) invocations() []string {
	b, _ := os.ReadFile(filepath.Join(e.dir, "log"))
	return strings.Fields(strings.ReplaceAll(strings.TrimSpace(string(b)), " ", "_"))
}

func TestStatusCommand(t *testing.T) {
	e := newCLIEnv(t)
	got := e.mustRun("status")
	want := "" +
		"100.101.102.103  workstation                           this device\n" +
		"100.64.0.3       exit-fra     tagged-devices  linux    online; offers exit node\n" +
		"100.64.0.2       nas          alice@          linux    online\n" +
		"100.64.0.4       pixel-8      alice@          android  offline\n" +
		"\n" +
		"# Health check:\n" +
		"#     - Tailscale could not connect to the 'fra' relay server.\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status (-want +got):\n%s", diff)
	}

	got = e.mustRun("status", "--active", "--peers=true")
	e.c.Assert(got, qt.Not(qt.Contains), "pixel-8")

	got = e.mustRun("status", "--peers=false")
	e.c.Assert(got, qt.Not(qt.Contains), "nas")
	e.c.Assert(got, qt.Not(qt.Contains), "No peers")
}

func TestStatusJSONCommand(t *testing.T) {
	e := newCLIEnv(t)
	out := e.mustRun("status", "--json")
	var rec netstatus.Record
	e.c.Assert(jsonv2.Unmarshal([]byte(out), &rec), qt.IsNil)
	e.c.Assert(rec.DeviceName, qt.Equals, "workstation")
	e.c.Assert(rec.Connected, qt.IsTrue)
	e.c.Assert(rec.Peers, qt.HasLen, 3)
	e.c.Assert(rec.Format, qt.Equals, netstatus.FormatText)
}

func TestUpDown(t *testing.T) {
	e := newCLIEnv(t)
	e.c.Assert(e.mustRun("down"), qt.Equals, "Tailscale is stopped.\n")
	e.c.Assert(e.mustRun("status"), qt.Equals, "Tailscale is stopped.\n")
	e.c.Assert(e.mustRun("up"), qt.Equals, "Connected.\n")
	e.c.Assert(e.invocations(), qt.DeepEquals, []string{"down", "status", "status", "up", "status"})

	_, err := e.run("up", "extra")
	e.c.Assert(err, qt.ErrorMatches, `too many non-flag arguments.*`)
}

func TestExitNodeCommand(t *testing.T) {
	e := newCLIEnv(t)
	list := e.mustRun("exit-node")
	e.c.Assert(list, qt.Equals, "IP          NAME      STATUS\n100.64.0.3  exit-fra  online\n")

	e.c.Assert(e.mustRun("exit-node", "exit-fra"), qt.Equals, "Using exit node exit-fra (100.64.0.3).\n")
	e.c.Assert(e.mustRun("exit-node"), qt.Contains, "online; selected")
	e.c.Assert(e.mustRun("exit-node", "none"), qt.Equals, "Not using an exit node.\n")

	_, err := e.run("exit-node", "pixel-8")
	e.c.Assert(err, qt.ErrorMatches, `no exit node "pixel-8".*`)

	e.mustRun("exit-node", "--allow-lan-access")

	e.c.Assert(e.invocations(), qt.DeepEquals, []string{
		"status",
		"status", "set_--exit-node=100.64.0.3", "status",
		"status",
		"set_--exit-node=", "status",
		"status",
		"set_--exit-node-allow-lan-access=true", "status",
	})
}

func TestSetOperatorCommand(t *testing.T) {
	e := newCLIEnv(t)
	e.c.Assert(e.mustRun("set-operator", "bob"), qt.Equals, "Operator updated.\n")
	e.c.Assert(e.invocations()[0], qt.Equals, "set_--operator=bob")

	os.WriteFile(filepath.Join(e.dir, "deny"), []byte("1"), 0o600)
	_, err := e.run("set-operator", "bob")
	e.c.Assert(err, qt.ErrorMatches, `(?s).*Access denied.*`)
	if os.Getuid() != 0 {
		e.c.Assert(err, qt.ErrorMatches, `(?s).*Use 'sudo tailtray set-operator'.*`)
	} else {
		e.c.Assert(tailcli.IsAccessDenied(err), qt.IsTrue)
	}
}

func TestVersionCommand(t *testing.T) {
	e := newCLIEnv(t)
	e.c.Assert(e.mustRun("version"), qt.Equals, version.String()+"\n")

	var stdout bytes.Buffer
	old := Stdout
	Stdout = &stdout
	err := Run([]string{"--version"})
	Stdout = old
	e.c.Assert(err, qt.IsNil)
	e.c.Assert(stdout.String(), qt.Equals, version.String()+"\n")

	out := e.mustRun("version", "--cli")
	e.c.Assert(out, qt.Contains, "tailscale: 1.84.0\n")

	out = e.mustRun("version", "--json", "--cli")
	var m version.Meta
	e.c.Assert(jsonv2.Unmarshal([]byte(out), &m), qt.IsNil)
	e.c.Assert(m.CLILong, qt.Equals, "1.84.0")
	e.c.Assert(m.Short, qt.Equals, version.Short)
}

func TestBinaryNotFound(t *testing.T) {
	e := newCLIEnv(t)
	cfg := filepath.Join(e.dir, "bare.hujson")
	e.c.Assert(os.WriteFile(cfg, []byte(`{"CLI": "/nonexistent/tailscale"}`), 0o600), qt.IsNil)
	err := Run([]string{"--config", cfg, "status"})
	e.c.Assert(errors.Is(err, tailcli.ErrNotFound), qt.IsTrue, qt.Commentf("%v", err))
}

func TestLoadConfig(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "tailtray.hujson")
	c.Assert(os.WriteFile(path, []byte(`{
		"CLI": "/opt/tailscale",
		"Format": "text",
		"PollInterval": "10s", // trailing comma and comment allowed
	}`), 0o600), qt.IsNil)

	defer func(old string) { envknob.Setenv("TAILTRAY_CLI_PREFIX", old) }(os.Getenv("TAILTRAY_CLI_PREFIX"))
	envknob.Setenv("TAILTRAY_CLI_PREFIX", "sudo -n")

	rootArgs.config = path
	rootArgs.format = ""
	rootArgs.cli = ""
	rootArgs.poll = 2 * time.Second
	defer func() { rootArgs.config, rootArgs.poll = "", 0 }()

	cfg, err := loadConfig()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.CLI, qt.Equals, "/opt/tailscale")
	c.Assert(cfg.Poll(), qt.Equals, 2*time.Second)
	prefix, err := cfg.Prefix()
	c.Assert(err, qt.IsNil)
	c.Assert(prefix, qt.DeepEquals, []string{"sudo", "-n"})

	cl, err := newClient(cfg, t.Logf)
	c.Assert(err, qt.IsNil)
	c.Assert(cl.Format, qt.Equals, netstatus.FormatText)
	c.Assert(cl.Timeout, qt.Equals, conffile.DefaultCommandTimeout)

	rootArgs.format = "xml"
	_, err = loadConfig()
	c.Assert(err, qt.ErrorMatches, `invalid format "xml".*`)
	rootArgs.format = ""

	c.Assert(os.WriteFile(path, []byte(`{"Bogus": 1}`), 0o600), qt.IsNil)
	_, err = loadConfig()
	c.Assert(err, qt.ErrorMatches, `error parsing config file .*`)
}

func TestWindowOpener(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := &tailcli.Client{Path: filepath.Join(t.TempDir(), "tailscale")}
	var opened []string
	o := &windowOpener{
		ctx:  ctx,
		srv:  window.NewServer(newModel(cl), window.Options{}),
		addr: "127.0.0.1:0",
		open: func(u string) error {
			opened = append(opened, u)
			return nil
		},
	}
	c.Assert(o.Open(), qt.IsNil)
	c.Assert(o.Open(), qt.IsNil)
	c.Assert(opened, qt.HasLen, 2)
	c.Assert(opened[0], qt.Equals, opened[1])
	c.Assert(strings.HasPrefix(opened[0], "http://127.0.0.1:"), qt.IsTrue)
}

func TestWindowOpenerRestartsAfterServeExits(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())

	cl := &tailcli.Client{Path: filepath.Join(t.TempDir(), "tailscale")}
	var opened []string
	o := &windowOpener{
		ctx:  ctx,
		srv:  window.NewServer(newModel(cl), window.Options{}),
		addr: "127.0.0.1:0",
		open: func(u string) error {
			opened = append(opened, u)
			return nil
		},
	}
	c.Assert(o.Open(), qt.IsNil)
	cancel()

	currentURL := func() string {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.url
	}
	deadline := time.Now().Add(10 * time.Second)
	for currentURL() != "" {
		if time.Now().After(deadline) {
			c.Fatal("URL still set after the server stopped")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	o.mu.Lock()
	o.ctx = ctx2
	o.mu.Unlock()
	c.Assert(o.Open(), qt.IsNil)
	c.Assert(opened, qt.HasLen, 2)
	c.Assert(opened[1], qt.Not(qt.Equals), "")

	resp, err := http.Get(opened[1] + "window.css")
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
}

func TestUsage(t *testing.T) {
	var stderr bytes.Buffer
	old := Stderr
	Stderr = &stderr
	defer func() { Stderr = old }()

	c := qt.New(t)
	c.Assert(Run([]string{"--help"}), qt.IsNil)
	for _, want := range []string{"SUBCOMMANDS", "tray", "window", "status", "exit-node", "--poll"} {
		c.Check(stderr.String(), qt.Contains, want)
	}
}
