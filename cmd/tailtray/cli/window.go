// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"sync"
	"syscall"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/client/viewmodel"
	"github.com/tailtray/tailtray/client/window"
	"github.com/tailtray/tailtray/ipn/conffile"
	"github.com/toqueteos/webbrowser"
)

func windowCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "window",
		ShortUsage: "tailtray window [--listen=ADDR] [--browser=false]",
		ShortHelp:  "Serve the status window and open it in a browser",
		LongHelp: strings.TrimSpace(`
The window command serves the status window on a local address and opens
it in the default browser. It runs until interrupted.
`),
		Exec: runWindow,
		FlagSet: (func() *flag.FlagSet {
			fs := newFlagSet("window")
			fs.StringVar(&windowArgs.listen, "listen", "", "listen address; use port 0 for automatic (default "+conffile.DefaultListen+")")
			fs.BoolVar(&windowArgs.browser, "browser", true, "open a browser")
			windowArgs.fs = fs
			return fs
		})(),
	}
}

var windowArgs struct {
	fs      *flag.FlagSet
	listen  string
	browser bool
}

func runWindow(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("too many non-flag arguments: %q", args)
	}
	cfg, c, err := setup()
	if err != nil {
		return err
	}
	addr := cfg.ListenAddr()
	if windowArgs.listen != "" {
		addr = windowArgs.listen
	}
	browser := cfg.OpenBrowser()
	if flagWasSet(windowArgs.fs, "browser") {
		browser = windowArgs.browser
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := newWindowServer(newModel(c), cfg)
	err = s.Run(ctx, addr, cfg.Poll(), browser)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newWindowServer(m *viewmodel.Model, cfg *conffile.Config) *window.Server {
	opts := window.Options{
		Logf: log.Printf,
		User: cfg.Operator,
	}
	if opts.User == "" {
		if u, err := user.Current(); err == nil {
			opts.User = u.Username
		}
	}
	if p := cfg.Poll(); p > 0 {
		opts.PageRefresh = p
	}
	return window.NewServer(m, opts)
}

// windowOpener starts the status window's server on first use and opens
// it in a browser every time.
type windowOpener struct {
	ctx  context.Context
	srv  *window.Server
	addr string

	// open opens a URL. It is webbrowser.Open unless overridden by tests.
	open func(string) error

	mu  sync.Mutex
	url string // set once the server is listening
}

func (o *windowOpener) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.url == "" {
		ln, url, err := window.Listen(o.addr)
		if err != nil {
			return err
		}
		o.url = url
		// The tray's Model is already polling.
		ctx := o.ctx
		go func() {
			if err := o.srv.Serve(ctx, ln, 0); err != nil {
				log.Printf("status window: %v", err)
			}
			// The next Open listens again rather than opening a dead URL.
			o.mu.Lock()
			if o.url == url {
				o.url = ""
			}
			o.mu.Unlock()
		}()
	}
	open := o.open
	if open == nil {
		open = webbrowser.Open
	}
	return open(o.url)
}
