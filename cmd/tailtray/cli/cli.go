// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package cli contains the tailtray command line: the tray, the status
// window and a few thin wrappers around the tailscale CLI.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/client/tailcli"
	"github.com/tailtray/tailtray/client/viewmodel"
	"github.com/tailtray/tailtray/envknob"
	"github.com/tailtray/tailtray/ipn/conffile"
	"github.com/tailtray/tailtray/paths"
	"github.com/tailtray/tailtray/types/logger"
	"github.com/tailtray/tailtray/types/netstatus"
)

var Stderr io.Writer = os.Stderr
var Stdout io.Writer = os.Stdout

func errf(format string, a ...any) {
	fmt.Fprintf(Stderr, format, a...)
}

func printf(format string, a ...any) {
	fmt.Fprintf(Stdout, format, a...)
}

// outln is like fmt.Println, but writes to Stdout.
func outln(a ...any) {
	fmt.Fprintln(Stdout, a...)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(Stderr)
	return fs
}

var rootArgs struct {
	cli     string // path of the tailscale binary
	config  string // path of the HuJSON config file
	format  string // "json" or "text"
	poll    time.Duration
	verbose bool
}

// Run runs the CLI. The args do not include the binary name.
func Run(args []string) (err error) {
	if len(args) == 1 && (args[0] == "-V" || args[0] == "--version") {
		args = []string{"version"}
	}

	rootfs := newFlagSet("tailtray")
	rootfs.StringVar(&rootArgs.cli, "cli", "", "path of the tailscale binary (default: search $PATH and the usual install locations)")
	rootfs.StringVar(&rootArgs.config, "config", "", "path of the HuJSON config file (default: "+paths.DefaultConfigFile()+")")
	rootfs.StringVar(&rootArgs.format, "format", "", `status format to request from tailscale: "json" or "text"`)
	rootfs.DurationVar(&rootArgs.poll, "poll", 0, "status refresh interval (default: 5s)")
	rootfs.BoolVar(&rootArgs.verbose, "verbose", false, "log every tailscale invocation")

	rootCmd := &ffcli.Command{
		Name:       "tailtray",
		ShortUsage: "tailtray [flags] [<subcommand> [command flags]]",
		ShortHelp:  "A tray icon and status window for Tailscale.",
		LongHelp: strings.TrimSpace(`
Without a subcommand, tailtray runs the tray icon.

For help on subcommands, add --help after: "tailtray status --help".
`),
		Subcommands: []*ffcli.Command{
			trayCmd(),
			windowCmd(),
			statusCmd(),
			upCmd(),
			downCmd(),
			setOperatorCmd(),
			exitNodeCmd(),
			installAutostartCmd(),
			versionCmd(),
		},
		FlagSet:   rootfs,
		Exec:      runTray,
		UsageFunc: usageFunc,
	}
	for _, c := range rootCmd.Subcommands {
		if c.UsageFunc == nil {
			c.UsageFunc = usageFunc
		}
	}

	if err := rootCmd.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	err = rootCmd.Run(context.Background())
	if tailcli.IsAccessDenied(err) && runtime.GOOS != "windows" && os.Getuid() != 0 {
		return fmt.Errorf("%v\n\nUse 'sudo tailtray set-operator' to allow this user to manage Tailscale.", err)
	}
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

// loadConfig returns the effective configuration: the config file,
// overridden by the environment, overridden by root flags.
func loadConfig() (*conffile.Config, error) {
	if err := envknob.ApplyDiskConfig(); err != nil {
		return nil, err
	}
	path := rootArgs.config
	if path == "" {
		path = envknob.ConfigFile()
	}
	if path == "" {
		path = paths.DefaultConfigFile()
	}
	cfg, err := conffile.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if rootArgs.cli != "" {
		cfg.CLI = rootArgs.cli
	}
	if rootArgs.format != "" {
		cfg.Format = rootArgs.format
	}
	if rootArgs.poll > 0 {
		cfg.PollInterval = rootArgs.poll.String()
	}
	switch cfg.Format {
	case "", "json", "text":
	default:
		return nil, fmt.Errorf("invalid format %q; want \"json\" or \"text\"", cfg.Format)
	}
	return cfg, nil
}

// newClient returns the tailscale CLI client configured by cfg.
func newClient(cfg *conffile.Config, logf logger.Logf) (*tailcli.Client, error) {
	prefix, err := cfg.Prefix()
	if err != nil {
		return nil, err
	}
	c := &tailcli.Client{
		Path:    cfg.CLI,
		Prefix:  prefix,
		Format:  netstatus.FormatJSON,
		Timeout: cfg.Timeout(),
	}
	if cfg.Format == "text" {
		c.Format = netstatus.FormatText
	}
	if rootArgs.verbose {
		c.Logf = logger.WithPrefix(logf, "tailcli: ")
	}
	if envknob.DebugExec() {
		c.DebugLogf = logger.WithPrefix(logf, "tailcli: ")
	}
	return c, nil
}

// setup loads the configuration and returns it with a client.
func setup() (*conffile.Config, *tailcli.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := newClient(cfg, log.Printf)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

// newModel returns a Model driving c, logging to log.Printf when
// --verbose is set.
func newModel(c *tailcli.Client) *viewmodel.Model {
	return viewmodel.New(c, logger.Verbose(log.Printf, rootArgs.verbose))
}

func usageFunc(c *ffcli.Command) string {
	var b strings.Builder

	fmt.Fprintf(&b, "USAGE\n")
	if c.ShortUsage != "" {
		fmt.Fprintf(&b, "  %s\n", c.ShortUsage)
	} else {
		fmt.Fprintf(&b, "  %s\n", c.Name)
	}
	fmt.Fprintf(&b, "\n")

	if c.LongHelp != "" {
		fmt.Fprintf(&b, "%s\n\n", c.LongHelp)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(&b, "SUBCOMMANDS\n")
		tw := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
		for _, subcommand := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", subcommand.Name, subcommand.ShortHelp)
		}
		tw.Flush()
		fmt.Fprintf(&b, "\n")
	}

	if countFlags(c.FlagSet) > 0 {
		fmt.Fprintf(&b, "FLAGS\n")
		c.FlagSet.VisitAll(func(f *flag.Flag) {
			var s string
			name, usage := flag.UnquoteUsage(f)
			if isBoolFlag(f) {
				s = fmt.Sprintf("  --%s, --%s=false", f.Name, f.Name)
			} else {
				s = fmt.Sprintf("  --%s", f.Name) // Two spaces before --; see next two comments.
				if len(name) > 0 {
					s += " " + name
				}
			}
			// Four spaces before the tab triggers good alignment
			// for both 4- and 8-space tab stops.
			s += "\n    \t"
			s += strings.ReplaceAll(usage, "\n", "\n    \t")
			if f.DefValue != "" && f.DefValue != "0s" {
				s += fmt.Sprintf(" (default %s)", f.DefValue)
			}
			fmt.Fprintln(&b, s)
		})
		fmt.Fprintf(&b, "\n")
	}

	return strings.TrimSpace(b.String())
}

func isBoolFlag(f *flag.Flag) bool {
	bf, ok := f.Value.(interface {
		IsBoolFlag() bool
	})
	return ok && bf.IsBoolFlag()
}

func countFlags(fs *flag.FlagSet) (n int) {
	if fs == nil {
		return 0
	}
	fs.VisitAll(func(*flag.Flag) { n++ })
	return n
}
