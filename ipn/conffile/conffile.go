// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package conffile contains code to load and validate tailtray's
// HuJSON config file.
package conffile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/kballard/go-shellquote"
	"github.com/tailscale/hujson"
	"github.com/tailtray/tailtray/envknob"
)

// CurrentVersion is the config file version written by this release.
const CurrentVersion = "alpha0"

// Defaults used when neither the config file, the environment nor a flag
// sets a value.
const (
	DefaultPollInterval   = 5 * time.Second
	DefaultCommandTimeout = 30 * time.Second
	DefaultListen         = "127.0.0.1:0"
)

// Config describes a config file.
type Config struct {
	Path string `json:"-"` // disk path of HuJSON, or empty if defaults only
	Raw  []byte `json:"-"` // raw bytes from disk, in HuJSON form

	// Version is the config file version. Empty means CurrentVersion.
	Version string `json:",omitempty"`

	// CLI is the path of the tailscale binary. Empty means search
	// the usual locations.
	CLI string `json:",omitempty"`

	// CLIPrefix is a command line, in shell syntax, prepended to every
	// invocation, such as "sudo -n" or "pkexec".
	CLIPrefix string `json:",omitempty"`

	// Format is "json" (the default) or "text".
	Format string `json:",omitempty"`

	// PollInterval is how often status is refreshed, as a Go duration
	// string such as "10s". "0" disables polling.
	PollInterval string `json:",omitempty"`

	// CommandTimeout bounds each tailscale invocation.
	CommandTimeout string `json:",omitempty"`

	// Operator is the user name suggested by "Set operator".
	// Empty means the current user.
	Operator string `json:",omitempty"`

	// Listen is the address of the status window's local web server.
	Listen string `json:",omitempty"`

	// Browser is whether the status window opens a browser.
	// Nil means true.
	Browser *bool `json:",omitempty"`
}

// Load reads and parses the config file at path.
//
// A missing file is not an error: Load returns a Config holding
// defaults only, with an empty Path.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	c, err = Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse parses HuJSON config bytes.
func Parse(raw []byte) (*Config, error) {
	c := &Config{Raw: raw}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("HuJSON syntax: %w", err)
	}
	if err := jsonv2.Unmarshal(std, c, jsonv2.RejectUnknownMembers(true)); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Version {
	case "", CurrentVersion:
	default:
		return fmt.Errorf("unsupported config file version %q", c.Version)
	}
	switch c.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid Format %q; want \"json\" or \"text\"", c.Format)
	}
	if _, err := parseDuration("PollInterval", c.PollInterval); err != nil {
		return err
	}
	if _, err := parseDuration("CommandTimeout", c.CommandTimeout); err != nil {
		return err
	}
	if _, err := shellquote.Split(c.CLIPrefix); err != nil {
		return fmt.Errorf("invalid CLIPrefix %q: %w", c.CLIPrefix, err)
	}
	if strings.ContainsAny(c.Operator, " \t=") {
		return fmt.Errorf("invalid Operator %q", c.Operator)
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative", field, s)
	}
	return d, nil
}

// ApplyEnv overrides fields of c from the TAILTRAY_* environment knobs.
func (c *Config) ApplyEnv() {
	if v := envknob.CLIPath(); v != "" {
		c.CLI = v
	}
	if v := envknob.CLIPrefix(); v != "" {
		c.CLIPrefix = v
	}
	if v := envknob.Format(); v != "" {
		c.Format = v
	}
	if v := envknob.PollInterval(); v != 0 {
		c.PollInterval = v.String()
	}
	if v := envknob.CommandTimeout(); v != 0 {
		c.CommandTimeout = v.String()
	}
	if v := envknob.ListenAddr(); v != "" {
		c.Listen = v
	}
}

// Poll returns the polling interval, or DefaultPollInterval if unset.
func (c *Config) Poll() time.Duration {
	if c.PollInterval == "" {
		return DefaultPollInterval
	}
	d, _ := parseDuration("PollInterval", c.PollInterval)
	return d
}

// Timeout returns the per-command timeout, or DefaultCommandTimeout if unset.
func (c *Config) Timeout() time.Duration {
	d, _ := parseDuration("CommandTimeout", c.CommandTimeout)
	if d == 0 {
		return DefaultCommandTimeout
	}
	return d
}

// Prefix returns CLIPrefix split into arguments.
func (c *Config) Prefix() ([]string, error) {
	return shellquote.Split(c.CLIPrefix)
}

// ListenAddr returns the status window address, or DefaultListen if unset.
func (c *Config) ListenAddr() string {
	if c.Listen == "" {
		return DefaultListen
	}
	return c.Listen
}

// OpenBrowser reports whether the status window should open a browser.
func (c *Config) OpenBrowser() bool {
	return c.Browser == nil || *c.Browser
}
