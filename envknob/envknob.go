// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package envknob provides access to environment-variable tweakable
// settings.
//
// Knobs override the config file but are themselves overridden by
// command-line flags. They are mostly useful for packagers and for
// debugging; they are not a stable interface.
package envknob

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	set     = map[string]string{}
	regStr  = map[string]*string{}
	regBool = map[string]*bool{}
	regDur  = map[string]*time.Duration{}
)

func noteEnv(k, v string) {
	mu.Lock()
	defer mu.Unlock()
	noteEnvLocked(k, v)
}

func noteEnvLocked(k, v string) {
	if v != "" {
		set[k] = v
	} else {
		delete(set, k)
	}
}

// logf is logger.Logf, but logger depends on envknob, so for circular
// dependency reasons, make a type alias.
type logf = func(format string, args ...any)

// LogCurrent logs the currently set environment knobs.
func LogCurrent(logf logf) {
	mu.Lock()
	defer mu.Unlock()

	list := make([]string, 0, len(set))
	for k := range set {
		list = append(list, k)
	}
	sort.Strings(list)
	for _, k := range list {
		logf("envknob: %s=%q", k, set[k])
	}
}

// Setenv changes an environment variable.
//
// It is not safe for concurrent reading of environment variables via the
// Register functions. All Setenv calls are meant to happen early in main before
// any goroutines are started.
func Setenv(envVar, val string) {
	mu.Lock()
	defer mu.Unlock()
	os.Setenv(envVar, val)
	noteEnvLocked(envVar, val)

	if p := regStr[envVar]; p != nil {
		*p = val
	}
	if p := regBool[envVar]; p != nil {
		setBoolLocked(p, envVar, val)
	}
	if p := regDur[envVar]; p != nil {
		setDurationLocked(p, envVar, val)
	}
}

// String returns the named environment variable, using os.Getenv.
//
// If the variable is non-empty, it's also tracked & logged as being
// an in-use knob.
func String(envVar string) string {
	v := os.Getenv(envVar)
	noteEnv(envVar, v)
	return v
}

// RegisterString returns a func that gets the named environment variable,
// without a map lookup per call. It assumes that mutations happen via
// envknob.Setenv.
func RegisterString(envVar string) func() string {
	mu.Lock()
	defer mu.Unlock()
	p, ok := regStr[envVar]
	if !ok {
		val := os.Getenv(envVar)
		if val != "" {
			noteEnvLocked(envVar, val)
		}
		p = &val
		regStr[envVar] = p
	}
	return func() string { return *p }
}

// RegisterBool returns a func that gets the named environment variable,
// without a map lookup per call. It assumes that mutations happen via
// envknob.Setenv.
func RegisterBool(envVar string) func() bool {
	mu.Lock()
	defer mu.Unlock()
	p, ok := regBool[envVar]
	if !ok {
		var b bool
		p = &b
		setBoolLocked(p, envVar, os.Getenv(envVar))
		regBool[envVar] = p
	}
	return func() bool { return *p }
}

// RegisterDuration returns a func that gets the named environment variable
// as a time.Duration. An unset variable yields zero.
func RegisterDuration(envVar string) func() time.Duration {
	mu.Lock()
	defer mu.Unlock()
	p, ok := regDur[envVar]
	if !ok {
		var d time.Duration
		p = &d
		setDurationLocked(p, envVar, os.Getenv(envVar))
		regDur[envVar] = p
	}
	return func() time.Duration { return *p }
}

func setBoolLocked(p *bool, envVar, val string) {
	noteEnvLocked(envVar, val)
	if val == "" {
		*p = false
		return
	}
	var err error
	*p, err = strconv.ParseBool(val)
	if err != nil {
		log.Fatalf("invalid boolean environment variable %s value %q", envVar, val)
	}
}

func setDurationLocked(p *time.Duration, envVar, val string) {
	noteEnvLocked(envVar, val)
	if val == "" {
		*p = 0
		return
	}
	var err error
	*p, err = time.ParseDuration(val)
	if err != nil {
		log.Fatalf("invalid duration environment variable %s value %q", envVar, val)
	}
}

var (
	cliPath    = RegisterString("TAILTRAY_CLI")
	cliPrefix  = RegisterString("TAILTRAY_CLI_PREFIX")
	cliFormat  = RegisterString("TAILTRAY_FORMAT")
	pollEvery  = RegisterDuration("TAILTRAY_POLL")
	cmdTimeout = RegisterDuration("TAILTRAY_CMD_TIMEOUT")
	debugExec  = RegisterBool("TAILTRAY_DEBUG_EXEC")
	configFile = RegisterString("TAILTRAY_CONFIG")
	listenAddr = RegisterString("TAILTRAY_LISTEN")
)

// CLIPath returns the path of the tailscale binary from TAILTRAY_CLI, if set.
func CLIPath() string { return cliPath() }

// CLIPrefix returns the command prefix (such as "sudo -n") that wraps
// every tailscale invocation, from TAILTRAY_CLI_PREFIX.
func CLIPrefix() string { return cliPrefix() }

// Format returns the preferred status output format ("json" or "text").
func Format() string { return cliFormat() }

// PollInterval returns the status polling interval from TAILTRAY_POLL.
func PollInterval() time.Duration { return pollEvery() }

// CommandTimeout returns the per-invocation timeout from TAILTRAY_CMD_TIMEOUT.
func CommandTimeout() time.Duration { return cmdTimeout() }

// DebugExec reports whether subprocess output should be logged.
func DebugExec() bool { return debugExec() }

// ConfigFile returns the config file path from TAILTRAY_CONFIG.
func ConfigFile() string { return configFile() }

// ListenAddr returns the status window listen address from TAILTRAY_LISTEN.
func ListenAddr() string { return listenAddr() }

// ApplyDiskConfig reads the key=value file named by TAILTRAY_ENV_FILE, if
// any, and applies each line with Setenv. It exists so that a packaged
// autostart entry can carry settings without editing the command line.
func ApplyDiskConfig() error {
	name := String("TAILTRAY_ENV_FILE")
	if name == "" {
		return nil
	}
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	if err := applyKeyValueEnv(f); err != nil {
		return fmt.Errorf("error parsing %s: %w", name, err)
	}
	return nil
}

// applyKeyValueEnv reads key=value lines r and calls Setenv for each.
//
// Empty lines and lines beginning with '#' are skipped.
//
// Values can be double quoted, in which case they're unquoted using
// strconv.Unquote.
func applyKeyValueEnv(r io.Reader) error {
	bs := bufio.NewScanner(r)
	for bs.Scan() {
		line := strings.TrimSpace(bs.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, `"`) {
			var err error
			v, err = strconv.Unquote(v)
			if err != nil {
				return fmt.Errorf("invalid value in line %q: %v", line, err)
			}
		}
		Setenv(k, v)
	}
	return bs.Err()
}
