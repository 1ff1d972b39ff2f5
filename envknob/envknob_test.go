// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package envknob

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetenvUpdatesRegistered(t *testing.T) {
	const k = "TAILTRAY_TEST_KNOB_DUR"
	get := RegisterDuration(k)
	t.Cleanup(func() { Setenv(k, "") })

	if got := get(); got != 0 {
		t.Fatalf("unset = %v; want 0", got)
	}
	Setenv(k, "3s")
	if got := get(); got != 3*time.Second {
		t.Fatalf("after Setenv = %v; want 3s", got)
	}
}

func TestApplyKeyValueEnv(t *testing.T) {
	const k1, k2 = "TAILTRAY_TEST_KV1", "TAILTRAY_TEST_KV2"
	t.Cleanup(func() {
		Setenv(k1, "")
		Setenv(k2, "")
	})
	in := strings.Join([]string{
		"# comment",
		"",
		k1 + " = plain",
		k2 + `="quoted value"`,
		"novalue",
	}, "\n")
	if err := applyKeyValueEnv(strings.NewReader(in)); err != nil {
		t.Fatal(err)
	}
	if got := String(k1); got != "plain" {
		t.Errorf("%s = %q; want %q", k1, got, "plain")
	}
	if got := String(k2); got != "quoted value" {
		t.Errorf("%s = %q; want %q", k2, got, "quoted value")
	}

	var logged []string
	LogCurrent(func(format string, args ...any) { logged = append(logged, format) })
	if len(logged) == 0 {
		t.Errorf("LogCurrent logged nothing")
	}
}

func TestApplyKeyValueEnvBadQuote(t *testing.T) {
	if err := applyKeyValueEnv(strings.NewReader(`TAILTRAY_TEST_BAD="unterminated`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestApplyDiskConfig(t *testing.T) {
	const k = "TAILTRAY_TEST_DISK"
	t.Cleanup(func() { Setenv(k, "") })

	t.Setenv("TAILTRAY_ENV_FILE", "")
	if err := ApplyDiskConfig(); err != nil {
		t.Fatalf("without TAILTRAY_ENV_FILE: %v", err)
	}

	t.Setenv("TAILTRAY_ENV_FILE", filepath.Join(t.TempDir(), "missing.txt"))
	if err := ApplyDiskConfig(); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	name := filepath.Join(t.TempDir(), "tailtray-env.txt")
	if err := os.WriteFile(name, []byte(k+"=from-disk\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TAILTRAY_ENV_FILE", name)
	if err := ApplyDiskConfig(); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(k); got != "from-disk" {
		t.Errorf("%s = %q; want %q", k, got, "from-disk")
	}
}
