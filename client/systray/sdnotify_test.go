// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package systray

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestSDNotifierNil(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	s := newSDNotifier(t.Logf)
	if s != nil {
		t.Fatalf("newSDNotifier without NOTIFY_SOCKET = %v, want nil", s)
	}
	// Must not panic.
	s.notify("READY=1")
	s.close()
}

func TestSDNotifier(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no unixgram sockets")
	}
	// Unix socket paths are short; t.TempDir can be too long on macOS.
	dir, err := os.MkdirTemp("", "sd")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "notify")
	ln, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	t.Setenv("NOTIFY_SOCKET", path)

	s := newSDNotifier(t.Logf)
	if s == nil {
		t.Fatal("newSDNotifier returned nil with NOTIFY_SOCKET set")
	}
	defer s.close()
	s.notify("READY=1")

	ln.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 256)
	n, err := ln.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != "READY=1" {
		t.Errorf("got %q, want %q", got, "READY=1")
	}
}
