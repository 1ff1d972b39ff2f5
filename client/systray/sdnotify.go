// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package systray

import (
	"errors"
	"os"

	"github.com/mdlayher/sdnotify"
	"github.com/tailtray/tailtray/types/logger"
)

// sdNotifier sends readiness and status updates to systemd when the
// tray runs as a Type=notify unit. A nil *sdNotifier does nothing.
type sdNotifier struct {
	n    *sdnotify.Notifier
	logf logger.Logf
}

// newSDNotifier returns a notifier for $NOTIFY_SOCKET, or nil if the
// process was not started by systemd.
func newSDNotifier(logf logger.Logf) *sdNotifier {
	n, err := sdnotify.New()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logf("sdnotify: %v", err)
		}
		return nil
	}
	return &sdNotifier{n: n, logf: logf}
}

func (s *sdNotifier) notify(state ...string) {
	if s == nil {
		return
	}
	if err := s.n.Notify(state...); err != nil {
		s.logf("sdnotify: %v", err)
	}
}

func (s *sdNotifier) close() {
	if s == nil {
		return
	}
	s.n.Close()
}
