// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package viewmodel

import (
	"context"
	"errors"

	"github.com/tailtray/tailtray/client/tailcli"
	"github.com/tailtray/tailtray/util/vizerror"
)

// Visible wraps err in a vizerror.Error whose message is suitable for
// showing in a menu or status page. errors.Is and errors.As still see
// the original error. It returns nil if err is nil.
func Visible(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := vizerror.As(err); ok {
		return err
	}
	var (
		ee *tailcli.ExitError
		pe *tailcli.ParseError
	)
	switch {
	case errors.Is(err, ErrBusy):
		return vizerror.WrapWithMessage(err, "Another Tailscale command is still running.")
	case errors.Is(err, tailcli.ErrNotFound):
		return vizerror.WrapWithMessage(err, "The tailscale command was not found. Is Tailscale installed?")
	case errors.Is(err, context.DeadlineExceeded):
		return vizerror.WrapWithMessage(err, "The tailscale command timed out.")
	case errors.Is(err, tailcli.ErrStopped):
		return vizerror.WrapWithMessage(err, tailcli.ErrStopped.Error())
	case errors.Is(err, tailcli.ErrNeedsLogin):
		return vizerror.WrapWithMessage(err, tailcli.ErrNeedsLogin.Error())
	case errors.Is(err, tailcli.ErrNeedsMachineAuth):
		return vizerror.WrapWithMessage(err, tailcli.ErrNeedsMachineAuth.Error())
	case tailcli.IsAccessDenied(err):
		return vizerror.WrapWithMessage(err, "No permission to manage Tailscale. Set operator with: sudo tailscale set --operator=$USER")
	case tailcli.IsDaemonDown(err):
		return vizerror.WrapWithMessage(err, "The Tailscale service (tailscaled) is not running.")
	case errors.As(err, &pe):
		return vizerror.WrapWithMessage(err, "Unexpected output from the tailscale command.")
	case errors.As(err, &ee):
		return vizerror.WrapWithMessage(err, ee.Error())
	}
	return vizerror.Wrap(err)
}

// UserMessage returns the text to show for err, or the empty string if
// err is nil.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return Visible(err).Error()
}
