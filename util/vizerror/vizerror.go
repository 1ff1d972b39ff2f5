// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package vizerror provides types and utility funcs for handling visible errors
// that are safe to display to end users.
package vizerror

import (
	"errors"
	"fmt"
)

// Error is an error that is safe to display to end users.
type Error struct {
	publicErr error // visible to end users
	wrapped   error // internal
}

// Error implements error. It returns the public message.
func (e Error) Error() string {
	return e.publicErr.Error()
}

// New returns an error that formats as the given text. It always returns a vizerror.Error.
func New(publicMsg string) error {
	err := errors.New(publicMsg)
	return Error{
		publicErr: err,
		wrapped:   err,
	}
}

// Errorf returns an Error with the specified publicMsgFormat and values. It always returns a vizerror.Error.
//
// Warning: avoid using an error as one of the format arguments, as this will cause the text
// of that error to be displayed to the end user (which is probably not what you want).
func Errorf(publicMsgFormat string, a ...any) error {
	err := fmt.Errorf(publicMsgFormat, a...)
	return Error{
		publicErr: err,
		wrapped:   err,
	}
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.wrapped
}

// Wrap wraps publicErr with a vizerror.Error.
func Wrap(publicErr error) error {
	if publicErr == nil {
		return nil
	}
	return Error{
		publicErr: publicErr,
		wrapped:   publicErr,
	}
}

// WrapWithMessage wraps the given error with a vizerror.Error that formats as the given message.
// Errors.Is and errors.As still see through to wrapped.
func WrapWithMessage(wrapped error, publicMsg string) error {
	return Error{
		publicErr: errors.New(publicMsg),
		wrapped:   wrapped,
	}
}

// As returns the first vizerror.Error in err's chain.
func As(err error) (e Error, ok bool) {
	ok = errors.As(err, &e)
	return
}
