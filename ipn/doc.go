// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package ipn holds the names tailscaled uses for its backend states,
// as reported by `tailscale status`.
//
// IPN is the abbreviated name for a Tailscale network.
package ipn
