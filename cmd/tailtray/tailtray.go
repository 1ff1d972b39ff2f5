// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The tailtray command is a tray icon and status window for Tailscale
// that drives the tailscale CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tailtray/tailtray/cmd/tailtray/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
