// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"context"
	"flag"
	"fmt"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailtray/tailtray/version"
)

func versionCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "tailtray version [flags]",
		ShortHelp:  "Print tailtray version",
		FlagSet: (func() *flag.FlagSet {
			fs := newFlagSet("version")
			fs.BoolVar(&versionArgs.cli, "cli", false, "also print the version of the tailscale CLI")
			fs.BoolVar(&versionArgs.json, "json", false, "output in JSON format")
			return fs
		})(),
		Exec: runVersion,
	}
}

var versionArgs struct {
	cli  bool // also run `tailscale version`
	json bool
}

func runVersion(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("too many non-flag arguments: %q", args)
	}
	var cliVer string
	if versionArgs.cli {
		_, c, err := setup()
		if err != nil {
			return err
		}
		cliVer, err = c.Version(ctx)
		if err != nil {
			return err
		}
	}

	if versionArgs.json {
		m := version.GetMeta()
		m.CLILong = cliVer
		return jsonv2.MarshalWrite(Stdout, m, jsontext.WithIndent("\t"))
	}
	if cliVer == "" {
		outln(version.String())
		return nil
	}
	printf("tailtray: %s\n", version.String())
	printf("tailscale: %s\n", cliVer)
	return nil
}
