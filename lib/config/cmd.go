// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/ghodss/yaml"
	"github.com/ragpan29/Azure/lib/cmd"
	"github.com/ragpan29/Azure/sdk/go/ctxlog"
)

var DumpCommand dumpCommand

type dumpCommand struct{}

func (dumpCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()

	flags := flag.NewFlagSet("", flag.ContinueOnError)
	configFile := flags.String("config", DefaultConfigFile, "config `file` (\"-\" for stdin)")
	showSecrets := flags.Bool("show-secrets", false, "print account keys and client secrets instead of redacting them")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	log := ctxlog.New(stderr, "text", "info")
	cfg, err := LoadFile(*configFile, stdin, log)
	if err != nil {
		return 1
	}
	var out []byte
	if *showSecrets {
		out, err = yaml.Marshal(cfg)
	} else {
		var m map[string]interface{}
		m, err = Redacted(cfg)
		if err != nil {
			return 1
		}
		out, err = yaml.Marshal(m)
	}
	if err != nil {
		return 1
	}
	_, err = stdout.Write(out)
	if err != nil {
		return 1
	}
	return 0
}

var CheckCommand checkCommand

type checkCommand struct{}

func (checkCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()

	flags := flag.NewFlagSet("", flag.ContinueOnError)
	configFile := flags.String("config", DefaultConfigFile, "config `file` (\"-\" for stdin)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	log := ctxlog.New(stderr, "text", "info")
	cfg, err := LoadFile(*configFile, stdin, log)
	if err != nil {
		return 1
	}
	err = cfg.Check()
	if err != nil {
		return 1
	}
	return 0
}
