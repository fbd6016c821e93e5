// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"os"

	"github.com/ragpan29/Azure/lib/batch"
	"github.com/ragpan29/Azure/lib/cmd"
	"github.com/ragpan29/Azure/lib/config"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"run":          batch.RunCommand,
		"wait":         batch.WaitCommand,
		"images":       batch.ImagesCommand,
		"config-dump":  config.DumpCommand,
		"config-check": config.CheckCommand,
	})
)

func main() {
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
