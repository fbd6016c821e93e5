// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"bytes"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&CommandSuite{})

type CommandSuite struct{}

func (s *CommandSuite) TestDumpRedacts(c *check.C) {
	var stdout, stderr bytes.Buffer
	code := DumpCommand.RunCommand("config-dump", []string{"-config", "-"}, bytes.NewBufferString(exampleJSON), &stdout, &stderr)
	c.Check(code, check.Equals, 0)
	c.Check(stdout.String(), check.Matches, `(?ms).*_BATCH_ACCOUNT_KEY: xxxxx\n.*`)
	c.Check(stdout.String(), check.Matches, `(?ms).*_POOL_ID: lmpool\n.*`)
	c.Check(stdout.String(), check.Matches, `(?ms).*poll_interval: 1s\n.*`)
	c.Check(stdout.String(), check.Not(check.Matches), `(?ms).*YmF0Y2hrZXk=.*`)
}

func (s *CommandSuite) TestDumpShowSecrets(c *check.C) {
	var stdout, stderr bytes.Buffer
	code := DumpCommand.RunCommand("config-dump", []string{"-config", "-", "-show-secrets"}, bytes.NewBufferString(exampleJSON), &stdout, &stderr)
	c.Check(code, check.Equals, 0)
	c.Check(stdout.String(), check.Matches, `(?ms).*_BATCH_ACCOUNT_KEY: .?YmF0Y2hrZXk=.*`)
}

func (s *CommandSuite) TestCheckOK(c *check.C) {
	var stdout, stderr bytes.Buffer
	code := CheckCommand.RunCommand("config-check", []string{"-config", "-"}, bytes.NewBufferString(exampleJSON), &stdout, &stderr)
	c.Check(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "")
	c.Check(stderr.String(), check.Equals, "")
}

func (s *CommandSuite) TestCheckBad(c *check.C) {
	var stdout, stderr bytes.Buffer
	code := CheckCommand.RunCommand("config-check", []string{"-config", "-"}, bytes.NewBufferString(`{"bogus_key": 1}`), &stdout, &stderr)
	c.Check(code, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `(?ms).*unknown config entry: bogus_key.*`)
	c.Check(stderr.String(), check.Matches, `(?ms).*invalid configuration: .*_POOL_ID is empty.*`)
}

func (s *CommandSuite) TestUsageError(c *check.C) {
	var stdout, stderr bytes.Buffer
	code := CheckCommand.RunCommand("config-check", []string{"-nosuchflag"}, bytes.NewBuffer(nil), &stdout, &stderr)
	c.Check(code, check.Equals, 2)
}
