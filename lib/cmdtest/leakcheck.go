// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package cmdtest has helpers for testing cmd.Handler implementations.
package cmdtest

import (
	"os"
	"path/filepath"

	check "gopkg.in/check.v1"
)

// LeakCheck redirects os.Stdout and os.Stderr to files until the
// returned func is called, then fails the test if anything was
// written to them. A handler should write only to the stdout and
// stderr it is given.
//
//	func (s *Suite) TestSomething(c *check.C) {
//		defer cmdtest.LeakCheck(c)()
//		// ... run handlers
//	}
func LeakCheck(c *check.C) func() {
	names := []string{"stdout", "stderr"}
	dir := c.MkDir()
	var files []*os.File
	for _, name := range names {
		f, err := os.Create(filepath.Join(dir, name))
		c.Assert(err, check.IsNil)
		files = append(files, f)
	}
	origStdout, origStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = files[0], files[1]
	return func() {
		os.Stdout, os.Stderr = origStdout, origStderr
		for i, f := range files {
			f.Close()
			leaked, err := os.ReadFile(f.Name())
			c.Assert(err, check.IsNil)
			c.Check(string(leaked), check.Equals, "", check.Commentf("output leaked to os.%s", names[i]))
		}
	}
}
