// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"errors"
	"regexp"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/google/shlex"
	"github.com/ragpan29/Azure/lib/blobstore"
	"github.com/ragpan29/Azure/sdk/go/ctxlog"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&SubmitSuite{})

type SubmitSuite struct{}

func testArtifacts(names ...string) []blobstore.Artifact {
	var arts []blobstore.Artifact
	for _, name := range names {
		arts = append(arts, blobstore.Artifact{
			Name: name,
			URL:  "https://mystorage.blob.core.windows.net/input/" + name + "?sig=x",
		})
	}
	return arts
}

func (s *SubmitSuite) TestEnsureJob(c *check.C) {
	cl, stubs := newStubClient()
	sub := NewSubmitter(testConfig(), cl, ctxlog.TestLogger(c), nil)
	c.Assert(sub.EnsureJob(context.Background(), JobSpec{ID: "lmjob", PoolID: "lmpool"}), check.IsNil)
	c.Assert(stubs.jobs.added, check.HasLen, 1)
	c.Check(to.String(stubs.jobs.added[0].ID), check.Equals, "lmjob")
	c.Check(to.String(stubs.jobs.added[0].PoolInfo.PoolID), check.Equals, "lmpool")
}

func (s *SubmitSuite) TestJobExists(c *check.C) {
	cl, stubs := newStubClient()
	stubs.jobs.err = wrapBatchError(rawBodyError(409, `{"code":"JobExists","message":{"value":"The specified job already exists."}}`))
	sub := NewSubmitter(testConfig(), cl, ctxlog.TestLogger(c), nil)
	c.Check(sub.EnsureJob(context.Background(), JobSpec{ID: "lmjob", PoolID: "lmpool"}), check.IsNil)
}

func (s *SubmitSuite) TestJobOtherError(c *check.C) {
	cl, stubs := newStubClient()
	stubs.jobs.err = wrapBatchError(serviceError(404, "PoolNotFound"))
	sub := NewSubmitter(testConfig(), cl, ctxlog.TestLogger(c), nil)
	err := sub.EnsureJob(context.Background(), JobSpec{ID: "lmjob", PoolID: "lmpool"})
	c.Check(KindOf(err), check.Equals, KindNotFound)
	c.Check(err, check.ErrorMatches, `creating job "lmjob": .*`)
}

func (s *SubmitSuite) TestTaskCommandLinux(c *check.C) {
	sub := NewSubmitter(testConfig(), nil, ctxlog.TestLogger(c), nil)
	argv, err := shlex.Split(sub.TaskCommand("sales_1.csv"))
	c.Assert(err, check.IsNil)
	c.Check(argv, check.DeepEquals, []string{
		"python3", "$AZ_BATCH_APP_PACKAGE_make_lm_1_0/make_lm.py",
		"-i", "sales_1.csv",
		"--storageaccount", "mystorage",
		"--storagecontainer", "output",
		"--key", "c3RvcmFnZWtleQ==",
	})
}

func (s *SubmitSuite) TestTaskCommandWindows(c *check.C) {
	cfg := testConfig()
	cfg.OSType = "windows"
	cfg.Interpreter = "python"
	sub := NewSubmitter(cfg, nil, ctxlog.TestLogger(c), nil)
	c.Check(sub.TaskCommand("in.csv"), check.Equals,
		"python %AZ_BATCH_APP_PACKAGE_make_lm#1.0%/make_lm.py -i in.csv --storageaccount mystorage --storagecontainer output --key c3RvcmFnZWtleQ==")
}

func (s *SubmitSuite) TestBuildTasks(c *check.C) {
	sub := NewSubmitter(testConfig(), nil, ctxlog.TestLogger(c), nil)
	arts := testArtifacts("sales_1.csv", "sales_2.csv", "dir/sales_3.csv")
	tasks, err := sub.BuildTasks(context.Background(), arts)
	c.Assert(err, check.IsNil)
	c.Assert(tasks, check.HasLen, 3)

	idRe := regexp.MustCompile(`^make_lm[a-z0-9]{32}$`)
	seen := map[string]bool{}
	for i, task := range tasks {
		c.Check(idRe.MatchString(task.ID), check.Equals, true, check.Commentf("%q", task.ID))
		c.Check(seen[task.ID], check.Equals, false)
		seen[task.ID] = true

		c.Check(task.ResourceFiles, check.DeepEquals, arts[i:i+1])
		c.Check(task.AppPackage, check.Equals, AppPackage{Name: "make_lm", Version: "1.0"})

		argv, err := shlex.Split(task.CommandLine)
		c.Assert(err, check.IsNil)
		c.Assert(argv, check.HasLen, 3)
		c.Check(argv[0], check.Equals, "/bin/bash")
		c.Check(argv[2], check.Equals, "set -e; set -o pipefail; "+sub.TaskCommand(arts[i].Name)+"; wait")
	}
}

func (s *SubmitSuite) TestBuildTasksNoArtifacts(c *check.C) {
	sub := NewSubmitter(testConfig(), nil, ctxlog.TestLogger(c), nil)
	tasks, err := sub.BuildTasks(context.Background(), nil)
	c.Check(errors.Is(err, ErrNoArtifacts), check.Equals, true)
	c.Check(err, check.ErrorMatches, `no input files match prefix "sales_"`)
	c.Check(tasks, check.HasLen, 0)
}

func (s *SubmitSuite) TestTaskIDCollision(c *check.C) {
	sub := NewSubmitter(testConfig(), nil, ctxlog.TestLogger(c), nil)
	suffixes := []string{"aaa", "aaa", "aaa", "bbb"}
	sub.randomSuffix = func() (string, error) {
		next := suffixes[0]
		suffixes = suffixes[1:]
		return next, nil
	}
	tasks, err := sub.BuildTasks(context.Background(), testArtifacts("a", "b"))
	c.Assert(err, check.IsNil)
	c.Check(tasks[0].ID, check.Equals, "make_lmaaa")
	c.Check(tasks[1].ID, check.Equals, "make_lmbbb")
}

func (s *SubmitSuite) TestTaskIDTooManyCollisions(c *check.C) {
	sub := NewSubmitter(testConfig(), nil, ctxlog.TestLogger(c), nil)
	sub.randomSuffix = func() (string, error) { return "same", nil }
	_, err := sub.BuildTasks(context.Background(), testArtifacts("a", "b"))
	c.Check(err, check.ErrorMatches, `generating task ID: too many collisions`)
}

func (s *SubmitSuite) TestAddParameter(c *check.C) {
	task := TaskSpec{
		ID:            "make_lmabc",
		CommandLine:   "/bin/bash -c 'true; wait'",
		ResourceFiles: testArtifacts("dir/sales_1.csv"),
		AppPackage:    AppPackage{Name: "make_lm"},
	}
	param := task.addParameter()
	c.Check(to.String(param.ID), check.Equals, "make_lmabc")
	c.Check(to.String(param.CommandLine), check.Equals, task.CommandLine)
	c.Assert(*param.ResourceFiles, check.HasLen, 1)
	rf := (*param.ResourceFiles)[0]
	c.Check(to.String(rf.FilePath), check.Equals, "dir/sales_1.csv")
	c.Check(to.String(rf.HTTPURL), check.Equals, "https://mystorage.blob.core.windows.net/input/dir/sales_1.csv?sig=x")
	c.Assert(*param.ApplicationPackageReferences, check.HasLen, 1)
	ref := (*param.ApplicationPackageReferences)[0]
	c.Check(to.String(ref.ApplicationID), check.Equals, "make_lm")
	c.Check(ref.Version, check.IsNil)

	task.AppPackage = AppPackage{}
	c.Check(task.addParameter().ApplicationPackageReferences, check.IsNil)
}
