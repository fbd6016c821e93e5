// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/batch/2020-09-01.12.0/batch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ragpan29/Azure/lib/poll"
	"github.com/ragpan29/Azure/sdk/go/ctxlog"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&TrackSuite{})

type TrackSuite struct{}

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	now    time.Time
	sleeps int
}

func (fc *fakeClock) Now() time.Time { return fc.now }

func (fc *fakeClock) Sleep(d time.Duration) {
	fc.sleeps++
	fc.now = fc.now.Add(d)
}

func (fc *fakeClock) poller() poll.Poller {
	return poll.Poller{Interval: time.Second, Now: fc.Now, Sleep: fc.Sleep}
}

const (
	active    = batch.TaskState("active")
	running   = batch.TaskState("running")
	completed = taskStateCompleted
)

func (s *TrackSuite) TestAlreadyComplete(c *check.C) {
	cl, stubs := newStubClient()
	stubs.tasks.states = [][]batch.TaskState{{completed, completed}}
	fc := &fakeClock{now: time.Unix(1000, 0)}
	err := NewTracker(cl, fc.poller(), ctxlog.TestLogger(c), nil).Wait(context.Background(), "lmjob", time.Minute)
	c.Check(err, check.IsNil)
	c.Check(stubs.tasks.lists, check.Equals, 1)
	c.Check(fc.sleeps, check.Equals, 0)
}

func (s *TrackSuite) TestEventuallyComplete(c *check.C) {
	cl, stubs := newStubClient()
	stubs.tasks.states = [][]batch.TaskState{
		{active, active, active},
		{running, running, completed},
		{completed, running, completed},
		{completed, completed, completed},
	}
	fc := &fakeClock{now: time.Unix(1000, 0)}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	err := NewTracker(cl, fc.poller(), ctxlog.TestLogger(c), m).Wait(context.Background(), "lmjob", time.Minute)
	c.Check(err, check.IsNil)
	c.Check(stubs.tasks.lists, check.Equals, 4)
	c.Check(fc.sleeps, check.Equals, 3)
	c.Check(testutil.ToFloat64(m.polls), check.Equals, float64(4))
	c.Check(testutil.ToFloat64(m.tasksIncomplete), check.Equals, float64(0))
}

func (s *TrackSuite) TestTimeout(c *check.C) {
	cl, stubs := newStubClient()
	stubs.tasks.states = [][]batch.TaskState{{completed, running}}
	fc := &fakeClock{now: time.Unix(1000, 0)}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	err := NewTracker(cl, fc.poller(), ctxlog.TestLogger(c), m).Wait(context.Background(), "lmjob", 5*time.Second)
	var terr *TimeoutError
	c.Assert(errors.As(err, &terr), check.Equals, true)
	c.Check(terr.Timeout, check.Equals, 5*time.Second)
	c.Check(terr.Incomplete, check.Equals, 1)
	c.Check(err, check.ErrorMatches, `tasks did not reach 'completed' state within timeout period of 5s .*`)
	c.Check(stubs.tasks.lists, check.Equals, 5)
	c.Check(testutil.ToFloat64(m.tasksIncomplete), check.Equals, float64(1))
}

func (s *TrackSuite) TestTimeoutMessageMinutes(c *check.C) {
	err := &TimeoutError{JobID: "lmjob", Timeout: 30 * time.Minute, Incomplete: 4}
	c.Check(err, check.ErrorMatches, `.*within timeout period of 30m0s.*4 incomplete.*`)
}

func (s *TrackSuite) TestZeroTimeout(c *check.C) {
	cl, stubs := newStubClient()
	stubs.tasks.states = [][]batch.TaskState{{completed}}
	fc := &fakeClock{now: time.Unix(1000, 0)}
	err := NewTracker(cl, fc.poller(), ctxlog.TestLogger(c), nil).Wait(context.Background(), "lmjob", 0)
	var terr *TimeoutError
	c.Check(errors.As(err, &terr), check.Equals, true)
	c.Check(stubs.tasks.lists, check.Equals, 0)
}

func (s *TrackSuite) TestListError(c *check.C) {
	cl, stubs := newStubClient()
	stubs.tasks.listErr = wrapBatchError(serviceError(404, "JobNotFound"))
	fc := &fakeClock{now: time.Unix(1000, 0)}
	err := NewTracker(cl, fc.poller(), ctxlog.TestLogger(c), nil).Wait(context.Background(), "nojob", time.Minute)
	c.Check(KindOf(err), check.Equals, KindNotFound)
	c.Check(err, check.ErrorMatches, `listing tasks in job "nojob": JobNotFound: .*`)
}

func (s *TrackSuite) TestEmptyJob(c *check.C) {
	cl, _ := newStubClient()
	fc := &fakeClock{now: time.Unix(1000, 0)}
	err := NewTracker(cl, fc.poller(), ctxlog.TestLogger(c), nil).Wait(context.Background(), "lmjob", time.Minute)
	c.Check(err, check.IsNil)
}
