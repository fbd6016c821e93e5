// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ragpan29/Azure/lib/poll"
	"github.com/sirupsen/logrus"
)

// A TimeoutError is returned by Wait when tasks are still incomplete
// at the deadline.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
	// Number of incomplete tasks at the last poll.
	Incomplete int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tasks did not reach 'completed' state within timeout period of %s (job %q, %d incomplete)", e.Timeout, e.JobID, e.Incomplete)
}

// Tracker waits for the tasks in a job to complete.
type Tracker struct {
	client  *Client
	poller  poll.Poller
	logger  logrus.FieldLogger
	metrics *Metrics
}

// NewTracker returns a Tracker that lists tasks once per
// poller.Interval.
func NewTracker(client *Client, poller poll.Poller, logger logrus.FieldLogger, metrics *Metrics) *Tracker {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Tracker{client: client, poller: poller, logger: logger, metrics: metrics}
}

// Wait returns nil as soon as every task in the job is completed, or
// a *TimeoutError if that has not happened within timeout. A task
// that completed with a failure exit code still counts as completed.
func (t *Tracker) Wait(ctx context.Context, jobID string, timeout time.Duration) error {
	logger := t.logger.WithFields(logrus.Fields{"JobID": jobID, "Timeout": timeout.String()})
	logger.Info("monitoring all tasks for 'completed' state")
	incomplete, lastLogged := 0, -1
	err := t.poller.For(timeout, func() (bool, error) {
		tasks, err := t.client.tasks.list(ctx, jobID)
		t.metrics.polls.Inc()
		if err != nil {
			t.metrics.providerError(err)
			return false, fmt.Errorf("listing tasks in job %q: %w", jobID, err)
		}
		incomplete = 0
		for _, task := range tasks {
			if task.State != taskStateCompleted {
				incomplete++
			}
		}
		t.metrics.tasksIncomplete.Set(float64(incomplete))
		if incomplete != lastLogged {
			logger.WithFields(logrus.Fields{"Incomplete": incomplete, "Tasks": len(tasks)}).Info("polled tasks")
			lastLogged = incomplete
		}
		return incomplete == 0, nil
	})
	if errors.Is(err, poll.ErrDeadline) {
		return &TimeoutError{JobID: jobID, Timeout: timeout, Incomplete: incomplete}
	}
	if err != nil {
		return err
	}
	logger.Info("all tasks reached the 'completed' state")
	return nil
}
