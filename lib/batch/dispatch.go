// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/batch/2020-09-01.12.0/batch"
	"github.com/Azure/go-autorest/autorest/to"
	"github.com/sirupsen/logrus"
)

// The Batch service accepts at most this many tasks per
// add-collection call.
const maxTasksPerCall = 100

// A TaskFailure is a task the service refused to add.
type TaskFailure struct {
	TaskID  string
	Status  string
	Code    string
	Message string
}

// A DispatchError reports tasks the service refused to add. Tasks
// accepted before the failure remain in the job.
type DispatchError struct {
	JobID  string
	Failed []TaskFailure
	// Number of tasks accepted (in this and earlier calls).
	Accepted int
}

func (e *DispatchError) Error() string {
	var ids []string
	for _, f := range e.Failed {
		ids = append(ids, f.TaskID+" ("+f.Code+")")
	}
	return fmt.Sprintf("%d task(s) not added to job %q: %s", len(e.Failed), e.JobID, strings.Join(ids, ", "))
}

// Dispatcher submits tasks to a job.
type Dispatcher struct {
	client  *Client
	logger  logrus.FieldLogger
	metrics *Metrics
}

func NewDispatcher(client *Client, logger logrus.FieldLogger, metrics *Metrics) *Dispatcher {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{client: client, logger: logger, metrics: metrics}
}

// Dispatch adds tasks to the job in order, using as few calls as the
// service allows. It stops at the first call that fails or reports a
// task that was not added. There are no retries: calling Dispatch
// again after a partial failure adds the accepted tasks a second
// time.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID string, tasks []TaskSpec) error {
	logger := d.logger.WithField("JobID", jobID)
	accepted := 0
	for start := 0; start < len(tasks); start += maxTasksPerCall {
		chunk := tasks[start:min(start+maxTasksPerCall, len(tasks))]
		params := make([]batch.TaskAddParameter, 0, len(chunk))
		for _, t := range chunk {
			params = append(params, t.addParameter())
		}
		results, err := d.client.tasks.addCollection(ctx, jobID, params)
		if err != nil {
			d.metrics.providerError(err)
			return fmt.Errorf("adding tasks to job %q: %w", jobID, err)
		}
		var failed []TaskFailure
		for _, res := range results {
			if res.Status == taskAddStatusSuccess {
				accepted++
				d.metrics.tasksSubmitted.Inc()
				continue
			}
			f := TaskFailure{TaskID: to.String(res.TaskID), Status: string(res.Status)}
			if res.Error != nil {
				f.Code = to.String(res.Error.Code)
				if res.Error.Message != nil {
					f.Message = to.String(res.Error.Message.Value)
				}
			}
			logger.WithFields(logrus.Fields{
				"TaskID": f.TaskID,
				"Status": f.Status,
				"Code":   f.Code,
			}).Error(f.Message)
			failed = append(failed, f)
		}
		if len(failed) > 0 {
			return &DispatchError{JobID: jobID, Failed: failed, Accepted: accepted}
		}
		logger.WithField("Tasks", len(chunk)).Debug("added tasks")
	}
	logger.WithField("Tasks", accepted).Info("added all tasks")
	return nil
}
