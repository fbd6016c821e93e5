// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ragpan29/Azure/lib/blobstore"
	"github.com/ragpan29/Azure/lib/config"
	"github.com/ragpan29/Azure/lib/poll"
	"github.com/ragpan29/Azure/sdk/go/ctxlog"
	"github.com/sirupsen/logrus"
)

// An ArtifactLister lists input files by name prefix.
type ArtifactLister interface {
	List(prefix string) ([]blobstore.Artifact, error)
}

// Runner performs one complete run: pool, job, tasks, and the wait
// for completion.
type Runner struct {
	Config   *config.Config
	Client   *Client
	Inputs   ArtifactLister
	Registry *prometheus.Registry

	// If nil, the logger from Run's context is used.
	Logger logrus.FieldLogger

	// Clock used while waiting. Nil means the real clock.
	now   func() time.Time
	sleep func(time.Duration)
}

// Run returns nil if every task completed within the configured
// runtime. Errors from any step end the run.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Config
	baseLogger := r.Logger
	if baseLogger == nil {
		baseLogger = ctxlog.FromContext(ctx)
	}
	logger := baseLogger.WithFields(logrus.Fields{"PoolID": cfg.PoolID, "JobID": cfg.JobID})
	m := NewMetrics(r.Registry)
	t0 := time.Now()

	err := NewProvisioner(r.Client, baseLogger, m).EnsurePool(ctx, PoolSpec{
		ID:                cfg.PoolID,
		VMSize:            cfg.PoolVMSize,
		NodeCount:         cfg.PoolNodeCount,
		Publisher:         cfg.VMPublisher,
		Offer:             cfg.VMOffer,
		SKUPrefix:         cfg.VMSku,
		OSType:            cfg.OSType,
		StartTaskCommands: cfg.StartTaskCommands,
	})
	if err != nil {
		return err
	}

	sub := NewSubmitter(cfg, r.Client, baseLogger, m)
	err = sub.EnsureJob(ctx, JobSpec{ID: cfg.JobID, PoolID: cfg.PoolID})
	if err != nil {
		return err
	}
	artifacts, err := r.Inputs.List(cfg.FilePattern)
	if err != nil {
		return err
	}
	logger.Infof("There are %d files to be analyzed", len(artifacts))
	tasks, err := sub.BuildTasks(ctx, artifacts)
	if err != nil {
		return err
	}
	logger.Infof("There are %d tasks created", len(tasks))

	err = NewDispatcher(r.Client, baseLogger, m).Dispatch(ctx, cfg.JobID, tasks)
	if err != nil {
		return err
	}

	poller := poll.Poller{Interval: cfg.PollInterval.Duration(), Now: r.now, Sleep: r.sleep}
	err = NewTracker(r.Client, poller, baseLogger, m).Wait(ctx, cfg.JobID, cfg.Timeout())
	if err != nil {
		return err
	}
	logger.WithField("Elapsed", time.Since(t0).Truncate(time.Second).String()).
		Infof("Success! All %d tasks reached the 'completed' state within the specified timeout period.", len(tasks))
	return nil
}
