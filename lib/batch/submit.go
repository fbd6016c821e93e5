// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/services/batch/2020-09-01.12.0/batch"
	"github.com/Azure/go-autorest/autorest/to"
	"github.com/jmcvetta/randutil"
	"github.com/ragpan29/Azure/lib/blobstore"
	"github.com/ragpan29/Azure/lib/config"
	"github.com/sirupsen/logrus"
)

// ErrNoArtifacts is returned when there are no input files to build
// tasks from.
var ErrNoArtifacts = errors.New("no input files match")

const (
	taskIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	taskIDRandLen  = 32
)

// JobSpec describes the job a run submits tasks to.
type JobSpec struct {
	ID     string
	PoolID string
}

// AppPackage refers to an application package installed on the
// compute nodes. An empty Version means the package's default
// version.
type AppPackage struct {
	Name    string
	Version string
}

// TaskSpec describes one task: a command line plus the files it
// needs on the node.
type TaskSpec struct {
	ID            string
	CommandLine   string
	ResourceFiles []blobstore.Artifact
	AppPackage    AppPackage
}

func (t TaskSpec) addParameter() batch.TaskAddParameter {
	files := make([]batch.ResourceFile, 0, len(t.ResourceFiles))
	for _, art := range t.ResourceFiles {
		files = append(files, batch.ResourceFile{
			HTTPURL:  to.StringPtr(art.URL),
			FilePath: to.StringPtr(art.Name),
		})
	}
	param := batch.TaskAddParameter{
		ID:            to.StringPtr(t.ID),
		CommandLine:   to.StringPtr(t.CommandLine),
		ResourceFiles: &files,
	}
	if t.AppPackage.Name != "" {
		ref := batch.ApplicationPackageReference{ApplicationID: to.StringPtr(t.AppPackage.Name)}
		if t.AppPackage.Version != "" {
			ref.Version = to.StringPtr(t.AppPackage.Version)
		}
		param.ApplicationPackageReferences = &[]batch.ApplicationPackageReference{ref}
	}
	return param
}

// Submitter creates jobs and builds their tasks.
type Submitter struct {
	client  *Client
	cfg     *config.Config
	logger  logrus.FieldLogger
	metrics *Metrics

	// Returns a random suffix for a task ID. Defaults to 32
	// characters from [a-z0-9].
	randomSuffix func() (string, error)
}

func NewSubmitter(cfg *config.Config, client *Client, logger logrus.FieldLogger, metrics *Metrics) *Submitter {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Submitter{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		randomSuffix: func() (string, error) {
			return randutil.String(taskIDRandLen, taskIDAlphabet)
		},
	}
}

// EnsureJob creates the job described by spec. If a job with the
// same ID already exists, it is used as is.
func (s *Submitter) EnsureJob(ctx context.Context, spec JobSpec) error {
	logger := s.logger.WithFields(logrus.Fields{"JobID": spec.ID, "PoolID": spec.PoolID})
	err := s.client.jobs.add(ctx, batch.JobAddParameter{
		ID:       to.StringPtr(spec.ID),
		PoolInfo: &batch.PoolInformation{PoolID: to.StringPtr(spec.PoolID)},
	})
	if err == nil {
		logger.Info("created job")
		return nil
	}
	s.metrics.providerError(err)
	if KindOf(err) == KindJobExists {
		logger.Info("job already exists")
		return nil
	}
	return fmt.Errorf("creating job %q: %w", spec.ID, err)
}

// TaskCommand returns the unwrapped command line that runs the
// configured application on one input file.
func (s *Submitter) TaskCommand(inputPath string) string {
	cfg := s.cfg
	return fmt.Sprintf("%s %s/%s -i %s --storageaccount %s --storagecontainer %s --key %s",
		cfg.Interpreter,
		appPackagePath(cfg.AppName, cfg.AppVersion, cfg.OSType),
		cfg.AppFile,
		inputPath,
		cfg.StorageAccountName,
		cfg.OutputStorageContainer,
		cfg.StorageAccountKey)
}

// BuildTasks returns one task per artifact, in the same order. Each
// task gets a fresh ID, unique among the returned tasks.
func (s *Submitter) BuildTasks(ctx context.Context, artifacts []blobstore.Artifact) ([]TaskSpec, error) {
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w prefix %q", ErrNoArtifacts, s.cfg.FilePattern)
	}
	used := make(map[string]bool, len(artifacts))
	tasks := make([]TaskSpec, 0, len(artifacts))
	for _, art := range artifacts {
		cmdline, err := WrapCommandsInShell(s.cfg.OSType, []string{s.TaskCommand(art.Name)})
		if err != nil {
			return nil, err
		}
		id, err := s.newTaskID(used)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, TaskSpec{
			ID:            id,
			CommandLine:   cmdline,
			ResourceFiles: []blobstore.Artifact{art},
			AppPackage:    AppPackage{Name: s.cfg.AppName, Version: s.cfg.AppVersion},
		})
		s.logger.WithFields(logrus.Fields{"TaskID": id, "Input": art.Name}).Debug("built task")
	}
	return tasks, nil
}

// newTaskID returns an ID not already in used, and adds it to used.
func (s *Submitter) newTaskID(used map[string]bool) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		suffix, err := s.randomSuffix()
		if err != nil {
			return "", fmt.Errorf("generating task ID: %w", err)
		}
		id := s.cfg.TaskIDPrefix + suffix
		if !used[id] {
			used[id] = true
			return id, nil
		}
	}
	return "", errors.New("generating task ID: too many collisions")
}
