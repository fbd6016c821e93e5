// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package batch drives one run of the Azure Batch service: create a
// pool and job, submit one task per input blob, and wait for the
// tasks to complete.
package batch

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/services/batch/2020-09-01.12.0/batch"
	"github.com/Azure/go-autorest/autorest"
	"github.com/Azure/go-autorest/autorest/azure"
	"github.com/Azure/go-autorest/autorest/azure/auth"
	"github.com/ragpan29/Azure/lib/config"
)

// Wire values of the SDK enums used here.
const (
	taskStateCompleted   = batch.TaskState("completed")
	taskAddStatusSuccess = batch.TaskAddStatus("success")
	autoUserScopePool    = batch.AutoUserScope("pool")
	elevationLevelAdmin  = batch.ElevationLevel("admin")
)

const userAgent = "azure-batch-run"

type accountClientWrapper interface {
	listSupportedImages(ctx context.Context, filter string) ([]batch.ImageInformation, error)
}

type accountClientImpl struct {
	inner batch.AccountClient
}

func (cl *accountClientImpl) listSupportedImages(ctx context.Context, filter string) ([]batch.ImageInformation, error) {
	it, err := cl.inner.ListSupportedImagesComplete(ctx, filter, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, wrapBatchError(err)
	}
	var images []batch.ImageInformation
	for it.NotDone() {
		images = append(images, it.Value())
		if err := it.NextWithContext(ctx); err != nil {
			return nil, wrapBatchError(err)
		}
	}
	return images, nil
}

type poolClientWrapper interface {
	add(ctx context.Context, pool batch.PoolAddParameter) error
}

type poolClientImpl struct {
	inner batch.PoolClient
}

func (cl *poolClientImpl) add(ctx context.Context, pool batch.PoolAddParameter) error {
	_, err := cl.inner.Add(ctx, pool, nil, nil, nil, nil)
	return wrapBatchError(err)
}

type jobClientWrapper interface {
	add(ctx context.Context, job batch.JobAddParameter) error
}

type jobClientImpl struct {
	inner batch.JobClient
}

func (cl *jobClientImpl) add(ctx context.Context, job batch.JobAddParameter) error {
	_, err := cl.inner.Add(ctx, job, nil, nil, nil, nil)
	return wrapBatchError(err)
}

type taskClientWrapper interface {
	addCollection(ctx context.Context, jobID string, tasks []batch.TaskAddParameter) ([]batch.TaskAddResult, error)
	list(ctx context.Context, jobID string) ([]batch.CloudTask, error)
}

type taskClientImpl struct {
	inner batch.TaskClient
}

func (cl *taskClientImpl) addCollection(ctx context.Context, jobID string, tasks []batch.TaskAddParameter) ([]batch.TaskAddResult, error) {
	r, err := cl.inner.AddCollection(ctx, jobID, batch.TaskAddCollectionParameter{Value: &tasks}, nil, nil, nil, nil)
	if err != nil {
		return nil, wrapBatchError(err)
	}
	if r.Value == nil {
		return nil, nil
	}
	return *r.Value, nil
}

func (cl *taskClientImpl) list(ctx context.Context, jobID string) ([]batch.CloudTask, error) {
	it, err := cl.inner.ListComplete(ctx, jobID, "", "id,state", "", nil, nil, nil, nil, nil)
	if err != nil {
		return nil, wrapBatchError(err)
	}
	var tasks []batch.CloudTask
	for it.NotDone() {
		tasks = append(tasks, it.Value())
		if err := it.NextWithContext(ctx); err != nil {
			return nil, wrapBatchError(err)
		}
	}
	return tasks, nil
}

// Client holds the Batch service clients for one account.
type Client struct {
	account accountClientWrapper
	pools   poolClientWrapper
	jobs    jobClientWrapper
	tasks   taskClientWrapper
}

// NewClient returns a Client for cfg.BatchAccountURL. It uses Azure AD
// service principal credentials if they are configured, otherwise
// the account's shared key.
func NewClient(cfg *config.Config) (*Client, error) {
	authorizer, err := newAuthorizer(cfg)
	if err != nil {
		return nil, err
	}
	setup := func(cl *autorest.Client) {
		cl.Authorizer = authorizer
		cl.AddToUserAgent(userAgent)
	}

	account := batch.NewAccountClient(cfg.BatchAccountURL)
	setup(&account.Client)
	pools := batch.NewPoolClient(cfg.BatchAccountURL)
	setup(&pools.Client)
	jobs := batch.NewJobClient(cfg.BatchAccountURL)
	setup(&jobs.Client)
	tasks := batch.NewTaskClient(cfg.BatchAccountURL)
	setup(&tasks.Client)

	return &Client{
		account: &accountClientImpl{inner: account},
		pools:   &poolClientImpl{inner: pools},
		jobs:    &jobClientImpl{inner: jobs},
		tasks:   &taskClientImpl{inner: tasks},
	}, nil
}

func newAuthorizer(cfg *config.Config) (autorest.Authorizer, error) {
	if !cfg.UseAAD() {
		return newSharedKeyAuthorizer(cfg.BatchAccountName, cfg.BatchAccountKey)
	}
	env := azure.PublicCloud
	if cfg.CloudEnvironment != "" {
		var err error
		env, err = azure.EnvironmentFromName(cfg.CloudEnvironment)
		if err != nil {
			return nil, fmt.Errorf("%w: cloud_environment: %s", config.ErrInvalid, err)
		}
	}
	authorizer, err := auth.ClientCredentialsConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TenantID:     cfg.TenantID,
		Resource:     env.BatchManagementEndpoint,
		AADEndpoint:  env.ActiveDirectoryEndpoint,
	}.Authorizer()
	if err != nil {
		return nil, fmt.Errorf("setting up Azure AD authorizer: %w", err)
	}
	return authorizer, nil
}
