// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package blobstore lists input files in an Azure blob container and
// issues time-limited read-only URLs for them.
package blobstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/storage"
	"github.com/Azure/go-autorest/autorest/azure"
	"github.com/dustin/go-humanize"
	"github.com/ragpan29/Azure/lib/config"
	"github.com/sirupsen/logrus"
)

// An Artifact is an input blob plus a read-only SAS URL a compute
// node can fetch it from.
type Artifact struct {
	// Blob name, including any virtual directories. Also used as
	// the file path on the compute node.
	Name      string
	URL       string
	ExpiresAt time.Time
}

type containerWrapper interface {
	GetBlobReference(name string) *storage.Blob
	ListBlobs(params storage.ListBlobsParameters) (storage.BlobListResponse, error)
}

// Store issues Artifacts for the blobs in one container.
type Store struct {
	container containerWrapper
	name      string
	validity  time.Duration
	now       func() time.Time
	logger    logrus.FieldLogger
}

// NewStore returns a Store for the named container in the configured
// storage account. SAS URLs are valid for cfg.SASValidity.
func NewStore(cfg *config.Config, containerName string, logger logrus.FieldLogger) (*Store, error) {
	env := azure.PublicCloud
	if cfg.CloudEnvironment != "" {
		var err error
		env, err = azure.EnvironmentFromName(cfg.CloudEnvironment)
		if err != nil {
			return nil, err
		}
	}
	client, err := storage.NewBasicClientOnSovereignCloud(cfg.StorageAccountName, cfg.StorageAccountKey, env)
	if err != nil {
		return nil, fmt.Errorf("making storage client: %w", err)
	}
	blobsvc := client.GetBlobService()
	return &Store{
		container: blobsvc.GetContainerReference(containerName),
		name:      containerName,
		validity:  cfg.SASValidity.Duration(),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// List returns an Artifact for every blob whose name begins with
// prefix, in listing order. An empty prefix matches every blob.
func (st *Store) List(prefix string) ([]Artifact, error) {
	expires := st.now().UTC().Add(st.validity)
	params := storage.ListBlobsParameters{Prefix: prefix}
	var artifacts []Artifact
	for {
		response, err := st.container.ListBlobs(params)
		if err != nil {
			return nil, fmt.Errorf("listing blobs in container %q: %w", st.name, err)
		}
		for _, b := range response.Blobs {
			if !strings.HasPrefix(b.Name, prefix) {
				continue
			}
			url, err := st.readURL(b.Name, expires)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, Artifact{
				Name:      b.Name,
				URL:       url,
				ExpiresAt: expires,
			})
		}
		if response.NextMarker == "" {
			break
		}
		params.Marker = response.NextMarker
	}
	st.logger.WithFields(logrus.Fields{
		"Container": st.name,
		"Prefix":    prefix,
		"Count":     len(artifacts),
	}).Infof("listed input blobs, read URLs expire %s", humanize.Time(expires))
	return artifacts, nil
}

func (st *Store) readURL(name string, expires time.Time) (string, error) {
	url, err := st.container.GetBlobReference(name).GetSASURI(storage.BlobSASOptions{
		BlobServiceSASPermissions: storage.BlobServiceSASPermissions{Read: true},
		SASOptions: storage.SASOptions{
			Expiry:   expires,
			UseHTTPS: true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("making read URL for blob %q: %w", name, err)
	}
	return url, nil
}
