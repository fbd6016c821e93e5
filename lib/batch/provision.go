// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/batch/2020-09-01.12.0/batch"
	"github.com/Azure/go-autorest/autorest/to"
	"github.com/sirupsen/logrus"
)

// ErrNoImage is returned when no supported image matches the
// configured publisher, offer, and SKU prefix.
var ErrNoImage = errors.New("no supported image matches")

const verifiedImageFilter = "verificationType eq 'verified'"

// PoolSpec describes the pool a run needs.
type PoolSpec struct {
	ID        string
	VMSize    string
	NodeCount int

	// Image selection. Publisher and Offer must match exactly
	// (ignoring case); SKUPrefix must be a prefix of the SKU.
	Publisher string
	Offer     string
	SKUPrefix string

	OSType            string
	StartTaskCommands []string
}

// Provisioner creates pools.
type Provisioner struct {
	client  *Client
	logger  logrus.FieldLogger
	metrics *Metrics
}

func NewProvisioner(client *Client, logger logrus.FieldLogger, metrics *Metrics) *Provisioner {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Provisioner{client: client, logger: logger, metrics: metrics}
}

// MatchingImages returns the verified supported images that match
// publisher, offer, and skuPrefix, sorted by SKU.
func (p *Provisioner) MatchingImages(ctx context.Context, publisher, offer, skuPrefix string) ([]batch.ImageInformation, error) {
	images, err := p.client.account.listSupportedImages(ctx, verifiedImageFilter)
	if err != nil {
		p.metrics.providerError(err)
		return nil, fmt.Errorf("listing supported images: %w", err)
	}
	return filterImages(images, publisher, offer, skuPrefix), nil
}

func filterImages(images []batch.ImageInformation, publisher, offer, skuPrefix string) []batch.ImageInformation {
	var matches []batch.ImageInformation
	for _, img := range images {
		ref := img.ImageReference
		if ref == nil {
			continue
		}
		if strings.EqualFold(to.String(ref.Publisher), publisher) &&
			strings.EqualFold(to.String(ref.Offer), offer) &&
			strings.HasPrefix(strings.ToLower(to.String(ref.Sku)), strings.ToLower(skuPrefix)) {
			matches = append(matches, img)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return to.String(matches[i].ImageReference.Sku) < to.String(matches[j].ImageReference.Sku)
	})
	return matches
}

// SelectImage returns the matching image with the highest SKU.
func (p *Provisioner) SelectImage(ctx context.Context, publisher, offer, skuPrefix string) (batch.ImageInformation, error) {
	matches, err := p.MatchingImages(ctx, publisher, offer, skuPrefix)
	if err != nil {
		return batch.ImageInformation{}, err
	}
	if len(matches) == 0 {
		return batch.ImageInformation{}, fmt.Errorf("%w publisher %q offer %q sku prefix %q", ErrNoImage, publisher, offer, skuPrefix)
	}
	return matches[len(matches)-1], nil
}

// EnsurePool creates the pool described by spec. If a pool with the
// same ID already exists, it is used as is.
func (p *Provisioner) EnsurePool(ctx context.Context, spec PoolSpec) error {
	logger := p.logger.WithField("PoolID", spec.ID)
	startCommand, err := WrapCommandsInShell(spec.OSType, spec.StartTaskCommands)
	if err != nil {
		return err
	}
	image, err := p.SelectImage(ctx, spec.Publisher, spec.Offer, spec.SKUPrefix)
	if err != nil {
		return err
	}
	logger = logger.WithFields(logrus.Fields{
		"ImageSKU":       to.String(image.ImageReference.Sku),
		"NodeAgentSKUID": to.String(image.NodeAgentSKUID),
	})

	err = p.client.pools.add(ctx, batch.PoolAddParameter{
		ID:     to.StringPtr(spec.ID),
		VMSize: to.StringPtr(spec.VMSize),
		VirtualMachineConfiguration: &batch.VirtualMachineConfiguration{
			ImageReference: image.ImageReference,
			NodeAgentSKUID: image.NodeAgentSKUID,
		},
		TargetDedicatedNodes: to.Int32Ptr(int32(spec.NodeCount)),
		StartTask: &batch.StartTask{
			CommandLine: to.StringPtr(startCommand),
			UserIdentity: &batch.UserIdentity{
				AutoUser: &batch.AutoUserSpecification{
					Scope:          autoUserScopePool,
					ElevationLevel: elevationLevelAdmin,
				},
			},
			WaitForSuccess: to.BoolPtr(true),
		},
	})
	if err == nil {
		logger.WithField("NodeCount", spec.NodeCount).Info("created pool")
		return nil
	}
	p.metrics.providerError(err)
	if KindOf(err) == KindPoolExists {
		logger.Info("pool already exists")
		return nil
	}
	return fmt.Errorf("creating pool %q: %w", spec.ID, err)
}
