// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"context"
	"flag"
	"io"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ragpan29/Azure/lib/blobstore"
	"github.com/ragpan29/Azure/lib/cmd"
	"github.com/ragpan29/Azure/lib/config"
	"github.com/ragpan29/Azure/lib/poll"
	"github.com/ragpan29/Azure/sdk/go/ctxlog"
	"github.com/sirupsen/logrus"
)

var (
	RunCommand    cmd.Handler = runCommand{}
	WaitCommand   cmd.Handler = waitCommand{}
	ImagesCommand cmd.Handler = imagesCommand{}
)

// Replaced in tests.
var (
	newClient = NewClient
	newInputs = func(cfg *config.Config, logger logrus.FieldLogger) (ArtifactLister, error) {
		return blobstore.NewStore(cfg, cfg.InputStorageContainer, logger)
	}
)

type commonFlags struct {
	configFile string
	logLevel   string
	logFormat  string
}

func (cf *commonFlags) bind(flags *flag.FlagSet) {
	flags.StringVar(&cf.configFile, "config", config.DefaultConfigFile, "config `file` (\"-\" for stdin)")
	flags.StringVar(&cf.logLevel, "log-level", "info", "log `level` (debug, info, warn, error)")
	flags.StringVar(&cf.logFormat, "log-format", "text", "log `format` (text or json)")
}

// setup returns a logger and the loaded config. The logger is
// usable even if err is non-nil.
func (cf *commonFlags) setup(stdin io.Reader, stderr io.Writer) (*logrus.Logger, *config.Config, error) {
	logger := ctxlog.New(stderr, cf.logFormat, cf.logLevel)
	cfg, err := config.LoadFile(cf.configFile, stdin, logger)
	if err != nil {
		return logger, nil, err
	}
	err = cfg.Check()
	if err != nil {
		return logger, nil, err
	}
	return logger, cfg, nil
}

type runCommand struct{}

func (runCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts commonFlags
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	opts.bind(flags)
	metricsFile := flags.String("metrics-file", "", "write run metrics to `file` in Prometheus text format when the run ends")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	logger, cfg, err := opts.setup(stdin, stderr)
	if err != nil {
		logger.WithError(err).Error("cannot load config")
		return 1
	}

	reg := prometheus.NewRegistry()
	if *metricsFile != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
				logger.WithError(err).Error("cannot write metrics file")
			}
		}()
	}

	client, err := newClient(cfg)
	if err != nil {
		logger.WithError(err).Error("cannot set up Batch client")
		return 1
	}
	inputs, err := newInputs(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("cannot set up storage client")
		return 1
	}
	runner := &Runner{
		Config:   cfg,
		Client:   client,
		Inputs:   inputs,
		Registry: reg,
	}
	err = runner.Run(ctxlog.Context(context.Background(), logger))
	if err != nil {
		logger.WithError(err).Error("run failed")
		return 1
	}
	return 0
}

type waitCommand struct{}

func (waitCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts commonFlags
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	opts.bind(flags)
	jobID := flags.String("job", "", "job `ID` to wait for (default _JOB_ID from config)")
	timeout := flags.Duration("timeout", 0, "give up after `duration` (default _EXPECTED_MODEL_RUN_IN_MINUTES from config)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	logger, cfg, err := opts.setup(stdin, stderr)
	if err != nil {
		logger.WithError(err).Error("cannot load config")
		return 1
	}
	if *jobID == "" {
		*jobID = cfg.JobID
	}
	if *timeout <= 0 {
		*timeout = cfg.Timeout()
	}
	client, err := newClient(cfg)
	if err != nil {
		logger.WithError(err).Error("cannot set up Batch client")
		return 1
	}
	tracker := NewTracker(client, waitPoller(cfg), logger, nil)
	err = tracker.Wait(context.Background(), *jobID, *timeout)
	if err != nil {
		logger.WithError(err).Error("wait failed")
		return 1
	}
	return 0
}

// Replaced in tests.
var waitPoller = func(cfg *config.Config) poll.Poller {
	return poll.Poller{Interval: cfg.PollInterval.Duration()}
}

type imagesCommand struct{}

func (imagesCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts commonFlags
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	opts.bind(flags)
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	logger, cfg, err := opts.setup(stdin, stderr)
	if err != nil {
		logger.WithError(err).Error("cannot load config")
		return 1
	}
	client, err := newClient(cfg)
	if err != nil {
		logger.WithError(err).Error("cannot set up Batch client")
		return 1
	}
	images, err := NewProvisioner(client, logger, nil).MatchingImages(context.Background(), cfg.VMPublisher, cfg.VMOffer, cfg.VMSku)
	if err != nil {
		logger.WithError(err).Error("cannot list images")
		return 1
	}
	if len(images) == 0 {
		logger.WithFields(logrus.Fields{
			"Publisher": cfg.VMPublisher,
			"Offer":     cfg.VMOffer,
			"SKU":       cfg.VMSku,
		}).Error(ErrNoImage)
		return 1
	}
	table := tablewriter.NewWriter(stdout)
	table.Header("Publisher", "Offer", "SKU", "Node agent SKU", "Selected")
	for i, img := range images {
		selected := ""
		if i == len(images)-1 {
			selected = "yes"
		}
		ref := img.ImageReference
		table.Append(
			to.String(ref.Publisher),
			to.String(ref.Offer),
			to.String(ref.Sku),
			to.String(img.NodeAgentSKUID),
			selected,
		)
	}
	table.Render()
	return 0
}
