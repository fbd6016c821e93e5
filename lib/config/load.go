// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/sirupsen/logrus"
)

// DefaultYAML holds the default value of every supported key.
//
//go:embed config.default.yml
var DefaultYAML []byte

// Load reads a JSON (or YAML) config document from rdr and overlays it
// on the defaults. Unknown keys are logged as warnings.
func Load(rdr io.Reader, logger logrus.FieldLogger) (*Config, error) {
	buf, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	var cfg Config
	err = yaml.Unmarshal(DefaultYAML, &cfg)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %s", err)
	}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		err = logExtraKeys(buf, logger)
		if err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadFile loads the config file at path, or stdin if path is "-".
func LoadFile(path string, stdin io.Reader, logger logrus.FieldLogger) (*Config, error) {
	if path == "-" {
		return Load(stdin, logger)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Load(f, logger)
	if err != nil {
		return nil, fmt.Errorf("error decoding config %q: %v", path, err)
	}
	return cfg, nil
}

func logExtraKeys(buf []byte, logger logrus.FieldLogger) error {
	var known, supplied map[string]interface{}
	err := yaml.Unmarshal(DefaultYAML, &known)
	if err != nil {
		return fmt.Errorf("loading defaults: %s", err)
	}
	err = yaml.Unmarshal(buf, &supplied)
	if err != nil {
		return err
	}
	var extra []string
	for k := range supplied {
		if _, ok := known[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		logger.Warnf("deprecated or unknown config entry: %s", k)
	}
	return nil
}
