// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultConfigFile is the path read when no -config flag is given.
const DefaultConfigFile = "./batch/batch_config.json"

// Supported values for Config.OSType.
const (
	OSLinux   = "linux"
	OSWindows = "windows"
)

var (
	// ErrInvalid is wrapped by every configuration error.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnknownOSType is returned for an OS tag other than linux
	// or windows.
	ErrUnknownOSType = fmt.Errorf("%w: unknown ostype", ErrInvalid)
)

// Config is the full set of parameters for one batch run. It is
// loaded once at startup and passed to each component.
//
// The JSON keys match the batch_config.json documents used with the
// original scripts, so existing files load unchanged.
type Config struct {
	BatchAccountName string `json:"_BATCH_ACCOUNT_NAME"`
	BatchAccountKey  string `json:"_BATCH_ACCOUNT_KEY"`
	BatchAccountURL  string `json:"_BATCH_ACCOUNT_URL"`

	StorageAccountName     string `json:"_STORAGE_ACCOUNT_NAME"`
	StorageAccountKey      string `json:"_STORAGE_ACCOUNT_KEY"`
	AppStorageContainer    string `json:"_APP_STORAGE_CONTAINER"`
	InputStorageContainer  string `json:"_INPUT_STORAGE_CONTAINER"`
	OutputStorageContainer string `json:"_OUTPUT_STORAGE_CONTAINER"`

	PoolID string `json:"_POOL_ID"`
	JobID  string `json:"_JOB_ID"`

	AppName    string `json:"_APP_NAME"`
	AppVersion string `json:"_APP_VERSION"`
	AppFile    string `json:"_APP_FILE"`

	VMPublisher   string `json:"vm_publisher"`
	VMOffer       string `json:"vm_offer"`
	VMSku         string `json:"vm_sku"`
	PoolVMSize    string `json:"_POOL_VM_SIZE"`
	PoolNodeCount int    `json:"_POOL_NODE_COUNT"`

	ExpectedRuntimeMinutes int    `json:"_EXPECTED_MODEL_RUN_IN_MINUTES"`
	FilePattern            string `json:"_FILE_PATTERN"`

	OSType            string   `json:"os_type"`
	Interpreter       string   `json:"interpreter"`
	TaskIDPrefix      string   `json:"task_id_prefix"`
	StartTaskCommands []string `json:"start_task_commands"`
	PollInterval      Duration `json:"poll_interval"`
	SASValidity       Duration `json:"sas_validity"`

	// Service principal credentials. When set, the Batch client
	// authenticates with Azure AD instead of the account key.
	CloudEnvironment string `json:"cloud_environment"`
	ClientID         string `json:"client_id"`
	ClientSecret     string `json:"client_secret"`
	TenantID         string `json:"tenant_id"`
}

// Timeout returns the expected run time, which bounds the wait for
// task completion.
func (cfg *Config) Timeout() time.Duration {
	return time.Duration(cfg.ExpectedRuntimeMinutes) * time.Minute
}

// UseAAD reports whether service principal credentials are
// configured.
func (cfg *Config) UseAAD() bool {
	return cfg.ClientID != "" || cfg.ClientSecret != "" || cfg.TenantID != ""
}

// NormalizeOSType returns the canonical (lower case) form of an OS
// tag, or an error wrapping ErrUnknownOSType.
func NormalizeOSType(ostype string) (string, error) {
	switch lower := strings.ToLower(ostype); lower {
	case OSLinux, OSWindows:
		return lower, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOSType, ostype)
	}
}

// Check returns an error wrapping ErrInvalid describing every
// problem found, or nil if the config is usable.
func (cfg *Config) Check() error {
	var problems []string
	for _, req := range []struct {
		key string
		val string
	}{
		{"_BATCH_ACCOUNT_NAME", cfg.BatchAccountName},
		{"_BATCH_ACCOUNT_URL", cfg.BatchAccountURL},
		{"_STORAGE_ACCOUNT_NAME", cfg.StorageAccountName},
		{"_STORAGE_ACCOUNT_KEY", cfg.StorageAccountKey},
		{"_INPUT_STORAGE_CONTAINER", cfg.InputStorageContainer},
		{"_OUTPUT_STORAGE_CONTAINER", cfg.OutputStorageContainer},
		{"_POOL_ID", cfg.PoolID},
		{"_JOB_ID", cfg.JobID},
		{"_APP_NAME", cfg.AppName},
		{"_APP_FILE", cfg.AppFile},
		{"vm_publisher", cfg.VMPublisher},
		{"vm_offer", cfg.VMOffer},
		{"vm_sku", cfg.VMSku},
		{"_POOL_VM_SIZE", cfg.PoolVMSize},
		{"interpreter", cfg.Interpreter},
	} {
		if req.val == "" {
			problems = append(problems, req.key+" is empty")
		}
	}
	if cfg.UseAAD() {
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TenantID == "" {
			problems = append(problems, "client_id, client_secret, and tenant_id must all be set or all be empty")
		}
	} else if cfg.BatchAccountKey == "" {
		problems = append(problems, "_BATCH_ACCOUNT_KEY is empty and no service principal is configured")
	}
	if cfg.PoolNodeCount <= 0 {
		problems = append(problems, fmt.Sprintf("_POOL_NODE_COUNT must be positive (got %d)", cfg.PoolNodeCount))
	}
	if cfg.ExpectedRuntimeMinutes <= 0 {
		problems = append(problems, fmt.Sprintf("_EXPECTED_MODEL_RUN_IN_MINUTES must be positive (got %d)", cfg.ExpectedRuntimeMinutes))
	}
	if cfg.PollInterval <= 0 {
		problems = append(problems, fmt.Sprintf("poll_interval must be positive (got %s)", cfg.PollInterval))
	}
	if cfg.SASValidity <= 0 {
		problems = append(problems, fmt.Sprintf("sas_validity must be positive (got %s)", cfg.SASValidity))
	}
	if _, err := NormalizeOSType(cfg.OSType); err != nil {
		problems = append(problems, fmt.Sprintf("os_type %q is not %q or %q", cfg.OSType, OSLinux, OSWindows))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
