// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"encoding/json"
	"fmt"
)

// secretKeys lists the config entries that must not be revealed in
// dumps or logs.
var secretKeys = map[string]bool{
	"_BATCH_ACCOUNT_KEY":   true,
	"_STORAGE_ACCOUNT_KEY": true,
	"client_secret":        true,
}

const redacted = "xxxxx"

// Redacted returns the config as a generic map with the value of each
// non-empty secret entry replaced by a placeholder.
func Redacted(cfg *Config) (map[string]interface{}, error) {
	buf, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	err = json.Unmarshal(buf, &m)
	if err != nil {
		return nil, err
	}
	for k := range secretKeys {
		v, ok := m[k]
		if !ok {
			return nil, fmt.Errorf("bug: secret key %q is not a config entry", k)
		}
		if s, _ := v.(string); s != "" {
			m[k] = redacted
		}
	}
	return m, nil
}
