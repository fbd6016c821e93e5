// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"strings"

	"github.com/ragpan29/Azure/lib/config"
)

// WrapCommandsInShell returns a single command line that runs cmds in
// order under the node's shell. On linux the commands run under bash
// with errexit and pipefail; on windows under cmd.exe.
//
// The commands are inserted verbatim. Quotes inside them are not
// escaped.
func WrapCommandsInShell(ostype string, cmds []string) (string, error) {
	ostype, err := config.NormalizeOSType(ostype)
	if err != nil {
		return "", err
	}
	if ostype == config.OSWindows {
		return `cmd.exe /c "` + strings.Join(cmds, "&") + `"`, nil
	}
	return "/bin/bash -c 'set -e; set -o pipefail; " + strings.Join(cmds, ";") + "; wait'", nil
}

var linuxAppNameReplacer = strings.NewReplacer(".", "_", "#", "_", "-", "_")

// AppRenameRules returns the suffix the Batch node agent adds to
// AZ_BATCH_APP_PACKAGE to form the environment variable holding an
// application package's install directory.
func AppRenameRules(app, version, ostype string) string {
	if strings.EqualFold(ostype, config.OSLinux) {
		name := "_" + linuxAppNameReplacer.Replace(app)
		if version != "" {
			name += "_" + linuxAppNameReplacer.Replace(version)
		}
		return name
	}
	name := "_" + app
	if version != "" {
		name += "#" + version
	}
	return name
}

// appPackagePath returns a shell expression for the install directory
// of an application package on a compute node.
func appPackagePath(app, version, ostype string) string {
	if strings.EqualFold(ostype, config.OSWindows) {
		return "%AZ_BATCH_APP_PACKAGE" + AppRenameRules(app, version, ostype) + "%"
	}
	return "$AZ_BATCH_APP_PACKAGE" + AppRenameRules(app, version, ostype)
}
