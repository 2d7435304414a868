// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package util holds small path-resolution helpers shared between the CLI
// and daemonized child process.
package util

import (
	"os"
	"path/filepath"
	"strings"
)

// MirrorfuseParentProcessDir is the environment variable a daemonized child
// process uses to recover the working directory its parent had, since
// daemonize.Run changes the child's working directory before re-executing.
const MirrorfuseParentProcessDir = "MIRRORFUSE_PARENT_PROCESS_DIR"

// GetResolvedPath resolves path to an absolute path. A leading "~" expands
// to the user's home directory; any other relative path is joined against
// the recorded parent-process working directory (if MirrorfuseParentProcessDir
// is set, i.e. this is a daemonized child) or else the current working
// directory. An empty path resolves to an empty path.
func GetResolvedPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}

	if filepath.IsAbs(path) {
		return path, nil
	}

	base := os.Getenv(MirrorfuseParentProcessDir)
	if base == "" {
		var err error
		base, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(base, path), nil
}
