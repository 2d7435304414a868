// Copyright 2024 Google Inc. All Rights Reserved.
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

package mount

import (
	"fmt"
	"os"

	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/mirrorfuse/mirrorfuse/cfg"
	"github.com/mirrorfuse/mirrorfuse/internal/logger"
	"github.com/mirrorfuse/mirrorfuse/internal/util"
)

// Config builds the fuse.MountConfig that governs how the kernel talks to
// the mounted filesystem.
func Config(fsName string, logCfg cfg.LoggingConfig, fuseOptions []string) *fuse.MountConfig {
	parsedOptions := make(map[string]string)
	for _, o := range fuseOptions {
		ParseOptions(parsedOptions, o)
	}

	mountCfg := &fuse.MountConfig{
		FSName:                  fsName,
		Subtype:                 "mirrorfuse",
		VolumeName:              fsName,
		Options:                 parsedOptions,
		DisableWritebackCaching: true,
	}

	// Mirror the teacher's severity-to-jacobsa-fuse-logger mapping: the
	// kernel-facing fuse library gets its own error/debug loggers only when
	// the configured severity is fine enough to want that detail.
	if logCfg.Severity.Rank() <= cfg.ErrorLogSeverity.Rank() {
		mountCfg.ErrorLogger = logger.NewLegacyLogger(logger.LevelError, "fuse: ")
	}
	if logCfg.Severity.Rank() <= cfg.TraceLogSeverity.Rank() {
		mountCfg.DebugLogger = logger.NewLegacyLogger(logger.LevelTrace, "fuse_debug: ")
	}

	return mountCfg
}

// Mount brings fsys up at dir and blocks until the mount handshake with the
// kernel completes, returning a handle the caller joins to wait for unmount.
func Mount(dir string, fsys fuseutil.FileSystem, mountCfg *fuse.MountConfig) (*fuse.MountedFileSystem, error) {
	server := fuseutil.NewFileSystemServer(fsys)

	mfs, err := fuse.Mount(dir, server, mountCfg)
	if err != nil {
		return nil, fmt.Errorf("fuse.Mount: %w", err)
	}
	return mfs, nil
}

// Daemonize re-execs the current process in the background with args,
// mirroring the parent/child handshake the teacher uses so the parent can
// report mount success or failure before exiting. Callers append
// "--foreground" to args so the child does not daemonize again.
func Daemonize(args []string) error {
	path, err := os.Executable()
	if err != nil {
		return fmt.Errorf("os.Executable: %w", err)
	}

	env := []string{fmt.Sprintf("PATH=%s", os.Getenv("PATH"))}
	if wd, err := os.Getwd(); err == nil {
		env = append(env, fmt.Sprintf("%s=%s", util.MirrorfuseParentProcessDir, wd))
	}

	if err := daemonize.Run(path, args, env, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}
	return nil
}

// SignalMountOutcome tells a waiting daemonize parent whether the mount
// succeeded. It is a no-op (and returns nil) when not running as a daemon
// child.
func SignalMountOutcome(err error) error {
	return daemonize.SignalOutcome(err)
}
