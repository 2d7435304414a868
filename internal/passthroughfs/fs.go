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

// Package passthroughfs implements the operation handlers that translate
// kernel filesystem requests into syscalls against a source directory tree,
// re-exposing it through a FUSE mount.
package passthroughfs

import (
	"path/filepath"
	"syscall"

	"github.com/jacobsa/fuse/fuseutil"
	"github.com/mirrorfuse/mirrorfuse/internal/accesslog"
	"github.com/mirrorfuse/mirrorfuse/internal/clock"
	"github.com/mirrorfuse/mirrorfuse/internal/logger"
	"github.com/mirrorfuse/mirrorfuse/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the per-mount options that shape attribute reporting.
type Config struct {
	SourceRoot string
	MountPoint string

	// Uid and Gid, when >= 0, override the owner reported for every inode.
	Uid int
	Gid int

	// FileMode and DirMode, when nonzero, override the permission bits
	// reported for regular files and directories respectively.
	FileMode uint32
	DirMode  uint32
}

// FS implements fuseutil.FileSystem as a passthrough onto Config.SourceRoot.
type FS struct {
	fuseutil.NotImplementedFileSystem

	cfg   Config
	reg   *registry.Registry
	clock clock.Clock
	rec   *accesslog.Recorder

	opsTotal *prometheus.CounterVec
}

var _ fuseutil.FileSystem = (*FS)(nil)

// New constructs a passthrough filesystem rooted at cfg.SourceRoot.
func New(cfg Config, clk clock.Clock, rec *accesslog.Recorder, reg *prometheus.Registry) (*FS, error) {
	opsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorfuse_ops_total",
		Help: "Count of dispatched filesystem operations by kind.",
	}, []string{"op"})
	if reg != nil {
		if err := reg.Register(opsTotal); err != nil {
			return nil, err
		}
	}

	return &FS{
		cfg:      cfg,
		reg:      registry.New(cfg.SourceRoot),
		clock:    clk,
		rec:      rec,
		opsTotal: opsTotal,
	}, nil
}

func (fs *FS) countOp(name string) {
	fs.opsTotal.WithLabelValues(name).Inc()
}

// isExcluded reports whether path refers to the mount point itself, which
// must never be resolved or enumerated by this filesystem to avoid
// recursing into its own mount.
func (fs *FS) isExcluded(path string) bool {
	if fs.cfg.MountPoint == "" {
		return false
	}
	return filepath.Clean(path) == filepath.Clean(fs.cfg.MountPoint)
}

// errToErrno maps a host syscall failure to a wire-ready error. Any error
// that is already a syscall.Errno is returned unchanged; anything else is
// logged and reported as EIO, so the kernel never sees a raw Go error.
func errToErrno(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	logger.Debugf("unexpected non-errno error: %v", err)
	return syscall.EIO
}

func childPath(parentPath, name string) string {
	return filepath.Join(parentPath, name)
}
