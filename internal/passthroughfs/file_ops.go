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

package passthroughfs

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/mirrorfuse/mirrorfuse/internal/accesslog"
	"github.com/mirrorfuse/mirrorfuse/internal/attrs"
	"github.com/mirrorfuse/mirrorfuse/internal/logger"
	"golang.org/x/sys/unix"
)

func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fs.countOp("open")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if fs.isExcluded(path) {
		return syscall.ENOENT
	}

	flags := int(op.Flags)
	fd, err := fs.reg.OpenFD(op.Inode, path, flags)
	if err != nil {
		return errToErrno(err)
	}

	fs.rec.RecordOpen(path, accesslog.ClassForFlags(flags))
	op.Handle = fuseops.HandleID(fd)
	logger.Accessf("OPEN %s", path)
	return nil
}

func (fs *FS) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	fs.countOp("create")

	parentPath, ok := fs.reg.PathOf(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if fs.isExcluded(path) {
		return syscall.ENOENT
	}

	flags := int(op.Flags) | os.O_CREAT | os.O_TRUNC
	fd, err := syscall.Open(path, flags, uint32(op.Mode.Perm()))
	if err != nil {
		return errToErrno(err)
	}

	if fs.cfg.Uid >= 0 || fs.cfg.Gid >= 0 {
		uid, gid := int(op.OpContext.Uid), int(op.OpContext.Gid)
		if fs.cfg.Uid >= 0 {
			uid = fs.cfg.Uid
		}
		if fs.cfg.Gid >= 0 {
			gid = fs.cfg.Gid
		}
		_ = syscall.Fchown(fd, uid, gid)
	}

	ino, a, err := attrs.Fstat(fd, path, fs.cfg.SourceRoot)
	if err != nil {
		syscall.Close(fd)
		return errToErrno(err)
	}
	fs.applyOwnerAndModeOverrides(&a)

	fs.reg.RememberPath(ino, path)
	fs.reg.InstallFD(ino, fd)
	fs.rec.RecordOpen(path, accesslog.ClassForFlags(flags))

	op.Entry.Child = ino
	op.Entry.Attributes = a
	op.Handle = fuseops.HandleID(fd)
	logger.Accessf("CREATE %s", path)
	return nil
}

func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.countOp("read")

	n, err := syscall.Pread(int(op.Handle), op.Dst, op.Offset)
	if err != nil {
		return errToErrno(err)
	}
	op.BytesRead = n
	return nil
}

func (fs *FS) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	fs.countOp("write")

	n, err := syscall.Pwrite(int(op.Handle), op.Data, op.Offset)
	if err != nil {
		return errToErrno(err)
	}
	// WriteFileOp carries no bytes-written field to report back to the
	// kernel; a short write has nowhere to go but an error, since the core
	// does no short-write retry (spec.md §4.4).
	if n != len(op.Data) {
		return syscall.EIO
	}
	return nil
}

func (fs *FS) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	fs.countOp("flush")
	return nil
}

func (fs *FS) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	fs.countOp("fsync")
	return errToErrno(syscall.Fsync(int(op.Handle)))
}

func (fs *FS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.countOp("release")

	fd := int(op.Handle)
	if err := fs.reg.ReleaseFD(fd); err != nil {
		return errToErrno(err)
	}
	logger.Debugf("released fd %d", fd)
	return nil
}

func (fs *FS) Fallocate(ctx context.Context, op *fuseops.FallocateOp) error {
	fs.countOp("fallocate")
	return errToErrno(unix.Fallocate(int(op.Handle), op.Mode, int64(op.Offset), int64(op.Length)))
}
