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
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/mirrorfuse/mirrorfuse/internal/attrs"
	"github.com/mirrorfuse/mirrorfuse/internal/registry"
	"golang.org/x/sys/unix"
)

func (fs *FS) applyOwnerAndModeOverrides(a *fuseops.InodeAttributes) {
	if fs.cfg.Uid >= 0 {
		a.Uid = uint32(fs.cfg.Uid)
	}
	if fs.cfg.Gid >= 0 {
		a.Gid = uint32(fs.cfg.Gid)
	}
	if a.Mode.IsDir() && fs.cfg.DirMode != 0 {
		a.Mode = os.ModeDir | os.FileMode(fs.cfg.DirMode)
	} else if a.Mode.IsRegular() && fs.cfg.FileMode != 0 {
		a.Mode = os.FileMode(fs.cfg.FileMode)
	}
}

func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	fs.countOp("statfs")

	var st unix.Statfs_t
	if err := unix.Statfs(fs.cfg.SourceRoot, &st); err != nil {
		return errToErrno(err)
	}

	op.BlockSize = uint32(st.Bsize)
	op.Blocks = st.Blocks
	op.BlocksFree = st.Bfree
	op.BlocksAvailable = st.Bavail
	op.IoSize = uint32(st.Bsize)
	op.Inodes = st.Files
	op.InodesFree = st.Ffree
	return nil
}

func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.countOp("getattr")

	if fd, ok := fs.reg.FDOf(op.Inode); ok && op.Inode != registry.Root {
		_, a, err := attrs.Fstat(fd, "", fs.cfg.SourceRoot)
		if err != nil {
			return errToErrno(err)
		}
		fs.applyOwnerAndModeOverrides(&a)
		op.Attributes = a
		return nil
	}

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if fs.isExcluded(path) {
		return syscall.ENOENT
	}

	_, a, err := attrs.Lstat(path, fs.cfg.SourceRoot)
	if err != nil {
		return errToErrno(err)
	}
	fs.applyOwnerAndModeOverrides(&a)
	op.Attributes = a
	return nil
}

func (fs *FS) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	fs.countOp("setattr")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	fd, hasFD := fs.reg.FDOf(op.Inode)

	if op.Size != nil {
		var err error
		if hasFD {
			err = syscall.Ftruncate(fd, int64(*op.Size))
		} else {
			err = os.Truncate(path, int64(*op.Size))
		}
		if err != nil {
			return errToErrno(err)
		}
	}

	if op.Mode != nil {
		var err error
		if hasFD {
			err = syscall.Fchmod(fd, uint32(*op.Mode))
		} else {
			err = os.Chmod(path, *op.Mode)
		}
		if err != nil {
			return errToErrno(err)
		}
	}

	if op.Atime != nil || op.Mtime != nil {
		if err := fs.setTimes(path, op.Atime, op.Mtime); err != nil {
			return errToErrno(err)
		}
	}

	var a fuseops.InodeAttributes
	var err error
	if hasFD {
		_, a, err = attrs.Fstat(fd, path, fs.cfg.SourceRoot)
	} else {
		_, a, err = attrs.Lstat(path, fs.cfg.SourceRoot)
	}
	if err != nil {
		return errToErrno(err)
	}
	fs.applyOwnerAndModeOverrides(&a)
	op.Attributes = a
	return nil
}

// setTimes updates atime/mtime without following a trailing symlink. Since
// utimensat requires both values, whichever one wasn't requested is first
// read back from the current attributes and rewritten unchanged.
func (fs *FS) setTimes(path string, atime, mtime *time.Time) error {
	_, current, err := attrs.Lstat(path, fs.cfg.SourceRoot)
	if err != nil {
		return err
	}

	a := current.Atime
	if atime != nil {
		a = *atime
	}
	m := current.Mtime
	if mtime != nil {
		m = *mtime
	}

	ts := []unix.Timespec{
		unix.NsecToTimespec(a.UnixNano()),
		unix.NsecToTimespec(m.UnixNano()),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW)
}

func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.countOp("lookup")

	parentPath, ok := fs.reg.PathOf(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if fs.isExcluded(path) {
		return syscall.ENOENT
	}

	ino, a, err := attrs.Lstat(path, fs.cfg.SourceRoot)
	if err != nil {
		return errToErrno(err)
	}
	fs.applyOwnerAndModeOverrides(&a)

	if op.Name != "." && op.Name != ".." {
		fs.reg.RememberPath(ino, path)
	}
	op.Entry.Child = ino
	op.Entry.Attributes = a
	return nil
}

func (fs *FS) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.countOp("forget")
	fs.reg.Forget([]registry.ForgetEntry{{Inode: op.Inode, N: op.N}})
	return nil
}

func (fs *FS) BatchForget(ctx context.Context, op *fuseops.BatchForgetOp) error {
	fs.countOp("batchforget")
	entries := make([]registry.ForgetEntry, 0, len(op.Entries))
	for _, e := range op.Entries {
		entries = append(entries, registry.ForgetEntry{Inode: e.Inode, N: uint64(e.N)})
	}
	fs.reg.Forget(entries)
	return nil
}
