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
	"github.com/mirrorfuse/mirrorfuse/internal/attrs"
	"github.com/mirrorfuse/mirrorfuse/internal/logger"
)

func (fs *FS) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fs.countOp("rename")

	oldParentPath, ok := fs.reg.PathOf(op.OldParent)
	if !ok {
		return syscall.ENOENT
	}
	newParentPath, ok := fs.reg.PathOf(op.NewParent)
	if !ok {
		return syscall.ENOENT
	}
	oldPath := childPath(oldParentPath, op.OldName)
	newPath := childPath(newParentPath, op.NewName)
	if fs.isExcluded(oldPath) || fs.isExcluded(newPath) {
		return syscall.ENOENT
	}

	ino, _, statErr := attrs.Lstat(oldPath, fs.cfg.SourceRoot)

	if err := syscall.Rename(oldPath, newPath); err != nil {
		return errToErrno(err)
	}

	if statErr == nil {
		fs.reg.SwapPath(ino, oldPath, newPath)
	}
	logger.Accessf("RENAME %s -> %s", oldPath, newPath)
	return nil
}

func (fs *FS) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	fs.countOp("link")

	parentPath, ok := fs.reg.PathOf(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	targetPath, ok := fs.reg.PathOf(op.Target)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if fs.isExcluded(path) {
		return syscall.ENOENT
	}

	if err := os.Link(targetPath, path); err != nil {
		return errToErrno(err)
	}

	fs.reg.RememberPath(op.Target, path)

	_, a, err := attrs.Lstat(path, fs.cfg.SourceRoot)
	if err != nil {
		return errToErrno(err)
	}
	fs.applyOwnerAndModeOverrides(&a)
	op.Entry.Child = op.Target
	op.Entry.Attributes = a
	logger.Accessf("LINK %s -> %s", path, targetPath)
	return nil
}

func (fs *FS) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	fs.countOp("unlink")

	parentPath, ok := fs.reg.PathOf(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)

	ino, _, statErr := attrs.Lstat(path, fs.cfg.SourceRoot)

	if err := syscall.Unlink(path); err != nil {
		return errToErrno(err)
	}
	if statErr == nil {
		fs.reg.ForgetPath(ino, path)
	}
	logger.Accessf("UNLINK %s", path)
	return nil
}

func (fs *FS) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	fs.countOp("symlink")

	parentPath, ok := fs.reg.PathOf(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if fs.isExcluded(path) {
		return syscall.ENOENT
	}

	if err := os.Symlink(op.Target, path); err != nil {
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
		_ = os.Lchown(path, uid, gid)
	} else {
		_ = os.Lchown(path, int(op.OpContext.Uid), int(op.OpContext.Gid))
	}

	ino, a, err := attrs.Lstat(path, fs.cfg.SourceRoot)
	if err != nil {
		return errToErrno(err)
	}
	fs.applyOwnerAndModeOverrides(&a)
	fs.reg.RememberPath(ino, path)

	op.Entry.Child = ino
	op.Entry.Attributes = a
	logger.Accessf("SYMLINK %s -> %s", path, op.Target)
	return nil
}

func (fs *FS) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	fs.countOp("readlink")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	target, err := os.Readlink(path)
	if err != nil {
		return errToErrno(err)
	}
	op.Target = target
	return nil
}
