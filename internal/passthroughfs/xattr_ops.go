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
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/pkg/xattr"
	"golang.org/x/sys/unix"
)

func (fs *FS) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	fs.countOp("getxattr")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	value, err := xattr.LGet(path, op.Name)
	if err != nil {
		return xattrErrToErrno(err)
	}

	op.BytesRead = len(value)
	if len(op.Dst) >= len(value) {
		copy(op.Dst, value)
	} else if len(op.Dst) != 0 {
		return syscall.ERANGE
	}
	return nil
}

func (fs *FS) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	fs.countOp("setxattr")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	if op.Flags == unix.XATTR_CREATE || op.Flags == unix.XATTR_REPLACE {
		_, err := xattr.LGet(path, op.Name)
		exists := err == nil
		if op.Flags == unix.XATTR_CREATE && exists {
			return syscall.EEXIST
		}
		if op.Flags == unix.XATTR_REPLACE && !exists {
			return fuse.ENOATTR
		}
	}

	if err := xattr.LSet(path, op.Name, op.Value); err != nil {
		return xattrErrToErrno(err)
	}
	return nil
}

func (fs *FS) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error {
	fs.countOp("removexattr")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	if err := xattr.LRemove(path, op.Name); err != nil {
		return xattrErrToErrno(err)
	}
	return nil
}

func (fs *FS) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	fs.countOp("listxattr")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	names, err := xattr.LList(path)
	if err != nil {
		return xattrErrToErrno(err)
	}

	dst := op.Dst
	for _, name := range names {
		keyLen := len(name) + 1
		if len(dst) >= keyLen {
			copy(dst, name)
			dst[len(name)] = 0
			dst = dst[keyLen:]
		} else if len(op.Dst) != 0 {
			return syscall.ERANGE
		}
		op.BytesRead += keyLen
	}
	return nil
}

// xattrErrToErrno unwraps the *xattr.Error the pkg/xattr library wraps
// every syscall failure in and maps the missing-attribute case to
// fuse.ENOATTR, matching what getfattr/setfattr callers expect.
func xattrErrToErrno(err error) error {
	if xerr, ok := err.(*xattr.Error); ok {
		if xerr.Err == xattr.ENOATTR {
			return fuse.ENOATTR
		}
		return errToErrno(xerr.Err)
	}
	return errToErrno(err)
}
