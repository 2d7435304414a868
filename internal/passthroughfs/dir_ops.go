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
	"sort"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/mirrorfuse/mirrorfuse/internal/attrs"
	"github.com/mirrorfuse/mirrorfuse/internal/logger"
)

func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fs.countOp("opendir")

	path, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	op.Handle = fuseops.HandleID(op.Inode)
	logger.Accessf("OPENDIR %s", path)
	return nil
}

func (fs *FS) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.countOp("releasedirhandle")
	return nil
}

type direntWithAttrs struct {
	ino  fuseops.InodeID
	name string
	typ  fuseutil.DirentType
}

func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.countOp("readdir")

	dirPath, ok := fs.reg.PathOf(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	f, err := os.Open(dirPath)
	if err != nil {
		return errToErrno(err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return errToErrno(err)
	}

	entries := make([]direntWithAttrs, 0, len(names))
	for _, name := range names {
		childPath := childPath(dirPath, name)
		if fs.isExcluded(childPath) {
			continue
		}
		ino, a, err := attrs.Lstat(childPath, fs.cfg.SourceRoot)
		if err != nil {
			// The entry may have been removed between Readdirnames and Lstat;
			// skip it rather than failing the whole listing.
			continue
		}
		entries = append(entries, direntWithAttrs{ino: ino, name: name, typ: directoryEntryType(a.Mode)})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ino != entries[j].ino {
			return entries[i].ino < entries[j].ino
		}
		return entries[i].name < entries[j].name
	})

	for _, e := range entries {
		if fuseops.DirOffset(e.ino) <= op.Offset {
			continue
		}

		d := fuseops.Dirent{
			Offset: fuseops.DirOffset(e.ino),
			Inode:  e.ino,
			Name:   e.name,
			Type:   e.typ,
		}
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], d)
		if n == 0 {
			break
		}
		op.BytesRead += n
		fs.reg.RememberPath(e.ino, childPath(dirPath, e.name))
	}

	return nil
}

func directoryEntryType(mode os.FileMode) fuseutil.DirentType {
	switch {
	case mode.IsDir():
		return fuseutil.DT_Directory
	case mode&os.ModeSymlink != 0:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

func (fs *FS) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	fs.countOp("mkdir")

	parentPath, ok := fs.reg.PathOf(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if fs.isExcluded(path) {
		return syscall.ENOENT
	}

	// fuseops.MkDirOp carries no umask of its own; the kernel has already
	// applied the caller's umask to op.Mode before it reaches us.
	if err := os.Mkdir(path, op.Mode&os.ModePerm); err != nil {
		return errToErrno(err)
	}
	if fs.cfg.Uid >= 0 || fs.cfg.Gid >= 0 {
		uid, gid := op.OpContext.Uid, op.OpContext.Gid
		if fs.cfg.Uid >= 0 {
			uid = uint32(fs.cfg.Uid)
		}
		if fs.cfg.Gid >= 0 {
			gid = uint32(fs.cfg.Gid)
		}
		_ = os.Lchown(path, int(uid), int(gid))
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
	logger.Accessf("MKDIR %s", path)
	return nil
}

func (fs *FS) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	fs.countOp("rmdir")

	parentPath, ok := fs.reg.PathOf(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)

	ino, _, statErr := attrs.Lstat(path, fs.cfg.SourceRoot)

	if err := syscall.Rmdir(path); err != nil {
		return errToErrno(err)
	}
	if statErr == nil {
		fs.reg.ForgetPath(ino, path)
	}
	logger.Accessf("RMDIR %s", path)
	return nil
}
