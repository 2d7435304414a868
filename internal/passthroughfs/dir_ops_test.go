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
	"os"
	"path/filepath"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
)

func (t *PassthroughFSTest) TestReadDirListsEntriesAndSkipsMountPoint() {
	require := t.Require()
	require.NoError(os.WriteFile(filepath.Join(t.dir, "one"), []byte("x"), 0644))
	require.NoError(os.Mkdir(filepath.Join(t.dir, "two"), 0755))
	require.NoError(os.Mkdir(t.fs.cfg.MountPoint, 0755))

	openOp := &fuseops.OpenDirOp{Inode: registryRoot()}
	require.NoError(t.fs.OpenDir(t.ctx, openOp))

	dst := make([]byte, 4096)
	readOp := &fuseops.ReadDirOp{Inode: registryRoot(), Handle: openOp.Handle, Offset: 0, Dst: dst}
	require.NoError(t.fs.ReadDir(t.ctx, readOp))

	t.Greater(readOp.BytesRead, 0)

	// Emitted entries are remembered; the mount point must not be.
	fi, err := os.Lstat(t.fs.cfg.MountPoint)
	require.NoError(err)
	_, remembered := t.fs.reg.PathOf(fuseops.InodeID(fi.Sys().(*syscall.Stat_t).Ino))
	t.False(remembered)
	require.NoError(t.fs.ReleaseDirHandle(t.ctx, &fuseops.ReleaseDirHandleOp{Handle: openOp.Handle}))
}

func (t *PassthroughFSTest) TestCreateLinkSharesInode() {
	require := t.Require()
	require.NoError(os.WriteFile(filepath.Join(t.dir, "orig"), []byte("x"), 0644))

	lookup := &fuseops.LookUpInodeOp{Parent: registryRoot(), Name: "orig"}
	require.NoError(t.fs.LookUpInode(t.ctx, lookup))

	linkOp := &fuseops.CreateLinkOp{Parent: registryRoot(), Name: "alias", Target: lookup.Entry.Child}
	require.NoError(t.fs.CreateLink(t.ctx, linkOp))

	t.Equal(lookup.Entry.Child, linkOp.Entry.Child)

	_, err := os.Stat(filepath.Join(t.dir, "alias"))
	require.NoError(err)
}
