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

func (t *PassthroughFSTest) TestSetGetXattrRoundTrip() {
	path := filepath.Join(t.dir, "xf")
	require := t.Require()
	require.NoError(os.WriteFile(path, []byte("x"), 0644))

	lookup := &fuseops.LookUpInodeOp{Parent: registryRoot(), Name: "xf"}
	require.NoError(t.fs.LookUpInode(t.ctx, lookup))

	setOp := &fuseops.SetXattrOp{Inode: lookup.Entry.Child, Name: "user.mirrorfuse.test", Value: []byte("v1")}
	if err := t.fs.SetXattr(t.ctx, setOp); err != nil {
		t.T().Skipf("xattrs unsupported on this filesystem: %v", err)
		return
	}

	getOp := &fuseops.GetXattrOp{Inode: lookup.Entry.Child, Name: "user.mirrorfuse.test", Dst: make([]byte, 16)}
	require.NoError(t.fs.GetXattr(t.ctx, getOp))
	t.Equal("v1", string(getOp.Dst[:getOp.BytesRead]))

	require.NoError(t.fs.RemoveXattr(t.ctx, &fuseops.RemoveXattrOp{Inode: lookup.Entry.Child, Name: "user.mirrorfuse.test"}))

	getOp2 := &fuseops.GetXattrOp{Inode: lookup.Entry.Child, Name: "user.mirrorfuse.test", Dst: make([]byte, 16)}
	err := t.fs.GetXattr(t.ctx, getOp2)
	t.Error(err)
}

func (t *PassthroughFSTest) TestGetXattrMissingInodeIsENOENT() {
	op := &fuseops.GetXattrOp{Inode: fuseops.InodeID(999999), Name: "user.whatever"}
	err := t.fs.GetXattr(t.ctx, op)
	t.Equal(syscall.ENOENT, err)
}
