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

	"github.com/jacobsa/fuse/fuseops"
)

func (t *PassthroughFSTest) TestGetInodeAttributesByPath() {
	require := t.Require()
	require.NoError(os.WriteFile(filepath.Join(t.dir, "g"), []byte("hello"), 0644))

	lookup := &fuseops.LookUpInodeOp{Parent: registryRoot(), Name: "g"}
	require.NoError(t.fs.LookUpInode(t.ctx, lookup))

	getOp := &fuseops.GetInodeAttributesOp{Inode: lookup.Entry.Child}
	require.NoError(t.fs.GetInodeAttributes(t.ctx, getOp))
	t.Equal(uint64(5), getOp.Attributes.Size)
}

func (t *PassthroughFSTest) TestSetInodeAttributesTruncatesSize() {
	require := t.Require()
	require.NoError(os.WriteFile(filepath.Join(t.dir, "s"), []byte("hello world"), 0644))

	lookup := &fuseops.LookUpInodeOp{Parent: registryRoot(), Name: "s"}
	require.NoError(t.fs.LookUpInode(t.ctx, lookup))

	newSize := uint64(5)
	setOp := &fuseops.SetInodeAttributesOp{Inode: lookup.Entry.Child, Size: &newSize}
	require.NoError(t.fs.SetInodeAttributes(t.ctx, setOp))
	t.Equal(newSize, setOp.Attributes.Size)

	fi, err := os.Stat(filepath.Join(t.dir, "s"))
	require.NoError(err)
	t.EqualValues(5, fi.Size())
}

func (t *PassthroughFSTest) TestForgetInodeDropsLookupCount() {
	require := t.Require()
	require.NoError(os.WriteFile(filepath.Join(t.dir, "fgt"), []byte("x"), 0644))

	lookup := &fuseops.LookUpInodeOp{Parent: registryRoot(), Name: "fgt"}
	require.NoError(t.fs.LookUpInode(t.ctx, lookup))

	require.NoError(t.fs.ForgetInode(t.ctx, &fuseops.ForgetInodeOp{Inode: lookup.Entry.Child, N: 1}))

	_, ok := t.fs.reg.PathOf(lookup.Entry.Child)
	t.False(ok)
}

func (t *PassthroughFSTest) TestBatchForgetDropsMultipleInodes() {
	require := t.Require()
	require.NoError(os.WriteFile(filepath.Join(t.dir, "b1"), []byte("x"), 0644))
	require.NoError(os.WriteFile(filepath.Join(t.dir, "b2"), []byte("x"), 0644))

	l1 := &fuseops.LookUpInodeOp{Parent: registryRoot(), Name: "b1"}
	require.NoError(t.fs.LookUpInode(t.ctx, l1))
	l2 := &fuseops.LookUpInodeOp{Parent: registryRoot(), Name: "b2"}
	require.NoError(t.fs.LookUpInode(t.ctx, l2))

	batchOp := &fuseops.BatchForgetOp{Entries: []fuseops.BatchForgetEntry{
		{Inode: l1.Entry.Child, N: 1},
		{Inode: l2.Entry.Child, N: 1},
	}}
	require.NoError(t.fs.BatchForget(t.ctx, batchOp))

	_, ok1 := t.fs.reg.PathOf(l1.Entry.Child)
	_, ok2 := t.fs.reg.PathOf(l2.Entry.Child)
	t.False(ok1)
	t.False(ok2)
}
