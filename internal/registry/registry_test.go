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

package registry

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RegistryTest struct {
	suite.Suite
	dir string
	reg *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTest))
}

func (t *RegistryTest) SetupTest() {
	t.dir = t.T().TempDir()
	t.reg = New(t.dir)
}

func (t *RegistryTest) TestRootIsPrebound() {
	p, err := t.reg.InodeToPath(Root)

	require.NoError(t.T(), err)
	assert.Equal(t.T(), t.dir, p)
}

func (t *RegistryTest) TestRememberAndForgetPath() {
	child := filepath.Join(t.dir, "child")
	require.NoError(t.T(), os.WriteFile(child, []byte("x"), 0644))
	const inode = fuseops.InodeID(42)

	t.reg.RememberPath(inode, child)
	p, err := t.reg.InodeToPath(inode)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), child, p)

	t.reg.Forget([]ForgetEntry{{Inode: inode, N: 1}})
	_, err = t.reg.InodeToPath(inode)
	assert.Equal(t.T(), syscall.ENOENT, err)
}

func (t *RegistryTest) TestRememberPathIgnoresRoot() {
	t.reg.RememberPath(Root, filepath.Join(t.dir, "whatever"))

	p, err := t.reg.InodeToPath(Root)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), t.dir, p)
}

func (t *RegistryTest) TestInodeToPathPrunesStaleEntries() {
	child := filepath.Join(t.dir, "gone")
	require.NoError(t.T(), os.WriteFile(child, []byte("x"), 0644))
	const inode = fuseops.InodeID(7)
	t.reg.RememberPath(inode, child)
	require.NoError(t.T(), os.Remove(child))

	_, err := t.reg.InodeToPath(inode)

	assert.Equal(t.T(), syscall.ENOENT, err)
}

func (t *RegistryTest) TestOpenFDSharesAcrossRepeatedOpens() {
	child := filepath.Join(t.dir, "f")
	require.NoError(t.T(), os.WriteFile(child, []byte("x"), 0644))
	const inode = fuseops.InodeID(9)
	t.reg.RememberPath(inode, child)

	fd1, err := t.reg.OpenFD(inode, child, os.O_RDONLY)
	require.NoError(t.T(), err)
	fd2, err := t.reg.OpenFD(inode, child, os.O_RDONLY)
	require.NoError(t.T(), err)

	assert.Equal(t.T(), fd1, fd2)

	require.NoError(t.T(), t.reg.ReleaseFD(fd1))
	gotFD, ok := t.reg.FDOf(inode)
	assert.True(t.T(), ok)
	assert.Equal(t.T(), fd1, gotFD)

	require.NoError(t.T(), t.reg.ReleaseFD(fd2))
	_, ok = t.reg.FDOf(inode)
	assert.False(t.T(), ok)
}

func (t *RegistryTest) TestForgetWithOpenFDPanics() {
	child := filepath.Join(t.dir, "f")
	require.NoError(t.T(), os.WriteFile(child, []byte("x"), 0644))
	const inode = fuseops.InodeID(11)
	t.reg.RememberPath(inode, child)
	_, err := t.reg.OpenFD(inode, child, os.O_RDONLY)
	require.NoError(t.T(), err)

	assert.Panics(t.T(), func() {
		t.reg.Forget([]ForgetEntry{{Inode: inode, N: 1}})
	})
}

func (t *RegistryTest) TestSwapPathPreservesLookupCount() {
	oldPath := filepath.Join(t.dir, "old")
	newPath := filepath.Join(t.dir, "new")
	require.NoError(t.T(), os.WriteFile(newPath, []byte("x"), 0644))
	const inode = fuseops.InodeID(13)
	t.reg.RememberPath(inode, oldPath)
	t.reg.RememberPath(inode, oldPath)

	t.reg.SwapPath(inode, oldPath, newPath)

	p, err := t.reg.InodeToPath(inode)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), newPath, p)
	assert.Equal(t.T(), uint64(2), t.reg.lookupCount[inode])
}
