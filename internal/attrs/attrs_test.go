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

package attrs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"
)

func fakeStat(ino uint64) unix.Stat_t {
	return unix.Stat_t{Ino: ino, Mode: unix.S_IFREG | 0644, Nlink: 1}
}

type AttrsTest struct {
	suite.Suite
	dir string
}

func TestAttrsSuite(t *testing.T) {
	suite.Run(t, new(AttrsTest))
}

func (t *AttrsTest) SetupTest() {
	t.dir = t.T().TempDir()
}

func (t *AttrsTest) TestLstatRegularFile() {
	p := filepath.Join(t.dir, "f")
	require.NoError(t.T(), os.WriteFile(p, []byte("hello"), 0644))

	ino, a, err := Lstat(p, t.dir)

	require.NoError(t.T(), err)
	assert.NotZero(t.T(), ino)
	assert.Equal(t.T(), uint64(5), a.Size)
	assert.Equal(t.T(), os.FileMode(0644), a.Mode&0777)
}

func (t *AttrsTest) TestLstatDirectoryHasDirModeBit() {
	ino, a, err := Lstat(t.dir, t.dir)

	require.NoError(t.T(), err)
	assert.NotZero(t.T(), ino)
	assert.NotZero(t.T(), a.Mode&os.ModeDir)
}

func (t *AttrsTest) TestSyntheticInodeRangeBounds() {
	// Directly exercise the fabrication rule without requiring an actual
	// host inode 1, which is unavailable to an unprivileged test.
	for i := 0; i < 50; i++ {
		st := fakeStat(1)
		ino, _ := FromStat(&st, "/some/non/root/path", "/some/other/root")
		assert.GreaterOrEqual(t.T(), uint64(ino), uint64(SyntheticRangeLow))
		assert.Less(t.T(), uint64(ino), uint64(SyntheticRangeHigh))
	}
}

func (t *AttrsTest) TestNonCollidingInodePassesThrough() {
	st := fakeStat(42)
	ino, _ := FromStat(&st, "/some/path", "/some/other/root")

	assert.Equal(t.T(), fuseops.InodeID(42), ino)
}
