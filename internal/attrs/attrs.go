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

// Package attrs marshals host stat results into fuseops.InodeAttributes,
// including the synthetic-inode fabrication needed when the host inode
// collides with the reserved root inode number.
package attrs

import (
	"math/rand"
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"golang.org/x/sys/unix"
)

// SyntheticRangeLow and SyntheticRangeHigh bound the inode values fabricated
// when a host inode of 1 is observed for a non-root path.
const (
	SyntheticRangeLow  = 2000000
	SyntheticRangeHigh = 3000000
)

// FromStat converts a raw unix.Stat_t into fuseops.InodeAttributes. path is
// used only to decide whether the synthetic-inode rule applies; sourceRoot is
// unused by the rule itself (kept for call-site symmetry with Lstat/Fstat)
// but reserved for future device-scoped decisions.
func FromStat(st *unix.Stat_t, path, sourceRoot string) (fuseops.InodeID, fuseops.InodeAttributes) {
	// fuseops.InodeAttributes carries no Rdev and no BlockSize/Blocks fields,
	// so the host's device number and block accounting cannot be passed
	// through this op; see DESIGN.md for this transport-contract gap,
	// alongside StatFS's f_namemax.
	attrs := fuseops.InodeAttributes{
		Size:   uint64(st.Size),
		Nlink:  uint64(st.Nlink),
		Mode:   os.FileMode(st.Mode & 0777),
		Uid:    st.Uid,
		Gid:    st.Gid,
		Atime:  timespecToTime(st.Atim),
		Mtime:  timespecToTime(st.Mtim),
		Ctime:  timespecToTime(st.Ctim),
		Crtime: timespecToTime(st.Ctim),
	}
	attrs.Mode |= modeTypeBits(st.Mode)

	ino := fuseops.InodeID(st.Ino)
	if st.Ino == 1 && path != "/" {
		ino = fuseops.InodeID(SyntheticRangeLow + rand.Intn(SyntheticRangeHigh-SyntheticRangeLow))
	}
	return ino, attrs
}

// Lstat stats path without following a trailing symlink and marshals the
// result.
func Lstat(path, sourceRoot string) (fuseops.InodeID, fuseops.InodeAttributes, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, fuseops.InodeAttributes{}, err
	}
	ino, attrs := FromStat(&st, path, sourceRoot)
	return ino, attrs, nil
}

// Fstat stats an already-open fd and marshals the result. path is the fd's
// remembered path, used only for the synthetic-inode decision.
func Fstat(fd int, path, sourceRoot string) (fuseops.InodeID, fuseops.InodeAttributes, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fuseops.InodeAttributes{}, err
	}
	ino, attrs := FromStat(&st, path, sourceRoot)
	return ino, attrs, nil
}

func modeTypeBits(m uint32) os.FileMode {
	switch m & unix.S_IFMT {
	case unix.S_IFDIR:
		return os.ModeDir
	case unix.S_IFLNK:
		return os.ModeSymlink
	case unix.S_IFIFO:
		return os.ModeNamedPipe
	case unix.S_IFSOCK:
		return os.ModeSocket
	case unix.S_IFBLK:
		return os.ModeDevice
	case unix.S_IFCHR:
		return os.ModeDevice | os.ModeCharDevice
	default:
		return 0
	}
}

func timespecToTime(ts unix.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}
