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

// Package registry owns the bidirectional mapping between kernel-facing
// inode numbers and host-side paths and file descriptors, together with the
// lookup-count and fd-open-count bookkeeping the FUSE lookup/forget protocol
// requires.
package registry

import (
	"fmt"
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// Root is the reserved inode ID for the source tree's root directory.
const Root = fuseops.RootInodeID

// ForgetEntry pairs an inode with the number of lookup references the
// kernel is relinquishing for it.
type ForgetEntry struct {
	Inode fuseops.InodeID
	N     uint64
}

type fdEntry struct {
	fd        int
	openCount uint64
}

// Registry is the inode/path/fd table shared by every operation handler.
// Its invariants are checked on every Lock and Unlock of an InvariantMutex
// once invariant checking is enabled (--debug_invariants); in the single-threaded dispatch model this never blocks in
// steady state, but it still catches accidental concurrent misuse.
type Registry struct {
	mu syncutil.InvariantMutex

	sourceRoot string

	// GUARDED_BY(mu)
	inodePaths map[fuseops.InodeID]map[string]struct{}
	// GUARDED_BY(mu)
	lookupCount map[fuseops.InodeID]uint64
	// GUARDED_BY(mu)
	inodeFD map[fuseops.InodeID]*fdEntry
	// GUARDED_BY(mu)
	fdInode map[int]fuseops.InodeID
}

// New creates a registry rooted at sourceRoot, with inode Root pre-bound to
// it and a lookup count of one (matching the kernel's implicit reference to
// the mount's root directory).
func New(sourceRoot string) *Registry {
	r := &Registry{
		sourceRoot:  sourceRoot,
		inodePaths:  map[fuseops.InodeID]map[string]struct{}{Root: {sourceRoot: {}}},
		lookupCount: map[fuseops.InodeID]uint64{Root: 1},
		inodeFD:     map[fuseops.InodeID]*fdEntry{},
		fdInode:     map[int]fuseops.InodeID{},
	}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	return r
}

func (r *Registry) checkInvariants() {
	if r.inodePaths == nil || r.lookupCount == nil || r.inodeFD == nil || r.fdInode == nil {
		panic("registry: nil map in invariant check")
	}
	for i, paths := range r.inodePaths {
		if len(paths) == 0 {
			panic(fmt.Sprintf("registry: inode %d has an empty path set", i))
		}
	}
	for fd, i := range r.fdInode {
		entry, ok := r.inodeFD[i]
		if !ok || entry.fd != fd {
			panic(fmt.Sprintf("registry: fd %d points to inode %d with no matching inodeFD entry", fd, i))
		}
	}
}

// pruneLocked removes any path from the inode's set that no longer exists on
// the host, mirroring the original implementation's opportunistic cleanup.
func (r *Registry) pruneLocked(i fuseops.InodeID) {
	paths, ok := r.inodePaths[i]
	if !ok {
		return
	}
	for p := range paths {
		if _, err := os.Lstat(p); err != nil {
			delete(paths, p)
		}
	}
	if len(paths) == 0 {
		delete(r.inodePaths, i)
	}
}

// InodeToPath returns any currently valid path for i, pruning stale entries
// first.
func (r *Registry) InodeToPath(i fuseops.InodeID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(i)
	paths, ok := r.inodePaths[i]
	if !ok || len(paths) == 0 {
		return "", syscall.ENOENT
	}
	for p := range paths {
		return p, nil
	}
	return "", syscall.ENOENT
}

// RememberPath registers p as a path for i and increments its lookup count.
// It is a silent no-op for the Root inode, which is never remembered via
// lookup.
func (r *Registry) RememberPath(i fuseops.InodeID, p string) {
	if i == Root {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(i)
	paths, ok := r.inodePaths[i]
	if !ok {
		paths = map[string]struct{}{}
		r.inodePaths[i] = paths
	}
	paths[p] = struct{}{}
	r.lookupCount[i]++
}

// ForgetPath removes p from i's path set, without touching the lookup count.
func (r *Registry) ForgetPath(i fuseops.InodeID, p string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths, ok := r.inodePaths[i]
	if !ok {
		return
	}
	delete(paths, p)
	if len(paths) == 0 {
		delete(r.inodePaths, i)
	}
}

// Forget decrements the lookup count of each entry by its N, dropping the
// inode's bookkeeping once the count reaches zero. It panics if an inode
// would be dropped while it still has an open fd — a logic-invariant
// violation, fatal per the error-handling design.
func (r *Registry) Forget(entries []ForgetEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		if e.Inode == Root {
			continue
		}
		count := r.lookupCount[e.Inode]
		if e.N >= count {
			count = 0
		} else {
			count -= e.N
		}

		if count > 0 {
			r.lookupCount[e.Inode] = count
			continue
		}

		if _, hasFD := r.inodeFD[e.Inode]; hasFD {
			panic(fmt.Sprintf("registry: forgetting inode %d with an open fd", e.Inode))
		}
		delete(r.lookupCount, e.Inode)
		delete(r.inodePaths, e.Inode)
	}
}

// OpenFD returns the shared fd for i, opening it on the host with flags if
// none exists yet, and increments its open count.
func (r *Registry) OpenFD(i fuseops.InodeID, path string, flags int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.inodeFD[i]; ok {
		entry.openCount++
		return entry.fd, nil
	}

	fd, err := syscall.Open(path, flags, 0)
	if err != nil {
		return 0, err
	}

	r.inodeFD[i] = &fdEntry{fd: fd, openCount: 1}
	r.fdInode[fd] = i
	return fd, nil
}

// ReleaseFD decrements fd's open count, closing it on the host and removing
// its bookkeeping once the count reaches zero.
func (r *Registry) ReleaseFD(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.fdInode[fd]
	if !ok {
		return nil
	}
	entry := r.inodeFD[i]
	entry.openCount--
	if entry.openCount > 0 {
		return nil
	}

	delete(r.inodeFD, i)
	delete(r.fdInode, fd)
	return syscall.Close(fd)
}

// InstallFD records an fd that has already been opened on the host (e.g. by
// CreateFile, which must call open(2) itself to pass O_CREAT/O_TRUNC) as the
// shared fd for i, with an open count of one.
func (r *Registry) InstallFD(i fuseops.InodeID, fd int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inodeFD[i] = &fdEntry{fd: fd, openCount: 1}
	r.fdInode[fd] = i
}

// PathOf is a non-error peek at any currently remembered path for i.
func (r *Registry) PathOf(i fuseops.InodeID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(i)
	paths, ok := r.inodePaths[i]
	if !ok || len(paths) == 0 {
		return "", false
	}
	for p := range paths {
		return p, true
	}
	return "", false
}

// FDOf is a non-error peek at the shared fd currently open for i.
func (r *Registry) FDOf(i fuseops.InodeID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.inodeFD[i]
	if !ok {
		return 0, false
	}
	return entry.fd, true
}

// SwapPath implements rename's inode bookkeeping: if newInode is tracked,
// oldPath is removed from its set and newPath is added, without touching
// the lookup count (mirroring the original's explicit "keep the same
// lookup count" comment).
func (r *Registry) SwapPath(newInode fuseops.InodeID, oldPath, newPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths, ok := r.inodePaths[newInode]
	if !ok {
		return
	}
	delete(paths, oldPath)
	paths[newPath] = struct{}{}
}

// SourceRoot returns the host path this registry is rooted at.
func (r *Registry) SourceRoot() string {
	return r.sourceRoot
}
