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

// Package accesslog tracks the set of source paths opened by the
// filesystem under each open mode, and exports open counts as Prometheus
// counters. A path opened under several modes is recorded under each of
// them, so the sets are not disjoint.
package accesslog

import (
	"os"
	"sync"

	"github.com/mirrorfuse/mirrorfuse/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// Class identifies the open-mode bucket a path falls into.
type Class int

const (
	ReadOnly Class = iota
	WriteOnly
	ReadWrite
)

func (c Class) String() string {
	switch c {
	case ReadOnly:
		return "read"
	case WriteOnly:
		return "write"
	case ReadWrite:
		return "readwrite"
	default:
		return "unknown"
	}
}

// ClassForFlags derives the open-mode class from the flags passed to open(2),
// checking O_RDWR before O_WRONLY so that O_RDWR|O_WRONLY (nonsensical but
// not rejected by open(2)) classifies as read-write, matching the original's
// bit-priority test rather than a masked switch on O_ACCMODE.
func ClassForFlags(flags int) Class {
	switch {
	case flags&os.O_RDWR != 0:
		return ReadWrite
	case flags&os.O_WRONLY != 0:
		return WriteOnly
	default:
		return ReadOnly
	}
}

// Recorder tracks, for the lifetime of the process, the set of source paths
// ever opened in each mode. A path's membership is monotonic: once recorded
// under a class it is never removed, and a path later opened under a
// different class is recorded under both.
type Recorder struct {
	mu sync.Mutex

	readOnly  map[string]struct{}
	writeOnly map[string]struct{}
	readWrite map[string]struct{}

	opens *prometheus.CounterVec
}

// New constructs a Recorder and, if reg is non-nil, registers its counters.
func New(reg *prometheus.Registry) (*Recorder, error) {
	opens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorfuse_opens_total",
		Help: "Count of file opens observed, by access class.",
	}, []string{"class"})

	if reg != nil {
		if err := reg.Register(opens); err != nil {
			return nil, err
		}
	}

	return &Recorder{
		readOnly:  make(map[string]struct{}),
		writeOnly: make(map[string]struct{}),
		readWrite: make(map[string]struct{}),
		opens:     opens,
	}, nil
}

// RecordOpen registers path as having been opened under class.
func (r *Recorder) RecordOpen(path string, class Class) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch class {
	case WriteOnly:
		r.writeOnly[path] = struct{}{}
	case ReadWrite:
		r.readWrite[path] = struct{}{}
	default:
		r.readOnly[path] = struct{}{}
	}

	r.opens.WithLabelValues(class.String()).Inc()
}

// Snapshot is a point-in-time copy of the recorded path sets, safe to log
// or inspect without holding the Recorder's lock.
type Snapshot struct {
	ReadOnly  []string
	WriteOnly []string
	ReadWrite []string
}

// Snapshot returns the current contents of the three access-class sets.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		ReadOnly:  keys(r.readOnly),
		WriteOnly: keys(r.writeOnly),
		ReadWrite: keys(r.readWrite),
	}
}

// LogSummary writes one SUMMARY line to the access log with the number of
// paths recorded under each class. Intended to be called at shutdown.
func (r *Recorder) LogSummary() {
	snap := r.Snapshot()
	logger.Accessf("SUMMARY read=%d write=%d readwrite=%d", len(snap.ReadOnly), len(snap.WriteOnly), len(snap.ReadWrite))
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
