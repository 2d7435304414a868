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

package accesslog_test

import (
	"os"
	"testing"

	"github.com/mirrorfuse/mirrorfuse/internal/accesslog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type AccessLogTest struct {
	suite.Suite
}

func TestAccessLogTestSuite(t *testing.T) {
	suite.Run(t, new(AccessLogTest))
}

func (t *AccessLogTest) TestClassForFlags() {
	t.Equal(accesslog.ReadOnly, accesslog.ClassForFlags(os.O_RDONLY))
	t.Equal(accesslog.WriteOnly, accesslog.ClassForFlags(os.O_WRONLY))
	t.Equal(accesslog.ReadWrite, accesslog.ClassForFlags(os.O_RDWR))
	t.Equal(accesslog.WriteOnly, accesslog.ClassForFlags(os.O_WRONLY|os.O_CREAT|os.O_TRUNC))
}

func (t *AccessLogTest) TestRecordOpenPartitionsByClass() {
	rec, err := accesslog.New(prometheus.NewRegistry())
	t.Require().NoError(err)

	rec.RecordOpen("/a", accesslog.ReadOnly)
	rec.RecordOpen("/b", accesslog.WriteOnly)
	rec.RecordOpen("/c", accesslog.ReadWrite)

	snap := rec.Snapshot()
	t.ElementsMatch([]string{"/a"}, snap.ReadOnly)
	t.ElementsMatch([]string{"/b"}, snap.WriteOnly)
	t.ElementsMatch([]string{"/c"}, snap.ReadWrite)
}

func (t *AccessLogTest) TestMembershipIsMonotonicAcrossClasses() {
	rec, err := accesslog.New(prometheus.NewRegistry())
	t.Require().NoError(err)

	rec.RecordOpen("/a", accesslog.ReadOnly)
	rec.RecordOpen("/a", accesslog.WriteOnly)

	snap := rec.Snapshot()
	t.ElementsMatch([]string{"/a"}, snap.ReadOnly)
	t.ElementsMatch([]string{"/a"}, snap.WriteOnly)
}

func (t *AccessLogTest) TestNewWithNilRegistrySkipsRegistration() {
	rec, err := accesslog.New(nil)
	t.Require().NoError(err)
	t.NotNil(rec)

	rec.RecordOpen("/a", accesslog.ReadOnly)
	snap := rec.Snapshot()
	t.ElementsMatch([]string{"/a"}, snap.ReadOnly)
}

func (t *AccessLogTest) TestDuplicateRegistrationFails() {
	reg := prometheus.NewRegistry()
	_, err := accesslog.New(reg)
	t.Require().NoError(err)

	_, err = accesslog.New(reg)
	t.Error(err)
}
