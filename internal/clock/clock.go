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

// Package clock re-exports jacobsa/timeutil's Clock abstraction under this
// module's import path, so callers depend on internal/clock rather than
// reaching into the vendor package directly.
package clock

import "github.com/jacobsa/timeutil"

// Clock knows the current time, and can be faked out for tests.
type Clock = timeutil.Clock

// RealClock returns a Clock that uses the real system clock.
func RealClock() Clock {
	return timeutil.RealClock()
}
