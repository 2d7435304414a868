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

// Package mount builds the fuse.MountConfig used to bring the filesystem up
// and, when requested, re-execs the process in the background the way a
// traditional mount(8) helper does.
package mount

import "strings"

// ParseOptions parses a comma-separated "-o" option string of the form
// "key1=value1,key2,key3=value3" into m, adding or overwriting each key. A
// bare key with no "=" is stored with an empty value, matching how FUSE
// itself treats flag-style mount options.
func ParseOptions(m map[string]string, s string) {
	for _, p := range strings.Split(s, ",") {
		if p == "" {
			continue
		}

		if i := strings.Index(p, "="); i >= 0 {
			m[p[:i]] = p[i+1:]
		} else {
			m[p] = ""
		}
	}
}
