// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package analysisutil

import "testing"

func TestIsExcluded(t *testing.T) {
	exclude := NormalizePaths([]string{"node_modules/", "app/legacy", "app/gen.py"})
	tests := []struct {
		file string
		want bool
	}{
		{"node_modules/lodash/index.js", true},
		{"app/legacy/db.py", true},
		{"app/legacy_v2/db.py", false},
		{"app/gen.py", true},
		{"app/gen.pyc", false},
		{"app/views.py", false},
	}
	for _, test := range tests {
		if got := IsExcluded(test.file, exclude); got != test.want {
			t.Errorf("IsExcluded(%q) = %v, want %v", test.file, got, test.want)
		}
	}
}
