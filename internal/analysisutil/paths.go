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

// Package analysisutil contains utility functions for the analyses in argot.
// These functions are in an internal package because they are not important
// enough to be included in the main library.
package analysisutil

import (
	"path/filepath"
	"strings"
)

var sourceExtensions = []string{".py", ".js", ".jsx", ".ts", ".tsx", ".go"}

// NormalizePaths cleans the file paths and converts Windows separators, so that excluded paths compare equal to the
// paths recorded by the extractors.
func NormalizePaths(paths []string) []string {
	result := make([]string, 0, len(paths))
	for _, s := range paths {
		result = append(result, filepath.ToSlash(filepath.Clean(s)))
	}
	return result
}

func isExcludedOne(filename string, exclude string) bool {
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(exclude, ext) {
			return filename == exclude // full match required
		}
	}
	if strings.HasSuffix(exclude, "/") {
		return strings.HasPrefix(filename, exclude) // prefix match required
	}
	return strings.HasPrefix(filename, exclude+"/") // prefix match plus / required
}

// IsExcluded scans the exclude slices to find out whether the file is excluded
func IsExcluded(filename string, exclude []string) bool {
	f := filepath.ToSlash(filename)
	for _, e := range exclude {
		if isExcludedOne(f, e) {
			return true
		}
	}
	return false
}
