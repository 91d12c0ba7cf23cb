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

package tools

import "regexp"

// Captures errors happening before any analysis starts (fact store could not be read)
var regexCouldNotLoad = regexp.MustCompile("could not load facts")

// Captures the error of a store missing one of the required tables
var missingTable = regexp.MustCompile(`required table "(\w+)" is missing`)

// Captures the kind of error that happen when you put a flag at the end of the command
var trailingFlag = regexp.MustCompile("unexpected argument -(\\w)")

// Captures depth settings above the configured ceiling
var depthAboveCeiling = regexp.MustCompile("max-depth \\d+ is above max-depth-ceiling")

// Captures unknown drivers
var unsupportedDriver = regexp.MustCompile("unsupported store driver")

// Captures a missing store location
var noStore = regexp.MustCompile("no fact store")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if m := missingTable.FindStringSubmatch(errMsg); m != nil {
		return "the fact store has no table " + m[1] + "; re-run the extractors on the repository to rebuild its index"
	}
	if regexCouldNotLoad.MatchString(errMsg) {
		return "make sure the -db argument points to a fact store written by the extractors"
	}
	if trailingFlag.MatchString(errMsg) {
		return "all command line flags should be before the other arguments"
	}
	if depthAboveCeiling.MatchString(errMsg) {
		return "raise max-depth-ceiling in the config (up to 25) to analyze deeper paths"
	}
	if unsupportedDriver.MatchString(errMsg) {
		return "the supported drivers are sqlite and postgres"
	}
	if noStore.MatchString(errMsg) {
		return "run e.g. argot taint -db index.sqlite"
	}
	return ""
}
