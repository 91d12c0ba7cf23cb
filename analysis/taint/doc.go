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

/*
Package taint implements the interprocedural taint analysis over the facts extracted from a repository. The main
entry point of the analysis is the [Analyze] function, which returns an [AnalysisResult] containing all the taint
paths discovered and the summary of the run.

The analysis runs up to three tracks over the same read-only fact cache, and reports the union of their paths:

  - the flow-insensitive track starts from every source, scans the function containing it in source order (the
    intraprocedural pass) and then propagates the tainted variables across argument passes and returns with a
    worklist, ignoring branches.
  - the flow-sensitive track follows the control-flow graphs of the functions, recording branch conditions, pruning
    infeasible branches and merging taint at join points. A function without control-flow graph is analyzed with
    the flow-insensitive worklist instead, and the paths going through it are flagged as flow-insensitive.
  - the multi-hop track starts from the sinks and grows paths backward, prepending the callers that pass tainted
    arguments to the function containing the sink.

All worklists deduplicate their states by call-stack signature: a (file, function, variable) state is explored once
per distinct ordered list of caller frames, so that two callers reaching the same helper produce two paths.
*/
package taint
