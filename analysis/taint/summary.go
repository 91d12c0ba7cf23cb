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

package taint

import (
	"fmt"
	"strings"
)

// Summary is the run-level summary of an analysis
type Summary struct {
	SourcesFound            int            `json:"sources_found"`
	SinksFound              int            `json:"sinks_found"`
	PathsFound              int            `json:"paths_found"`
	TotalVulnerabilities    int            `json:"total_vulnerabilities"`
	VulnerabilitiesByType   map[string]int `json:"vulnerabilities_by_type"`
	HopDistribution         map[int]int    `json:"hop_distribution"`
	DepthLimitReached       bool           `json:"depth_limit_reached"`
	BudgetLimitReached      bool           `json:"budget_limit_reached"`
	LimitReachedMessage     string         `json:"limit_reached_message,omitempty"`
	RecursiveFunctionGroups [][]string     `json:"recursive_function_groups"`
	SeedsProcessed          int            `json:"seeds_processed"`
	NodesExpanded           int            `json:"nodes_expanded"`
	SignatureCapHits        int            `json:"signature_cap_hits"`
	CFGFallbacks            int            `json:"cfg_fallbacks"`
	LoopBlocksVisited       int            `json:"loop_blocks_visited"`
	RecursionGuardHits      int            `json:"recursion_guard_hits"`
	PathsTruncated          int            `json:"paths_truncated,omitempty"`
	DurationSeconds         float64        `json:"duration_seconds"`
}

func newSummary() Summary {
	return Summary{
		VulnerabilitiesByType:   map[string]int{},
		HopDistribution:         map[int]int{},
		RecursiveFunctionGroups: [][]string{},
	}
}

func (s *Summary) addSeed(r seedResult) {
	s.SeedsProcessed++
	s.NodesExpanded += r.nodes
	s.SignatureCapHits += r.capHits
	s.CFGFallbacks += r.cfgFallbacks
	s.LoopBlocksVisited += r.loopBlocks
	s.RecursionGuardHits += r.recursionGuard
	s.DepthLimitReached = s.DepthLimitReached || r.depthLimit
	s.BudgetLimitReached = s.BudgetLimitReached || r.budgetLimit
}

func (s *Summary) addPaths(paths []*TaintPath) {
	s.PathsFound = len(paths)
	s.TotalVulnerabilities = len(paths)
	for _, p := range paths {
		s.VulnerabilitiesByType[p.VulnerabilityType]++
		s.HopDistribution[p.HopCount]++
	}
}

// setLimitMessage sets the message telling the user which limits truncated the results
func (s *Summary) setLimitMessage(maxDepth int) {
	var msgs []string
	if s.DepthLimitReached {
		msgs = append(msgs, fmt.Sprintf("some paths were not explored beyond the maximum depth of %d hops", maxDepth))
	}
	if s.BudgetLimitReached {
		msgs = append(msgs, "the exploration of some seeds was stopped by the node budget or the timeout")
	}
	if s.PathsTruncated > 0 {
		msgs = append(msgs, fmt.Sprintf("%d paths were dropped above the maximum number of paths", s.PathsTruncated))
	}
	s.LimitReachedMessage = strings.Join(msgs, "; ")
}

func (s Summary) String() string {
	return fmt.Sprintf("%d sources, %d sinks, %d paths (%d states expanded from %d seeds)",
		s.SourcesFound, s.SinksFound, s.PathsFound, s.NodesExpanded, s.SeedsProcessed)
}
