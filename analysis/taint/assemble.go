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
	"sort"
	"strings"

	"github.com/awslabs/argot-sast/analysis/patterns"
	"github.com/awslabs/argot-sast/internal/funcutil"
)

// finalize computes the derived fields of a raw path
func finalize(p *TaintPath) {
	p.HopCount = HopCount(p.Path)
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	if p.CallStack == nil {
		p.CallStack = []CallFrame{}
	}
	p.PathComplexity = len(p.Conditions)
	p.ConditionSummary = strings.Join(p.Conditions, " AND ")
	p.Severity = patterns.Severity(p.Sink.Category, p.Sanitized, p.sinkExpr)
	p.VulnerabilityType = patterns.VulnerabilityType(p.Sink.Category)
}

func trackRank(track string) int {
	switch track {
	case TrackFlowSensitive:
		return 0
	case TrackIntraprocedural:
		return 1
	case TrackFlowInsensitive:
		return 2
	}
	return 3
}

func stepsKey(steps []Step) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = fmt.Sprintf("%s@%s:%d:%s", s.Type, s.File, s.Line, s.Var)
	}
	return strings.Join(parts, ";")
}

// preferred orders the raw paths sharing an identity: flow-sensitive first, then fewer hops, then by track and steps.
func preferred(a, b *TaintPath) bool {
	if a.FlowSensitive != b.FlowSensitive {
		return a.FlowSensitive
	}
	if a.HopCount != b.HopCount {
		return a.HopCount < b.HopCount
	}
	if trackRank(a.Track) != trackRank(b.Track) {
		return trackRank(a.Track) < trackRank(b.Track)
	}
	return stepsKey(a.Path) < stepsKey(b.Path)
}

// Assemble deduplicates the raw paths produced by all the tracks and returns the final paths in a deterministic
// order. Paths with the same source, sink and call stack signature are merged, keeping the flow-sensitive one and
// the union of the conditions. Paths that only differ by their source, in the same function, are reported once with
// the other sources as related sources. The result does not depend on the order of raw.
func Assemble(raw []*TaintPath) []*TaintPath {
	for _, p := range raw {
		finalize(p)
	}
	sorted := append([]*TaintPath{}, raw...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ID() != sorted[j].ID() {
			return sorted[i].ID() < sorted[j].ID()
		}
		return preferred(sorted[i], sorted[j])
	})

	byID := map[string]*TaintPath{}
	var unique []*TaintPath
	for _, p := range sorted {
		kept, ok := byID[p.ID()]
		if !ok {
			byID[p.ID()] = p
			unique = append(unique, p)
			continue
		}
		for _, c := range p.Conditions {
			if !funcutil.Contains(kept.Conditions, c) {
				kept.Conditions = append(kept.Conditions, c)
			}
		}
		kept.Sanitized = kept.Sanitized || p.Sanitized
	}
	for _, p := range unique {
		sort.Strings(p.Conditions)
		finalize(p)
	}

	// related sources: same sink, same stack and same path shape after the source, in the same source function
	groups := map[string][]*TaintPath{}
	var order []string
	for _, p := range unique {
		k := fmt.Sprintf("%s:%d|%s|%s:%s|%s", p.Sink.File, p.Sink.Line, Signature(p.CallStack), p.Source.File,
			p.Source.Function, stepsKey(p.Path[1:]))
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}
	var paths []*TaintPath
	for _, k := range order {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Source.Line != group[j].Source.Line {
				return group[i].Source.Line < group[j].Source.Line
			}
			return group[i].Source.Pattern < group[j].Source.Pattern
		})
		primary := group[0]
		for _, other := range group[1:] {
			primary.RelatedSources = append(primary.RelatedSources, other.Source)
		}
		paths = append(paths, primary)
	}

	sort.SliceStable(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Sink.File != b.Sink.File {
			return a.Sink.File < b.Sink.File
		}
		if a.Sink.Line != b.Sink.Line {
			return a.Sink.Line < b.Sink.Line
		}
		if a.Source.File != b.Source.File {
			return a.Source.File < b.Source.File
		}
		if a.Source.Line != b.Source.Line {
			return a.Source.Line < b.Source.Line
		}
		return Signature(a.CallStack) < Signature(b.CallStack)
	})
	return paths
}
