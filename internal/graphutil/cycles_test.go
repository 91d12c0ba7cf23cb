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

package graphutil_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/awslabs/argot-sast/internal/funcutil"
	"github.com/awslabs/argot-sast/internal/graphutil"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/topo"
)

func fk(name string) graphutil.FuncKey {
	return graphutil.FuncKey{File: "app.py", Function: name}
}

func edges(pairs ...string) []graphutil.FuncEdge {
	var res []graphutil.FuncEdge
	for i := 0; i+1 < len(pairs); i += 2 {
		res = append(res, graphutil.FuncEdge{Caller: fk(pairs[i]), Callee: fk(pairs[i+1])})
	}
	return res
}

func cycleNames(g graphutil.FuncGraph, cycles [][]int64) []string {
	results := make([]string, len(cycles))
	for i, cycle := range cycles {
		results[i] = strings.Join(
			funcutil.Map(cycle, func(id int64) string { return g.IDMap[id].Key.Function }),
			"")
	}
	sort.Strings(results)
	return results
}

func TestFindAllElementaryCycles(t *testing.T) {
	g := graphutil.NewFuncGraph(edges(
		"a", "b",
		"b", "c",
		"c", "a",
		"b", "d",
		"d", "b",
		"d", "d",
		"e", "a",
	))
	stats := graphutil.Statistics(g)
	t.Logf("Stats:\n\tsize: %d\n\tmulti: %d\n\tloops: %d\n\tisolated: %d",
		stats.Size, stats.Multi, stats.Loops, stats.Isolated)
	if stats.Loops != 1 {
		t.Errorf("expected one self loop, got %d", stats.Loops)
	}

	cycles := graphutil.FindAllElementaryCycles(g, 0)
	expected := []string{"abca", "bdb", "dd"}
	results := cycleNames(g, cycles)
	if !slices.Equal(results, expected) {
		for i, s := range results {
			t.Logf("Cycle %d: %s", i, s)
		}
		t.Fatalf("Cycles not as expected: %v", results)
	}
}

func TestFindAllElementaryCyclesLimit(t *testing.T) {
	g := graphutil.NewFuncGraph(edges(
		"a", "b", "b", "a",
		"c", "d", "d", "c",
		"e", "e",
	))
	if n := len(graphutil.FindAllElementaryCycles(g, 2)); n != 2 {
		t.Errorf("expected the cycle enumeration to stop at 2 cycles, got %d", n)
	}
}

func TestRecursiveGroups(t *testing.T) {
	g := graphutil.NewFuncGraph(edges(
		"handler", "walk",
		"walk", "visit",
		"visit", "walk",
		"visit", "emit",
		"fact", "fact",
	))
	groups := graphutil.RecursiveGroups(g)
	if len(groups) != 2 {
		t.Fatalf("expected 2 recursive groups, got %v", groups)
	}
	if len(groups[0]) != 1 || groups[0][0].Function != "fact" {
		t.Errorf("expected first group to be the self recursive fact, got %v", groups[0])
	}
	if len(groups[1]) != 2 || groups[1][0].Function != "visit" || groups[1][1].Function != "walk" {
		t.Errorf("expected second group to be visit and walk, got %v", groups[1])
	}
}

func TestFuncGraphIsGonumDirected(t *testing.T) {
	g := graphutil.NewFuncGraph(edges("a", "b", "b", "c"))
	sorted, err := topo.Sort(g)
	if err != nil {
		t.Fatalf("acyclic graph should sort: %v", err)
	}
	if len(sorted) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(sorted))
	}
	callers := g.Callers(fk("b"))
	if len(callers) != 1 || callers[0] != fk("a") {
		t.Errorf("expected a to be the only caller of b, got %v", callers)
	}
	if !g.HasEdgeFromTo(0, 1) || g.HasEdgeFromTo(1, 0) {
		t.Errorf("expected directed edge a->b only")
	}
}
