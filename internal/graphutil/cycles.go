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

package graphutil

import (
	"sort"

	"github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// FindAllElementaryCycles finds all elementary cycles in the graph FuncGraph, up to maxCycles cycles (no limit if
// maxCycles <= 0).
// This uses Donald B. Johnson's algorithm presented in
// "Finding All The Elementary Circuits of a Directed Graph", 1975
func FindAllElementaryCycles(cg FuncGraph, maxCycles int) [][]int64 {
	s := &state{
		blocked:   map[int64]bool{},
		blist:     map[int64]map[int64]bool{},
		stack:     []int64{},
		cycles:    [][]int64{},
		maxCycles: maxCycles,
	}
	nodeid := 0
	for nodeid < len(cg.Keys) && !s.full() {
		fg := Subgraph(cg, cg.Keys[nodeid:])
		components := graph.StrongComponents(fg)
		// the least vertex of the components that contain a cycle; Johnson's algorithm restarts from it
		least := -1
		for _, component := range components {
			if len(component) < 2 && !cg.Edges[int64(component[0])][int64(component[0])] {
				continue
			}
			sort.Ints(component)
			if component[0] >= nodeid && (least < 0 || component[0] < least) {
				least = component[0]
			}
		}
		if least < 0 {
			return s.cycles
		}
		s.stack = []int64{}
		s.blocked = map[int64]bool{}
		s.blist = map[int64]map[int64]bool{}
		s.circuit(int64(least), int64(least), Subgraph(cg, cg.Keys[least:]))
		nodeid = least + 1
	}
	return s.cycles
}

type state struct {
	blocked   map[int64]bool
	blist     map[int64]map[int64]bool
	stack     []int64
	cycles    [][]int64
	maxCycles int
}

func (s *state) full() bool {
	return s.maxCycles > 0 && len(s.cycles) >= s.maxCycles
}

func (s *state) unblock(u int64) {
	s.blocked[u] = false
	for w := range s.blist[u] {
		delete(s.blist[u], w)
		if s.blocked[w] {
			s.unblock(w)
		}
	}
}

func (s *state) circuit(v int64, i int64, g FuncGraph) bool {
	f := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true
	for _, w := range sortedIDs(g.Edges[v]) {
		if s.full() {
			break
		}
		if w == i {
			stackCopy := make([]int64, len(s.stack))
			copy(stackCopy, s.stack)
			stackCopy = append(stackCopy, w)
			s.cycles = append(s.cycles, stackCopy)
			f = true
		} else if !s.blocked[w] {
			if s.circuit(w, i, g) {
				f = true
			}
		}
	}

	if f {
		s.unblock(v)
	} else {
		for w := range g.Edges[v] {
			m := s.blist[w]
			if m != nil {
				s.blist[w][v] = true
			} else {
				s.blist[w] = map[int64]bool{v: true}
			}
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return f
}

// RecursiveGroups returns the groups of mutually recursive functions of the graph: the strongly connected
// components with more than one function, and the single functions calling themselves directly.
// Each group is sorted, and groups are sorted by their first element.
func RecursiveGroups(cg FuncGraph) [][]FuncKey {
	var groups [][]FuncKey
	for _, component := range topo.TarjanSCC(cg) {
		if len(component) == 1 {
			id := component[0].ID()
			if !cg.Edges[id][id] {
				continue
			}
		}
		ids := make([]int64, len(component))
		for i, n := range component {
			ids[i] = n.ID()
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		group := make([]FuncKey, len(ids))
		for i, id := range ids {
			group[i] = cg.IDMap[id].Key
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0].String() < groups[j][0].String()
	})
	return groups
}

// Statistics returns the yourbasic statistics of the graph (number of edges, self loops, isolated vertices).
func Statistics(cg FuncGraph) graph.Stats {
	return graph.Check(cg)
}
