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

package facts

import (
	"sort"

	"github.com/awslabs/argot-sast/internal/graphutil"
)

// Block types with a special role in the CFG
const (
	BlockEntry = "entry"
	BlockExit  = "exit"
)

// Edge types carrying a branch outcome
const (
	EdgeTrue  = "true"
	EdgeFalse = "false"
)

// CFG is the control-flow graph of one function, indexed for the flow-sensitive engine.
type CFG struct {
	Key        FuncKey
	Blocks     map[int]Block
	Order      []int
	Succs      map[int][]Edge
	Preds      map[int][]Edge
	Statements map[int][]Statement
	Entry      int
	// Loops contains the blocks that lie on a cycle
	Loops map[int]bool
}

// BlockAt returns the innermost block whose line range contains line
func (g *CFG) BlockAt(line int) (Block, bool) {
	var best Block
	found := false
	for _, id := range g.Order {
		b := g.Blocks[id]
		if b.StartLine <= line && line <= b.EndLine {
			if !found || b.EndLine-b.StartLine < best.EndLine-best.StartLine {
				best = b
				found = true
			}
		}
	}
	return best, found
}

// Lines returns the inclusive range of lines of the block
func (g *CFG) Lines(id int) (int, int) {
	b := g.Blocks[id]
	return b.StartLine, b.EndLine
}

func (g *CFG) successors(id int) []int {
	var res []int
	for _, e := range g.Succs[id] {
		res = append(res, e.Target)
	}
	return res
}

func (c *Cache) indexCFGs(s *Snapshot) {
	blocks := map[FuncKey]map[int]Block{}
	for _, b := range s.Blocks {
		if b.Function == "" {
			c.stats.Malformed++
			continue
		}
		k := FuncKey{File: b.File, Function: b.Function}
		if blocks[k] == nil {
			blocks[k] = map[int]Block{}
		}
		blocks[k][b.ID] = b
	}
	blockOwner := map[int]FuncKey{}
	for k, bs := range blocks {
		for id := range bs {
			blockOwner[id] = k
		}
	}

	for k, bs := range blocks {
		g := &CFG{
			Key:        k,
			Blocks:     bs,
			Succs:      map[int][]Edge{},
			Preds:      map[int][]Edge{},
			Statements: map[int][]Statement{},
			Entry:      -1,
		}
		for id, b := range bs {
			g.Order = append(g.Order, id)
			if b.Type == BlockEntry && (g.Entry < 0 || id < g.Entry) {
				g.Entry = id
			}
		}
		sort.Ints(g.Order)
		if g.Entry < 0 {
			g.Entry = g.Order[0]
		}
		c.cfgs[k] = g
	}

	for _, e := range s.Edges {
		k := FuncKey{File: e.File, Function: e.Function}
		g, ok := c.cfgs[k]
		if !ok {
			c.stats.Malformed++
			continue
		}
		if _, ok := g.Blocks[e.Source]; !ok {
			c.stats.Malformed++
			continue
		}
		if _, ok := g.Blocks[e.Target]; !ok {
			c.stats.Malformed++
			continue
		}
		g.Succs[e.Source] = append(g.Succs[e.Source], e)
		g.Preds[e.Target] = append(g.Preds[e.Target], e)
	}

	for _, st := range s.Statements {
		k, ok := blockOwner[st.BlockID]
		if !ok {
			c.stats.Malformed++
			continue
		}
		g := c.cfgs[k]
		g.Statements[st.BlockID] = append(g.Statements[st.BlockID], st)
	}

	for k, g := range c.cfgs {
		for id := range g.Succs {
			edges := g.Succs[id]
			sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
		}
		for id := range g.Statements {
			sts := g.Statements[id]
			sort.Slice(sts, func(i, j int) bool { return sts[i].Line < sts[j].Line })
		}
		g.Loops = graphutil.CyclicNodes(g.Order, g.successors)
		c.addFunction(k)
	}
}
