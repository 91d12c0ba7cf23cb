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

// Package graphutil contains a call graph abstraction over extracted function facts, and graph algorithms over it.
package graphutil

import (
	"sort"

	"gonum.org/v1/gonum/graph"
)

// FuncKey identifies a function by the file it is defined in and its name.
type FuncKey struct {
	File     string
	Function string
}

func (k FuncKey) String() string {
	return k.File + ":" + k.Function
}

// FuncEdge is a directed call edge between two functions.
type FuncEdge struct {
	Caller FuncKey
	Callee FuncKey
}

// FuncGraph is an abstraction over the call edges of the fact store to work with existing graph libraries. It
// implements the methods to satisfy yourbasic's graph.Iterator and Gonum's graph.Directed.
//
// Node ids are dense: they range over 0..Order()-1 and are assigned in the lexicographic order of the function keys,
// so that two graphs built from the same edges have the same ids.
type FuncGraph struct {
	// The order of the graph
	order int

	// IDMap maps from node IDs to FuncNodes
	IDMap map[int64]FuncNode

	// ids maps from function keys to node ids
	ids map[FuncKey]int64

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool

	// reverse is the transposed adjacency matrix
	reverse map[int64]map[int64]bool
}

// NewFuncGraph returns a new graph containing all the functions appearing in edges.
func NewFuncGraph(edges []FuncEdge) FuncGraph {
	keySet := map[FuncKey]bool{}
	for _, e := range edges {
		keySet[e.Caller] = true
		keySet[e.Callee] = true
	}
	sortedKeys := make([]FuncKey, 0, len(keySet))
	for k := range keySet {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Slice(sortedKeys, func(i, j int) bool {
		if sortedKeys[i].File != sortedKeys[j].File {
			return sortedKeys[i].File < sortedKeys[j].File
		}
		return sortedKeys[i].Function < sortedKeys[j].Function
	})

	n := len(sortedKeys)
	g := FuncGraph{
		order:   n,
		IDMap:   make(map[int64]FuncNode, n),
		ids:     make(map[FuncKey]int64, n),
		Keys:    make([]int64, n),
		Edges:   make(map[int64]map[int64]bool, n),
		reverse: make(map[int64]map[int64]bool, n),
	}
	for i, k := range sortedKeys {
		id := int64(i)
		g.IDMap[id] = FuncNode{id: id, Key: k}
		g.ids[k] = id
		g.Keys[i] = id
		g.Edges[id] = map[int64]bool{}
		g.reverse[id] = map[int64]bool{}
	}
	for _, e := range edges {
		from, to := g.ids[e.Caller], g.ids[e.Callee]
		g.Edges[from][to] = true
		g.reverse[to][from] = true
	}
	return g
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and IDMap are the same as in origin, meaning that node indices will stay consistent
// across subgraphs.
func Subgraph(original FuncGraph, include []int64) FuncGraph {
	included := make(map[int64]bool, len(include))
	keys := make([]int64, len(include))
	for j, i := range include {
		keys[j] = i
		included[i] = true
	}

	edges := make(map[int64]map[int64]bool, len(include))
	reverse := make(map[int64]map[int64]bool, len(include))
	for _, i := range include {
		edges[i] = map[int64]bool{}
		if reverse[i] == nil {
			reverse[i] = map[int64]bool{}
		}
		for e := range original.Edges[i] {
			if included[e] {
				edges[i][e] = true
				if reverse[e] == nil {
					reverse[e] = map[int64]bool{}
				}
				reverse[e][i] = true
			}
		}
	}

	return FuncGraph{
		order:   original.Order(),
		IDMap:   original.IDMap,
		ids:     original.ids,
		Edges:   edges,
		reverse: reverse,
		Keys:    keys,
	}
}

// ID returns the node id of the function key, and false if the function is not in the graph.
func (c FuncGraph) ID(k FuncKey) (int64, bool) {
	id, ok := c.ids[k]
	return id, ok
}

// Callers returns the keys of the functions with an edge to k, in id order.
func (c FuncGraph) Callers(k FuncKey) []FuncKey {
	id, ok := c.ids[k]
	if !ok {
		return nil
	}
	return c.keysOf(c.reverse[id])
}

// Callees returns the keys of the functions k has an edge to, in id order.
func (c FuncGraph) Callees(k FuncKey) []FuncKey {
	id, ok := c.ids[k]
	if !ok {
		return nil
	}
	return c.keysOf(c.Edges[id])
}

func (c FuncGraph) keysOf(set map[int64]bool) []FuncKey {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	res := make([]FuncKey, len(ids))
	for i, id := range ids {
		res[i] = c.IDMap[id].Key
	}
	return res
}

// Order implements the order of the graph.Iterator interface for the FuncGraph
func (c FuncGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the FuncGraph
func (c FuncGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for _, w := range sortedIDs(c.Edges[int64(v)]) {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c FuncGraph) Node(id int64) graph.Node {
	n, ok := c.IDMap[id]
	if !ok {
		return nil
	}
	return n
}

// Nodes returns the set of nodes in the graph
func (c FuncGraph) Nodes() graph.Nodes {
	return newNodeSet(c.IDMap, c.Keys)
}

// From returns the set of nodes reachable from the id in one step
func (c FuncGraph) From(id int64) graph.Nodes {
	return newNodeSet(c.IDMap, sortedIDs(c.Edges[id]))
}

// To returns the set of nodes that have an edge to the id
func (c FuncGraph) To(id int64) graph.Nodes {
	return newNodeSet(c.IDMap, sortedIDs(c.reverse[id]))
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c FuncGraph) HasEdgeBetween(xid, yid int64) bool {
	return c.Edges[xid][yid] || c.Edges[yid][xid]
}

// HasEdgeFromTo returns whether there is a directed edge from uid to vid
func (c FuncGraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c FuncGraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return FuncGraphEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
	}
	return nil
}

// *************** Nodes implementation **********************

// FuncNode is a function in the FuncGraph. It implements the graph.Node interface
type FuncNode struct {
	id  int64
	Key FuncKey
}

// ID returns the id of the node
func (n FuncNode) ID() int64 {
	return n.id
}

func (n FuncNode) String() string {
	return n.Key.String()
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the graph
	nodes map[int64]FuncNode

	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: -1 <= cur < len(ids); cur is -1 before the first call to Next
	cur int
}

func newNodeSet(nodes map[int64]FuncNode, ids []int64) *NodeSet {
	return &NodeSet{nodes: nodes, ids: ids, cur: -1}
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes remaining in the iterator
func (ns *NodeSet) Len() int {
	return len(ns.ids) - ns.cur - 1
}

// Reset resets the iterator to its initial state
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// FuncGraphEdge implements the graph.Edge interface
type FuncGraphEdge struct {
	from FuncNode
	to   FuncNode
}

// From returns the origin of the edge
func (e FuncGraphEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e FuncGraphEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e FuncGraphEdge) ReversedEdge() graph.Edge {
	return FuncGraphEdge{from: e.to, to: e.from}
}
