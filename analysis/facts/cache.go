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
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/argot-sast/internal/funcutil"
	"github.com/awslabs/argot-sast/internal/graphutil"
)

// ModuleScope is the function name used for assignments and calls that are not inside any function.
const ModuleScope = "<module>"

// Call is a call site: the argument rows sharing (File, Line, Callee), ordered by argument index.
type Call struct {
	File       string
	Line       int
	Caller     string
	Callee     string
	CalleeFile string
	Args       []CallArg
}

// CallerKey returns the key of the function containing the call
func (c *Call) CallerKey() FuncKey {
	return FuncKey{File: c.File, Function: c.Caller}
}

func (c *Call) String() string {
	return fmt.Sprintf("%s:%d %s -> %s", c.File, c.Line, c.Caller, c.Callee)
}

type lineKey struct {
	file string
	line int
}

type assignKey struct {
	file   string
	line   int
	target string
}

type callKey struct {
	file   string
	line   int
	callee string
}

type funcRange struct {
	key   FuncKey
	start int
	end   int
}

// Stats contains the number of indexed facts of each kind, and the number of rows that were skipped as malformed.
type Stats struct {
	Functions   int
	Assignments int
	Calls       int
	Params      int
	Returns     int
	CFGs        int
	Malformed   int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d functions, %d assignments, %d calls, %d parameters, %d returns, %d cfgs (%d malformed rows)",
		s.Functions, s.Assignments, s.Calls, s.Params, s.Returns, s.CFGs, s.Malformed)
}

// Cache is the read-only indexed view of a fact Snapshot used by the taint engines. It is built once per analysis
// run, never mutated afterwards and safe to share between goroutines without synchronization.
type Cache struct {
	symbolsByFile map[string][]Symbol

	assignsByFunc   map[FuncKey][]Assignment
	assignsByTarget map[FuncKey]map[string][]Assignment
	assignsAt       map[lineKey][]Assignment
	assignSources   map[assignKey][]string

	callsByFunc   map[FuncKey][]*Call
	callsByCallee map[string][]*Call
	callsTo       map[FuncKey][]*Call
	callsAt       map[lineKey][]*Call
	resolved      map[*Call]FuncKey
	ambiguous     []*Call

	params       map[FuncKey][]Param
	paramsByName map[string][]Param

	returnsByFunc map[FuncKey][]Return
	returnSources map[lineKey][]string

	cfgs map[FuncKey]*CFG

	functions     map[FuncKey]bool
	funcsByFile   map[string][]string
	funcRanges    map[string][]funcRange
	falsyOnlyVars map[FuncKey]map[string]bool

	stats Stats
}

// NewCache indexes the snapshot. Malformed rows are skipped and counted in the stats of the cache.
func NewCache(s *Snapshot) *Cache {
	c := &Cache{
		symbolsByFile:   map[string][]Symbol{},
		assignsByFunc:   map[FuncKey][]Assignment{},
		assignsByTarget: map[FuncKey]map[string][]Assignment{},
		assignsAt:       map[lineKey][]Assignment{},
		assignSources:   map[assignKey][]string{},
		callsByFunc:     map[FuncKey][]*Call{},
		callsByCallee:   map[string][]*Call{},
		callsTo:         map[FuncKey][]*Call{},
		callsAt:         map[lineKey][]*Call{},
		resolved:        map[*Call]FuncKey{},
		params:          map[FuncKey][]Param{},
		paramsByName:    map[string][]Param{},
		returnsByFunc:   map[FuncKey][]Return{},
		returnSources:   map[lineKey][]string{},
		cfgs:            map[FuncKey]*CFG{},
		functions:       map[FuncKey]bool{},
		funcsByFile:     map[string][]string{},
		funcRanges:      map[string][]funcRange{},
		falsyOnlyVars:   map[FuncKey]map[string]bool{},
	}

	for _, sym := range s.Symbols {
		c.symbolsByFile[sym.File] = append(c.symbolsByFile[sym.File], sym)
		if sym.Kind == SymbolFunction && sym.Name != "" {
			c.addFunction(FuncKey{File: sym.File, Function: sym.Name})
			end := sym.EndLine
			if end < sym.Line {
				end = sym.Line
			}
			c.funcRanges[sym.File] = append(c.funcRanges[sym.File],
				funcRange{key: FuncKey{File: sym.File, Function: sym.Name}, start: sym.Line, end: end})
		}
	}

	c.indexAssignments(s)
	c.indexCalls(s)
	c.indexParams(s)
	c.indexReturns(s)
	c.indexCFGs(s)

	for file := range c.funcsByFile {
		sort.Strings(c.funcsByFile[file])
	}
	for file := range c.funcRanges {
		ranges := c.funcRanges[file]
		// innermost ranges first
		sort.Slice(ranges, func(i, j int) bool {
			return ranges[i].end-ranges[i].start < ranges[j].end-ranges[j].start
		})
	}

	// resolution needs the set of known functions, which is complete only now
	for _, calls := range c.callsByFunc {
		for _, call := range calls {
			if target, ok := c.resolveCallee(call); ok {
				c.resolved[call] = target
				c.callsTo[target] = append(c.callsTo[target], call)
			}
		}
	}
	for key := range c.callsTo {
		sortCalls(c.callsTo[key])
	}
	sortCalls(c.ambiguous)

	c.stats.Functions = len(c.functions)
	c.stats.CFGs = len(c.cfgs)
	return c
}

func (c *Cache) addFunction(k FuncKey) {
	if k.Function == "" || c.functions[k] {
		return
	}
	c.functions[k] = true
	c.funcsByFile[k.File] = append(c.funcsByFile[k.File], k.Function)
}

func (c *Cache) indexAssignments(s *Snapshot) {
	for _, a := range s.Assignments {
		if IsBlankTarget(a.TargetVar) || a.File == "" {
			c.stats.Malformed++
			continue
		}
		if a.InFunction == "" {
			a.InFunction = ModuleScope
		}
		k := FuncKey{File: a.File, Function: a.InFunction}
		c.addFunction(k)
		c.assignsByFunc[k] = append(c.assignsByFunc[k], a)
		if c.assignsByTarget[k] == nil {
			c.assignsByTarget[k] = map[string][]Assignment{}
		}
		c.assignsByTarget[k][a.TargetVar] = append(c.assignsByTarget[k][a.TargetVar], a)
		lk := lineKey{a.File, a.Line}
		c.assignsAt[lk] = append(c.assignsAt[lk], a)
		c.stats.Assignments++
	}
	for k := range c.assignsByFunc {
		assigns := c.assignsByFunc[k]
		sort.SliceStable(assigns, func(i, j int) bool { return assigns[i].Line < assigns[j].Line })
	}
	for _, src := range s.AssignmentSources {
		if src.SourceVar == "" {
			c.stats.Malformed++
			continue
		}
		ak := assignKey{src.File, src.Line, src.TargetVar}
		c.assignSources[ak] = append(c.assignSources[ak], src.SourceVar)
	}
	// variables only ever assigned falsy literals, used to decide branch feasibility
	for k, byTarget := range c.assignsByTarget {
		for target, assigns := range byTarget {
			if funcutil.Exists(assigns, func(a Assignment) bool { return !IsFalsyLiteral(a.SourceExpr) }) {
				continue
			}
			if c.falsyOnlyVars[k] == nil {
				c.falsyOnlyVars[k] = map[string]bool{}
			}
			c.falsyOnlyVars[k][target] = true
		}
	}
}

func (c *Cache) indexCalls(s *Snapshot) {
	byKey := map[callKey]*Call{}
	seenArgs := map[callKey]map[int]bool{}
	for _, arg := range s.CallArgs {
		if arg.File == "" || arg.CalleeFunction == "" || arg.ArgIndex < 0 {
			c.stats.Malformed++
			continue
		}
		if arg.CallerFunction == "" {
			arg.CallerFunction = ModuleScope
		}
		ck := callKey{arg.File, arg.Line, arg.CalleeFunction}
		if seenArgs[ck] == nil {
			seenArgs[ck] = map[int]bool{}
		}
		if seenArgs[ck][arg.ArgIndex] {
			// (file, line, callee, index) must be unique
			c.stats.Malformed++
			continue
		}
		seenArgs[ck][arg.ArgIndex] = true
		call, ok := byKey[ck]
		if !ok {
			call = &Call{
				File:   arg.File,
				Line:   arg.Line,
				Caller: arg.CallerFunction,
				Callee: arg.CalleeFunction,
			}
			byKey[ck] = call
			caller := call.CallerKey()
			c.addFunction(caller)
			c.callsByFunc[caller] = append(c.callsByFunc[caller], call)
			c.callsByCallee[call.Callee] = append(c.callsByCallee[call.Callee], call)
			lk := lineKey{call.File, call.Line}
			c.callsAt[lk] = append(c.callsAt[lk], call)
			c.stats.Calls++
		}
		if call.CalleeFile == "" && arg.CalleeFile != "" {
			call.CalleeFile = arg.CalleeFile
		}
		call.Args = append(call.Args, arg)
	}
	for _, call := range byKey {
		sort.Slice(call.Args, func(i, j int) bool { return call.Args[i].ArgIndex < call.Args[j].ArgIndex })
	}
	for k := range c.callsByFunc {
		sortCalls(c.callsByFunc[k])
	}
	for k := range c.callsByCallee {
		sortCalls(c.callsByCallee[k])
	}
	for k := range c.callsAt {
		sortCalls(c.callsAt[k])
	}
}

func sortCalls(calls []*Call) {
	sort.Slice(calls, func(i, j int) bool {
		if calls[i].File != calls[j].File {
			return calls[i].File < calls[j].File
		}
		if calls[i].Line != calls[j].Line {
			return calls[i].Line < calls[j].Line
		}
		return calls[i].Callee < calls[j].Callee
	})
}

func (c *Cache) indexParams(s *Snapshot) {
	seen := map[FuncKey]map[int]bool{}
	for _, p := range s.Params {
		if p.Function == "" || p.Name == "" || p.Index < 0 {
			c.stats.Malformed++
			continue
		}
		k := FuncKey{File: p.File, Function: p.Function}
		if seen[k] == nil {
			seen[k] = map[int]bool{}
		}
		if seen[k][p.Index] {
			c.stats.Malformed++
			continue
		}
		seen[k][p.Index] = true
		c.addFunction(k)
		c.params[k] = append(c.params[k], p)
		c.paramsByName[p.Function] = append(c.paramsByName[p.Function], p)
		c.stats.Params++
	}
	for k := range c.params {
		ps := c.params[k]
		sort.Slice(ps, func(i, j int) bool { return ps[i].Index < ps[j].Index })
	}
}

func (c *Cache) indexReturns(s *Snapshot) {
	for _, r := range s.Returns {
		if r.Function == "" {
			c.stats.Malformed++
			continue
		}
		k := FuncKey{File: r.File, Function: r.Function}
		c.addFunction(k)
		c.returnsByFunc[k] = append(c.returnsByFunc[k], r)
		c.stats.Returns++
	}
	for k := range c.returnsByFunc {
		rs := c.returnsByFunc[k]
		sort.Slice(rs, func(i, j int) bool { return rs[i].Line < rs[j].Line })
	}
	for _, rs := range s.ReturnSources {
		if rs.ReturnVar == "" {
			c.stats.Malformed++
			continue
		}
		lk := lineKey{rs.File, rs.Line}
		c.returnSources[lk] = append(c.returnSources[lk], rs.ReturnVar)
	}
}

// Stats returns the statistics of the cache
func (c *Cache) Stats() Stats {
	return c.stats
}

// Functions returns the keys of all the functions known to the cache, sorted by file and name.
func (c *Cache) Functions() []FuncKey {
	var keys []FuncKey
	for _, file := range funcutil.SortedKeys(c.funcsByFile) {
		for _, f := range c.funcsByFile[file] {
			keys = append(keys, FuncKey{File: file, Function: f})
		}
	}
	return keys
}

// HasFunction returns true if the function is known to the cache
func (c *Cache) HasFunction(k FuncKey) bool {
	return c.functions[k]
}

// Symbols returns the symbols of the file, in store order
func (c *Cache) Symbols(file string) []Symbol {
	return c.symbolsByFile[file]
}

// Files returns the files that contain symbols or functions, sorted
func (c *Cache) Files() []string {
	files := map[string]bool{}
	for f := range c.symbolsByFile {
		files[f] = true
	}
	for f := range c.funcsByFile {
		files[f] = true
	}
	return funcutil.SetToOrderedSlice(files)
}

// Assignments returns the assignments in the function, ordered by line
func (c *Cache) Assignments(k FuncKey) []Assignment {
	return c.assignsByFunc[k]
}

// AssignmentsTo returns the assignments of the variable target in the function
func (c *Cache) AssignmentsTo(k FuncKey, target string) []Assignment {
	return c.assignsByTarget[k][target]
}

// AssignmentsAt returns the assignments at file:line
func (c *Cache) AssignmentsAt(file string, line int) []Assignment {
	return c.assignsAt[lineKey{file, line}]
}

// AssignmentSources returns the variables referenced by the right-hand side of the assignment
func (c *Cache) AssignmentSources(a Assignment) []string {
	return c.assignSources[assignKey{a.File, a.Line, a.TargetVar}]
}

// OnlyFalsyAssignments returns true if all the assignments of the variable in the function are falsy literals, and
// there is at least one.
func (c *Cache) OnlyFalsyAssignments(k FuncKey, v string) bool {
	return c.falsyOnlyVars[k][v]
}

// Calls returns the calls made by the function, ordered by line
func (c *Cache) Calls(k FuncKey) []*Call {
	return c.callsByFunc[k]
}

// CallsAt returns the calls at file:line
func (c *Cache) CallsAt(file string, line int) []*Call {
	return c.callsAt[lineKey{file, line}]
}

// CallsByCallee returns the calls whose callee expression is exactly callee
func (c *Cache) CallsByCallee(callee string) []*Call {
	return c.callsByCallee[callee]
}

// CallsTo returns the calls that resolve to the function k
func (c *Cache) CallsTo(k FuncKey) []*Call {
	return c.callsTo[k]
}

// Resolve returns the function a call resolves to. A call resolves only when its callee file is known and the file
// defines exactly one function matching the callee name.
func (c *Cache) Resolve(call *Call) funcutil.Optional[FuncKey] {
	k, ok := c.resolved[call]
	return funcutil.OptionalOf(k, ok)
}

func (c *Cache) resolveCallee(call *Call) (FuncKey, bool) {
	if call.CalleeFile == "" {
		return FuncKey{}, false
	}
	names := c.funcsByFile[call.CalleeFile]
	if funcutil.Contains(names, call.Callee) {
		return FuncKey{File: call.CalleeFile, Function: call.Callee}, true
	}
	// qualified call "service.process" or "this.repo.find" to a function defined as "process" or "Repo.find"
	var candidates []string
	for _, name := range names {
		if strings.HasSuffix(call.Callee, "."+name) || LastSegment(name) == LastSegment(call.Callee) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) != 1 {
		if len(candidates) > 1 {
			c.ambiguous = append(c.ambiguous, call)
		}
		return FuncKey{}, false
	}
	return FuncKey{File: call.CalleeFile, Function: candidates[0]}, true
}

// AmbiguousCalls returns the calls left unresolved because several functions of their callee file match the callee
// name.
func (c *Cache) AmbiguousCalls() []*Call {
	return c.ambiguous
}

// Params returns the formal parameters of the function, ordered by index
func (c *Cache) Params(k FuncKey) []Param {
	if ps, ok := c.params[k]; ok {
		return ps
	}
	return nil
}

// ParamAt returns the parameter of the function receiving the argument at index. A variadic last parameter receives
// all the remaining arguments.
func (c *Cache) ParamAt(k FuncKey, index int) funcutil.Optional[Param] {
	ps := c.params[k]
	for _, p := range ps {
		if p.Index == index {
			return funcutil.Some(p)
		}
	}
	if len(ps) > 0 {
		last := ps[len(ps)-1]
		if last.Variadic && index > last.Index {
			return funcutil.Some(last)
		}
	}
	return funcutil.None[Param]()
}

// Returns returns the return statements of the function, ordered by line
func (c *Cache) Returns(k FuncKey) []Return {
	return c.returnsByFunc[k]
}

// ReturnSources returns the variables feeding the return statement r
func (c *Cache) ReturnSources(r Return) []string {
	return c.returnSources[lineKey{r.File, r.Line}]
}

// CFG returns the control-flow graph of the function, if there is one and it is not degenerate
func (c *Cache) CFG(k FuncKey) funcutil.Optional[*CFG] {
	g, ok := c.cfgs[k]
	return funcutil.OptionalOf(g, ok)
}

// FunctionAt returns the innermost function containing file:line. It uses the function symbol ranges first, and then
// the assignments and calls at that line.
func (c *Cache) FunctionAt(file string, line int) funcutil.Optional[FuncKey] {
	for _, r := range c.funcRanges[file] {
		if r.start <= line && line <= r.end {
			return funcutil.Some(r.key)
		}
	}
	if as := c.assignsAt[lineKey{file, line}]; len(as) > 0 {
		return funcutil.Some(FuncKey{File: file, Function: as[0].InFunction})
	}
	if calls := c.callsAt[lineKey{file, line}]; len(calls) > 0 {
		return funcutil.Some(calls[0].CallerKey())
	}
	return funcutil.None[FuncKey]()
}

// CallEdges returns the edges of the call graph between resolved functions, in a deterministic order
func (c *Cache) CallEdges() []graphutil.FuncEdge {
	seen := map[graphutil.FuncEdge]bool{}
	var edges []graphutil.FuncEdge
	for _, caller := range c.Functions() {
		for _, call := range c.callsByFunc[caller] {
			callee, ok := c.resolved[call]
			if !ok {
				continue
			}
			e := graphutil.FuncEdge{Caller: caller, Callee: callee}
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// CallGraph returns the call graph of the resolved calls
func (c *Cache) CallGraph() graphutil.FuncGraph {
	return graphutil.NewFuncGraph(c.CallEdges())
}
