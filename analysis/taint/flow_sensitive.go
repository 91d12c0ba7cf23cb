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
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/internal/funcutil"
)

// fsEntry is a state of the flow-sensitive worklist: a function entered with a set of tainted variables at a line.
type fsEntry struct {
	key        facts.FuncKey
	tainted    map[string]bool
	from       int
	depth      int
	steps      []Step
	stack      []CallFrame
	conditions []string
	sanitized  bool
}

func (e *fsEntry) stateKey() stateKey {
	return stateKey{file: e.key.File, function: e.key.Function, vars: funcutil.SetKey(e.tainted)}
}

// summaryKey identifies the summary of a callee for one tainted parameter
type summaryKey struct {
	callee facts.FuncKey
	param  string
}

// summary records whether a tainted parameter of a function flows to one of its returns
type summary struct {
	returns bool
	ret     facts.Return
}

// runFlowSensitive explores the functions reachable from start along their control-flow graphs.
func (r *seedRun) runFlowSensitive(source Location, start *fsEntry) {
	logger := r.state.Logger
	que := []*fsEntry{start}
	for len(que) != 0 {
		if !r.expand() {
			logger.Debugf("Stopping flow-sensitive propagation from %s: node budget exhausted or cancelled", source)
			return
		}
		elt := que[0]
		que = que[1:]
		if !r.markVisited(elt.stateKey(), Signature(elt.stack)) {
			continue
		}
		g := r.state.Facts.CFG(elt.key)
		if g.IsNone() {
			r.result.cfgFallbacks++
			logger.Debugf("No control-flow graph for %s, falling back to flow-insensitive propagation", elt.key)
			r.fallback(source, elt)
			continue
		}
		que = append(que, r.walkCFG(source, elt, g.Value())...)
	}
}

// fallback runs the flow-insensitive worklist from the entry state of a function without control-flow graph. It
// uses its own visited set, since the states of the two worklists are not comparable.
func (r *seedRun) fallback(source Location, elt *fsEntry) {
	fi := &seedRun{
		ctx:       r.ctx,
		state:     r.state,
		targets:   r.targets,
		budget:    r.budget,
		result:    seedResult{nodes: r.result.nodes},
		visited:   map[stateKey]map[string]bool{},
		summaries: r.summaries,
	}
	for _, v := range funcutil.SetToOrderedSlice(elt.tainted) {
		fi.runFlowInsensitive(source, &visitorNode{
			key:       elt.key,
			v:         v,
			from:      elt.from,
			depth:     elt.depth,
			steps:     elt.steps,
			stack:     elt.stack,
			sanitized: elt.sanitized,
		}, true, elt.conditions)
	}
	nodes := fi.result.nodes
	fi.result.nodes = 0
	r.result.merge(fi.result)
	r.result.nodes = nodes
}

// walkCFG propagates the entry state through the blocks of the function and returns the entries of the functions
// the taint flows to.
func (r *seedRun) walkCFG(source Location, elt *fsEntry, g *facts.CFG) []*fsEntry {
	logger := r.state.Logger
	startBlock := g.Entry
	if elt.from > 0 {
		if b, ok := g.BlockAt(elt.from); ok {
			startBlock = b.ID
		}
	}
	entry := &blockState{flowState: newFlowState(), conditions: append([]string{}, elt.conditions...)}
	entry.tainted = funcutil.CopySet(elt.tainted)
	in := map[int]*blockState{startBlock: entry}
	visited := map[int]map[string]bool{}
	blocks := []int{startBlock}
	// only the first visit of the start block begins at the entry line; a loop back to it runs the whole block
	trimEntry := elt.from > 0
	var next []*fsEntry

	for len(blocks) != 0 {
		id := blocks[0]
		blocks = blocks[1:]
		st := in[id]
		key := funcutil.SetKey(st.tainted) + "|" + funcutil.SetKey(st.sanitized)
		if visited[id] == nil {
			visited[id] = map[string]bool{}
		}
		if visited[id][key] {
			continue
		}
		visited[id][key] = true
		if !r.expand() {
			return next
		}
		if g.Loops[id] {
			r.result.loopBlocks++
			logger.Tracef("Block %d of %s is in a loop", id, elt.key)
		}

		blk := g.Blocks[id]
		p := scanParams{key: elt.key, from: blk.StartLine, to: blk.EndLine, effect: r.callEffect(elt)}
		if id == startBlock && trimEntry {
			trimEntry = false
			if elt.from > p.from {
				p.from = elt.from
			}
			p.entry = elt.tainted
		}
		flow := r.state.scan(p, st.flowState, r.targets)
		sanitized := elt.sanitized || len(flow.sanitized) > 0

		for _, hit := range flow.sinks {
			r.emit(source, hit, appendSteps(elt.steps, flow.chain(hit.v)...), elt.stack, flow, sanitized,
				TrackFlowSensitive, true, st.conditions)
		}
		for _, hit := range flow.passes {
			if e := r.enterCallee(elt, flow, hit, st.conditions, sanitized); e != nil {
				next = append(next, e)
			}
		}
		if len(elt.stack) == 0 {
			// returns with a non-empty stack are accounted for by the summary of the callee in the caller
			for _, hit := range flow.returns {
				next = append(next, r.returnToCallers(elt, flow, hit, st.conditions, sanitized)...)
			}
		}

		out := &blockState{flowState: flow.flowState, conditions: st.conditions}
		for _, e := range g.Succs[id] {
			target, feasible := r.state.applyEdge(elt.key, blk, e, out)
			if !feasible {
				logger.Tracef("Pruning infeasible edge %d -> %d of %s", e.Source, e.Target, elt.key)
				continue
			}
			if cur, ok := in[e.Target]; ok {
				in[e.Target] = cur.merge(target)
			} else {
				in[e.Target] = target.clone()
			}
			blocks = append(blocks, e.Target)
		}
	}
	return next
}

func (r *seedRun) enterCallee(elt *fsEntry, flow *localFlow, hit argHit, conditions []string,
	sanitized bool) *fsEntry {
	call := hit.call
	callee := r.state.Facts.Resolve(call).Value()
	if r.state.IsExcluded(callee.File) {
		return nil
	}
	param := r.state.bindParam(callee, hit.arg)
	if param == "" {
		r.state.Logger.Debugf("Skipping argument %d of %s at %s:%d: no parameter binding",
			hit.arg.ArgIndex, call.Callee, call.File, call.Line)
		return nil
	}
	if inStack(elt.stack, elt.key) {
		r.result.recursionGuard++
		return nil
	}
	step := Step{
		Type:     StepArgument,
		File:     call.File,
		Line:     call.Line,
		Function: elt.key.Function,
		Var:      param,
		Expr:     hit.arg.ArgExpr,
		Callee:   callee.Function,
	}
	steps := appendSteps(elt.steps, append(flow.chain(hit.v), step)...)
	// the chain may go through callee summaries, which count as hops
	depth := HopCount(steps) + 1
	if !r.allowDepth(depth) {
		return nil
	}
	return &fsEntry{
		key:        callee,
		tainted:    funcutil.SetOf(param),
		depth:      depth,
		steps:      steps,
		stack:      push(elt.stack, CallFrame{File: elt.key.File, Function: elt.key.Function, Line: call.Line}),
		conditions: append([]string{}, conditions...),
		sanitized:  sanitized,
	}
}

func (r *seedRun) returnToCallers(elt *fsEntry, flow *localFlow, hit returnHit, conditions []string,
	sanitized bool) []*fsEntry {
	chain := flow.chain(hit.v)
	depth := HopCount(appendSteps(elt.steps, chain...)) + 2
	if !r.allowDepth(depth) {
		return nil
	}
	var next []*fsEntry
	for _, call := range r.state.Facts.CallsTo(elt.key) {
		if r.state.IsExcluded(call.File) {
			continue
		}
		recv := r.state.receivers(call)
		step := Step{
			Type:     StepReturn,
			File:     hit.ret.File,
			Line:     hit.ret.Line,
			Function: elt.key.Function,
			Var:      recv[0],
			Expr:     hit.ret.ReturnExpr,
			Callee:   call.Caller,
		}
		next = append(next, &fsEntry{
			key:        call.CallerKey(),
			tainted:    funcutil.SetOf(recv...),
			from:       call.Line,
			depth:      depth,
			steps:      appendSteps(elt.steps, append(chain, step)...),
			conditions: append([]string{}, conditions...),
			sanitized:  sanitized,
		})
	}
	return next
}

// callEffect returns the effect of the calls to resolved functions in the function of elt: the result of a call is
// tainted when a tainted argument flows to a return of the callee. Each use of a summary adds an argument pass and a
// return to the path, so it must fit in the depth left.
func (r *seedRun) callEffect(elt *fsEntry) callEffect {
	return func(call *facts.Call, hits []argHit) (bool, []Step) {
		callee := r.state.Facts.Resolve(call).Value()
		for _, hit := range hits {
			param := r.state.bindParam(callee, hit.arg)
			if param == "" {
				continue
			}
			sum := r.summarize(callee, param)
			if !sum.returns {
				continue
			}
			if !r.allowDepth(elt.depth + 2) {
				continue
			}
			return true, []Step{
				{
					Type:     StepArgument,
					File:     call.File,
					Line:     call.Line,
					Function: elt.key.Function,
					Var:      param,
					Expr:     hit.arg.ArgExpr,
					Callee:   callee.Function,
				},
				{
					Type:     StepReturn,
					File:     sum.ret.File,
					Line:     sum.ret.Line,
					Function: callee.Function,
					Expr:     sum.ret.ReturnExpr,
					Callee:   elt.key.Function,
				},
			}
		}
		return false, nil
	}
}

// summarize computes whether the parameter of the callee flows to one of its returns. The summaries are memoized per
// seed; a summary under computation is assumed not to return taint, which cuts recursive calls.
func (r *seedRun) summarize(callee facts.FuncKey, param string) *summary {
	k := summaryKey{callee: callee, param: param}
	if sum, ok := r.summaries[k]; ok {
		return sum
	}
	sum := &summary{}
	r.summaries[k] = sum
	effect := func(call *facts.Call, hits []argHit) (bool, []Step) {
		inner := r.state.Facts.Resolve(call).Value()
		for _, hit := range hits {
			if p := r.state.bindParam(inner, hit.arg); p != "" && r.summarize(inner, p).returns {
				return true, nil
			}
		}
		return false, nil
	}
	flow := r.state.scan(scanParams{key: callee, entry: funcutil.SetOf(param), effect: effect},
		newFlowState(param), r.targets)
	if len(flow.returns) > 0 {
		sum.returns = true
		sum.ret = flow.returns[0].ret
	}
	return sum
}
