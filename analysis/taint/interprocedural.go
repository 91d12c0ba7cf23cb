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

// visitorNode is a state of the flow-insensitive worklist: a tainted variable in a function, with the call stack
// that led there.
type visitorNode struct {
	key       facts.FuncKey
	v         string
	from      int
	depth     int
	steps     []Step
	stack     []CallFrame
	sanitized bool
}

func (n *visitorNode) stateKey() stateKey {
	return stateKey{file: n.key.File, function: n.key.Function, vars: n.v}
}

// runFlowInsensitive explores the states reachable from start, ignoring branches. Sinks reached in the function of
// the source without any call are reported on the intraprocedural track. When fromCFG is true, the run is the
// fallback of the flow-sensitive track for a function without control-flow graph, and every sink reached is
// reported on the flow-insensitive track with the conditions collected before the fallback.
func (r *seedRun) runFlowInsensitive(source Location, start *visitorNode, fromCFG bool, conditions []string) {
	logger := r.state.Logger
	que := []*visitorNode{start}
	for len(que) != 0 {
		if !r.expand() {
			logger.Debugf("Stopping flow-insensitive propagation from %s: node budget exhausted or cancelled", source)
			return
		}
		elt := que[0]
		que = que[1:]
		if !r.markVisited(elt.stateKey(), Signature(elt.stack)) {
			continue
		}
		logger.Tracef("Visiting %s (%s) from line %d, depth %d", elt.key, elt.v, elt.from, elt.depth)

		flow := r.state.scan(scanParams{key: elt.key, from: elt.from, entry: funcutil.SetOf(elt.v)},
			newFlowState(elt.v), r.targets)

		for _, hit := range flow.sinks {
			track := TrackFlowInsensitive
			if elt.depth == 1 && !fromCFG {
				track = TrackIntraprocedural
			}
			r.emit(source, hit, appendSteps(elt.steps, flow.chain(hit.v)...), elt.stack, flow, elt.sanitized, track,
				false, conditions)
		}
		sanitized := elt.sanitized || len(flow.sanitized) > 0
		for _, hit := range flow.passes {
			if next := r.argumentPass(elt, flow, hit, sanitized); next != nil {
				que = append(que, next)
			}
		}
		for _, hit := range flow.returns {
			que = append(que, r.returnFlow(elt, flow, hit, sanitized)...)
		}
	}
}

// argumentPass returns the state of the callee receiving the tainted argument, or nil if the argument cannot be
// followed.
func (r *seedRun) argumentPass(elt *visitorNode, flow *localFlow, hit argHit, sanitized bool) *visitorNode {
	logger := r.state.Logger
	call := hit.call
	callee := r.state.Facts.Resolve(call).Value()
	if r.state.IsExcluded(callee.File) {
		return nil
	}
	param := r.state.bindParam(callee, hit.arg)
	if param == "" {
		logger.Debugf("Skipping argument %d of %s at %s:%d: no parameter binding",
			hit.arg.ArgIndex, call.Callee, call.File, call.Line)
		return nil
	}
	if inStack(elt.stack, elt.key) {
		r.result.recursionGuard++
		logger.Tracef("Recursion guard: %s already in call stack %s", elt.key, Signature(elt.stack))
		return nil
	}
	if !r.allowDepth(elt.depth + 1) {
		logger.Debugf("Depth limit reached at %s:%d calling %s", call.File, call.Line, callee)
		return nil
	}
	frame := CallFrame{File: elt.key.File, Function: elt.key.Function, Line: call.Line}
	step := Step{
		Type:     StepArgument,
		File:     call.File,
		Line:     call.Line,
		Function: elt.key.Function,
		Var:      param,
		Expr:     hit.arg.ArgExpr,
		Callee:   callee.Function,
	}
	return &visitorNode{
		key:       callee,
		v:         param,
		from:      0,
		depth:     elt.depth + 1,
		steps:     appendSteps(elt.steps, append(flow.chain(hit.v), step)...),
		stack:     push(elt.stack, frame),
		sanitized: sanitized,
	}
}

// returnFlow returns the states of the callers receiving a tainted return value. A non-empty call stack is unwound
// to its top frame only; an empty one flows back to every caller of the function.
func (r *seedRun) returnFlow(elt *visitorNode, flow *localFlow, hit returnHit, sanitized bool) []*visitorNode {
	logger := r.state.Logger
	if !r.allowDepth(elt.depth + 1) {
		logger.Debugf("Depth limit reached returning from %s at %s:%d", elt.key, hit.ret.File, hit.ret.Line)
		return nil
	}
	var calls []*facts.Call
	var stack []CallFrame
	if len(elt.stack) > 0 {
		top := elt.stack[len(elt.stack)-1]
		for _, call := range r.state.Facts.CallsAt(top.File, top.Line) {
			if call.Caller == top.Function && r.state.Facts.Resolve(call).ValueOr(facts.FuncKey{}) == elt.key {
				calls = append(calls, call)
			}
		}
		if len(calls) == 0 {
			logger.Debugf("Skipping return of %s at %s:%d: call stack top %s does not call it",
				elt.key, hit.ret.File, hit.ret.Line, top)
			return nil
		}
		stack = elt.stack[:len(elt.stack)-1]
	} else {
		calls = r.state.Facts.CallsTo(elt.key)
	}

	var next []*visitorNode
	for _, call := range calls {
		if r.state.IsExcluded(call.File) {
			continue
		}
		for _, recv := range r.state.receivers(call) {
			step := Step{
				Type:     StepReturn,
				File:     hit.ret.File,
				Line:     hit.ret.Line,
				Function: elt.key.Function,
				Var:      recv,
				Expr:     hit.ret.ReturnExpr,
				Callee:   call.Caller,
			}
			next = append(next, &visitorNode{
				key:       call.CallerKey(),
				v:         recv,
				from:      call.Line,
				depth:     elt.depth + 1,
				steps:     appendSteps(elt.steps, append(flow.chain(hit.v), step)...),
				stack:     append([]CallFrame{}, stack...),
				sanitized: sanitized,
			})
		}
	}
	return next
}
