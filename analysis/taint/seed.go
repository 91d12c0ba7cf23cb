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
	"context"
	"strings"

	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/internal/funcutil"
)

// seedResult collects the raw paths and the counters of the worklists run for one seed.
type seedResult struct {
	paths          []*TaintPath
	nodes          int
	capHits        int
	cfgFallbacks   int
	loopBlocks     int
	depthLimit     bool
	budgetLimit    bool
	recursionGuard int
}

func (r *seedResult) merge(other seedResult) {
	r.paths = append(r.paths, other.paths...)
	r.nodes += other.nodes
	r.capHits += other.capHits
	r.cfgFallbacks += other.cfgFallbacks
	r.loopBlocks += other.loopBlocks
	r.depthLimit = r.depthLimit || other.depthLimit
	r.budgetLimit = r.budgetLimit || other.budgetLimit
	r.recursionGuard += other.recursionGuard
}

// stateKey identifies a worklist state up to its call stack: the function and the tainted variables at its entry.
type stateKey struct {
	file     string
	function string
	vars     string
}

// seedRun is one worklist run. It is owned by a single goroutine.
type seedRun struct {
	ctx     context.Context
	state   *AnalyzerState
	targets *targets
	budget  int
	result  seedResult
	// visited maps the states to the signatures of the call stacks they have been explored with
	visited   map[stateKey]map[string]bool
	summaries map[summaryKey]*summary
}

func newSeedRun(ctx context.Context, state *AnalyzerState, t *targets) *seedRun {
	return &seedRun{
		ctx:       ctx,
		state:     state,
		targets:   t,
		budget:    state.Config.NodeBudget,
		visited:   map[stateKey]map[string]bool{},
		summaries: map[summaryKey]*summary{},
	}
}

// expand accounts for the expansion of one worklist state. It returns false when the run must stop, because the node
// budget is exhausted or the context is done.
func (r *seedRun) expand() bool {
	if r.ctx.Err() != nil {
		r.result.budgetLimit = true
		return false
	}
	if r.budget > 0 && r.result.nodes >= r.budget {
		r.result.budgetLimit = true
		return false
	}
	r.result.nodes++
	return true
}

// markVisited records that the state k is explored with the call stack signature sig. It returns false if the
// state has already been explored with that signature, or with as many distinct signatures as the maximum depth.
func (r *seedRun) markVisited(k stateKey, sig string) bool {
	sigs := r.visited[k]
	if sigs == nil {
		sigs = map[string]bool{}
		r.visited[k] = sigs
	}
	if sigs[sig] {
		return false
	}
	if len(sigs) >= r.state.MaxDepth() {
		r.result.capHits++
		r.state.Logger.Tracef("Signature cap reached for %s:%s (%s)", k.file, k.function, k.vars)
		return false
	}
	sigs[sig] = true
	return true
}

// allowDepth returns true if a state at depth d can be explored, and flags the run otherwise
func (r *seedRun) allowDepth(d int) bool {
	if d > r.state.MaxDepth() {
		r.result.depthLimit = true
		return false
	}
	return true
}

// bindParam returns the name of the parameter of callee receiving the argument, or "" if there is none.
func (s *AnalyzerState) bindParam(callee facts.FuncKey, arg facts.CallArg) string {
	if p := s.Facts.ParamAt(callee, arg.ArgIndex); p.IsSome() {
		return p.Value().Name
	}
	return arg.ParamName
}

// receivers returns the variables receiving the result of the call in the caller. A call whose result is not
// assigned is received by its callee expression, which later expressions of the same line reference.
func (s *AnalyzerState) receivers(call *facts.Call) []string {
	var vars []string
	for _, a := range s.Facts.AssignmentsAt(call.File, call.Line) {
		if a.InFunction != call.Caller {
			continue
		}
		if facts.ReferencesVar(a.SourceExpr, call.Callee) {
			vars = append(vars, a.TargetVar)
		}
	}
	if len(vars) == 0 {
		return []string{call.Callee}
	}
	return vars
}

func (r *seedRun) emit(source Location, sink sinkHit, steps []Step, stack []CallFrame, flow *localFlow,
	sanitized bool, track string, flowSensitive bool, conditions []string) {
	sinkStep := Step{
		Type:     StepSinkReached,
		File:     sink.sink.File,
		Line:     sink.sink.Line,
		Function: sink.sink.Function,
		Var:      sink.v,
		Expr:     sink.arg.ArgExpr,
		Callee:   sink.sink.Call.Callee,
	}
	path := appendSteps(steps, sinkStep)
	if !r.allowDepth(HopCount(path)) {
		r.state.Logger.Debugf("Dropping path to %s:%d: %d hops", sink.sink.File, sink.sink.Line, HopCount(path))
		return
	}
	p := &TaintPath{
		Source:        source,
		Sink:          sink.sink.Location,
		Path:          path,
		CallStack:     append([]CallFrame{}, stack...),
		FlowSensitive: flowSensitive,
		Conditions:    append([]string{}, conditions...),
		Track:         track,
		Sanitized:     sanitized,
		sinkExpr:      sinkExpression(sink),
	}
	if flow != nil {
		p.TaintedVars = funcutil.SetToOrderedSlice(flow.tainted)
		p.SanitizedVars = funcutil.SetToOrderedSlice(flow.sanitized)
		p.Sanitized = p.Sanitized || len(flow.sanitized) > 0
	}
	r.state.Logger.Debugf("💀 Sink reached at %s:%d (%s, %d frames)", sink.sink.File, sink.sink.Line, track,
		len(stack))
	r.result.paths = append(r.result.paths, p)
}

// sinkExpression returns the text of the whole argument list of the sink call, which the risk assessment inspects.
func sinkExpression(sink sinkHit) string {
	args := make([]string, len(sink.sink.Call.Args))
	for i, a := range sink.sink.Call.Args {
		args[i] = a.ArgExpr
	}
	return strings.Join(args, ", ")
}
