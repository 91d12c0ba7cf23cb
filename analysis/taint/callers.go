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

	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/analysis/patterns"
)

// derivation is the result of slicing an expression backward in its function: the parameters and the local sources
// it derives from. Each origin carries the assignment steps from the origin to the expression.
type derivation struct {
	params  []derivedParam
	sources []derivedSource
}

type derivedParam struct {
	param facts.Param
	steps []Step
}

type derivedSource struct {
	source Source
	steps  []Step
}

type sliceItem struct {
	expr  string
	line  int
	steps []Step
}

// derive slices expr, evaluated at line in function k, back to the parameters of k and the source expressions of k.
// A branch of the slice going through a sanitizer call stops. When withSources is false, only parameters are
// returned. A variable passed to a sanitizer call between its definition and its use is not followed.
func (s *AnalyzerState) derive(k facts.FuncKey, expr string, line int, withSources bool) derivation {
	var d derivation
	lang := s.Language(k.File)
	seenParams := map[int]bool{}
	seenAssigns := map[string]bool{}
	que := []sliceItem{{expr: expr, line: line}}
	for len(que) != 0 {
		elt := que[0]
		que = que[1:]
		if callee, _, ok := facts.CallParts(elt.expr); ok {
			if _, isSanitizer := s.Patterns.IsSanitizer(callee, lang); isSanitizer {
				continue
			}
		}
		if withSources {
			for _, m := range s.Patterns.MatchKind(elt.expr, lang, patterns.Source) {
				if s.sanitizedBetween(k, m.Pattern, 0, elt.line) {
					continue
				}
				src := Source{
					Location: Location{File: k.File, Line: elt.line, Function: k.Function, Pattern: m.Pattern,
						Category: m.Category},
					Var:  m.Pattern,
					Expr: elt.expr,
				}
				d.sources = append(d.sources, derivedSource{source: src, steps: elt.steps})
			}
		}
		for _, p := range s.Facts.Params(k) {
			if seenParams[p.Index] || !facts.ReferencesVar(elt.expr, p.Name) {
				continue
			}
			if !s.reassignedBefore(k, p.Name, elt.line) && !s.sanitizedBetween(k, p.Name, 0, elt.line) {
				seenParams[p.Index] = true
				d.params = append(d.params, derivedParam{param: p, steps: elt.steps})
			}
		}
		// the closest assignment before the line of each variable the expression references
		latest := map[string]facts.Assignment{}
		for _, a := range s.Facts.Assignments(k) {
			if a.Line >= elt.line || !facts.ReferencesVar(elt.expr, a.TargetVar) {
				continue
			}
			if cur, ok := latest[a.TargetVar]; !ok || a.Line >= cur.Line {
				latest[a.TargetVar] = a
			}
		}
		targets := make([]string, 0, len(latest))
		for t := range latest {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			a := latest[t]
			key := fmt.Sprintf("%s:%d", a.TargetVar, a.Line)
			if seenAssigns[key] {
				continue
			}
			seenAssigns[key] = true
			if s.sanitizedBetween(k, a.TargetVar, a.Line, elt.line) {
				continue
			}
			if callee, _, ok := facts.CallParts(a.SourceExpr); ok {
				if _, isSanitizer := s.Patterns.IsSanitizer(callee, lang); isSanitizer {
					continue
				}
			}
			step := Step{
				Type:     StepAssignment,
				File:     a.File,
				Line:     a.Line,
				Function: k.Function,
				Var:      a.TargetVar,
				Expr:     a.SourceExpr,
			}
			rhs := a.SourceExpr
			for _, src := range s.Facts.AssignmentSources(a) {
				if !facts.ReferencesVar(rhs, src) {
					rhs += " " + src
				}
			}
			que = append(que, sliceItem{expr: rhs, line: a.Line, steps: append([]Step{step}, elt.steps...)})
		}
	}
	return d
}

// reassignedBefore returns true if the variable is assigned in the function before the line, in which case a
// reference at that line does not read the parameter of the same name.
func (s *AnalyzerState) reassignedBefore(k facts.FuncKey, v string, line int) bool {
	for _, a := range s.Facts.AssignmentsTo(k, v) {
		if a.Line < line {
			return true
		}
	}
	return false
}

// backNode is a state of the backward worklist: a parameter of a function that flows to the sink, with the caller
// frames already prepended and the steps from the parameter to the sink.
type backNode struct {
	key   facts.FuncKey
	param facts.Param
	depth int
	stack []CallFrame
	steps []Step
}

// runMultiHop grows paths backward from the sink: the parameters of the function of the sink that flow into the sink
// arguments are followed to the callers of the function, until an argument matching a source is found.
func (r *seedRun) runMultiHop(sink *Sink) {
	logger := r.state.Logger
	h := facts.FuncKey{File: sink.File, Function: sink.Function}
	var que []*backNode
	for _, arg := range sink.Call.Args {
		sinkStep := Step{
			Type:     StepSinkReached,
			File:     sink.File,
			Line:     sink.Line,
			Function: sink.Function,
			Var:      arg.ArgExpr,
			Expr:     arg.ArgExpr,
			Callee:   sink.Call.Callee,
		}
		for _, dp := range r.state.derive(h, arg.ArgExpr, sink.Line, false).params {
			que = append(que, &backNode{
				key:   h,
				param: dp.param,
				depth: 1,
				steps: append(append([]Step{}, dp.steps...), sinkStep),
			})
		}
	}

	for len(que) != 0 {
		if !r.expand() {
			logger.Debugf("Stopping caller discovery from %s: node budget exhausted or cancelled", sink.Location)
			return
		}
		elt := que[0]
		que = que[1:]
		k := stateKey{file: elt.key.File, function: elt.key.Function, vars: elt.param.Name}
		if !r.markVisited(k, Signature(elt.stack)) {
			continue
		}
		for _, call := range r.state.Facts.CallsTo(elt.key) {
			caller := call.CallerKey()
			if r.state.IsExcluded(call.File) {
				continue
			}
			if inStack(elt.stack, caller) {
				r.result.recursionGuard++
				continue
			}
			if !r.allowDepth(elt.depth + 1) {
				continue
			}
			arg, ok := argumentFor(call, elt.param)
			if !ok {
				continue
			}
			argStep := Step{
				Type:     StepArgument,
				File:     call.File,
				Line:     call.Line,
				Function: caller.Function,
				Var:      elt.param.Name,
				Expr:     arg.ArgExpr,
				Callee:   elt.key.Function,
			}
			stack := prepend(CallFrame{File: call.File, Function: caller.Function, Line: call.Line}, elt.stack)
			tail := append([]Step{argStep}, elt.steps...)

			d := r.state.derive(caller, arg.ArgExpr, call.Line, true)
			for _, ds := range d.sources {
				steps := append([]Step{ds.source.step()}, ds.steps...)
				r.emitBackward(ds.source, sink, append(steps, tail...), stack)
			}
			for _, dp := range d.params {
				que = append(que, &backNode{
					key:   caller,
					param: dp.param,
					depth: elt.depth + 1,
					stack: stack,
					steps: append(append([]Step{}, dp.steps...), tail...),
				})
			}
		}
	}
}

// argumentFor returns the argument of the call bound to the parameter
func argumentFor(call *facts.Call, p facts.Param) (facts.CallArg, bool) {
	for _, arg := range call.Args {
		if arg.ArgIndex == p.Index || (arg.ParamName != "" && arg.ParamName == p.Name) {
			return arg, true
		}
	}
	return facts.CallArg{}, false
}

func (r *seedRun) emitBackward(source Source, sink *Sink, steps []Step, stack []CallFrame) {
	if HopCount(steps) > r.state.MaxDepth() {
		r.result.depthLimit = true
		return
	}
	r.state.Logger.Debugf("💀 Sink reached at %s:%d from caller source %s", sink.File, sink.Line, source.Location)
	r.result.paths = append(r.result.paths, &TaintPath{
		Source:     source.Location,
		Sink:       sink.Location,
		Path:       steps,
		CallStack:  stack,
		Conditions: []string{},
		Track:      TrackMultiHop,
		sinkExpr:   sinkExpression(sinkHit{sink: sink}),
	})
}
