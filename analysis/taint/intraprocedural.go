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
	"sort"

	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/internal/funcutil"
)

// origin records how a variable became tainted: the variable it was derived from and the steps of the derivation.
type origin struct {
	parent string
	steps  []Step
}

// flowState is the taint state of a function at one program point
type flowState struct {
	tainted   map[string]bool
	sanitized map[string]bool
	origins   map[string]origin
}

func newFlowState(tainted ...string) flowState {
	return flowState{
		tainted:   funcutil.SetOf(tainted...),
		sanitized: map[string]bool{},
		origins:   map[string]origin{},
	}
}

func (f flowState) clone() flowState {
	origins := make(map[string]origin, len(f.origins))
	for k, o := range f.origins {
		origins[k] = o
	}
	return flowState{
		tainted:   funcutil.CopySet(f.tainted),
		sanitized: funcutil.CopySet(f.sanitized),
		origins:   origins,
	}
}

// taintedIn returns the first tainted variable, in lexicographic order, referenced by expr.
func (f flowState) taintedIn(expr string) string {
	for _, v := range funcutil.SetToOrderedSlice(f.tainted) {
		if facts.ReferencesVar(expr, v) {
			return v
		}
	}
	return ""
}

// chain returns the steps that derived v from the variable the state was entered with, in program order.
func (f flowState) chain(v string) []Step {
	var rev [][]Step
	seen := map[string]bool{}
	for cur := v; !seen[cur]; {
		seen[cur] = true
		o, ok := f.origins[cur]
		if !ok {
			break
		}
		rev = append(rev, o.steps)
		cur = o.parent
	}
	funcutil.Reverse(rev)
	var steps []Step
	for _, s := range rev {
		steps = append(steps, s...)
	}
	return steps
}

// argHit is an argument of a call that references a tainted variable. The index of a tainted receiver is -1.
type argHit struct {
	call *facts.Call
	arg  facts.CallArg
	v    string
}

type sinkHit struct {
	sink *Sink
	arg  facts.CallArg
	v    string
}

type returnHit struct {
	ret facts.Return
	v   string
}

// localFlow is the result of scanning a range of lines of a function
type localFlow struct {
	flowState
	sinks   []sinkHit
	passes  []argHit
	returns []returnHit
}

// callEffect decides whether the result of a call to a resolved function is tainted when the arguments in hits are.
// It returns the steps explaining the flow through the callee.
type callEffect func(call *facts.Call, hits []argHit) (bool, []Step)

type scanParams struct {
	key  facts.FuncKey
	from int
	// to is the last line scanned; 0 scans to the end of the function
	to int
	// entry holds the variables bound at line from: their assignments at that line are the binding itself
	entry  map[string]bool
	effect callEffect
}

const (
	eventCall = iota
	eventAssign
	eventReturn
)

type event struct {
	line   int
	kind   int
	call   *facts.Call
	assign facts.Assignment
	ret    facts.Return
}

func (p scanParams) inRange(line int) bool {
	return line >= p.from && (p.to <= 0 || line <= p.to)
}

func (s *AnalyzerState) events(p scanParams) []event {
	var events []event
	for _, call := range s.Facts.Calls(p.key) {
		if p.inRange(call.Line) {
			events = append(events, event{line: call.Line, kind: eventCall, call: call})
		}
	}
	for _, a := range s.Facts.Assignments(p.key) {
		if p.inRange(a.Line) {
			events = append(events, event{line: a.Line, kind: eventAssign, assign: a})
		}
	}
	for _, r := range s.Facts.Returns(p.key) {
		if p.inRange(r.Line) {
			events = append(events, event{line: r.Line, kind: eventReturn, ret: r})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].line != events[j].line {
			return events[i].line < events[j].line
		}
		return events[i].kind < events[j].kind
	})
	return events
}

// scan propagates the taint of in through the lines of a function, in source order. The calls at a line are
// evaluated before the assignments of that line, so that "x = f(y)" reads the state before x is bound.
// Assignments from tainted expressions taint their target, assignments from clean expressions clear it, and calls to
// sanitizers clean their arguments. The scan reports the sinks reached, the calls to resolved functions receiving
// tainted arguments and the returns of tainted values.
func (s *AnalyzerState) scan(p scanParams, in flowState, t *targets) *localFlow {
	flow := &localFlow{flowState: in.clone()}
	lang := s.Language(p.key.File)
	for _, ev := range s.events(p) {
		switch ev.kind {
		case eventCall:
			s.scanCall(flow, ev.call, lang, t)
		case eventAssign:
			if p.entry[ev.assign.TargetVar] && ev.assign.Line == p.from {
				continue
			}
			s.scanAssignment(flow, p, ev.assign, lang)
		case eventReturn:
			if v := flow.taintedIn(ev.ret.ReturnExpr); v != "" {
				flow.returns = append(flow.returns, returnHit{ret: ev.ret, v: v})
				continue
			}
			for _, src := range s.Facts.ReturnSources(ev.ret) {
				if flow.tainted[src] {
					flow.returns = append(flow.returns, returnHit{ret: ev.ret, v: src})
					break
				}
			}
		}
	}
	return flow
}

func (s *AnalyzerState) taintedArgs(flow *localFlow, call *facts.Call) []argHit {
	var hits []argHit
	for _, arg := range call.Args {
		if v := flow.taintedIn(arg.ArgExpr); v != "" {
			hits = append(hits, argHit{call: call, arg: arg, v: v})
		}
	}
	if recv := facts.Receiver(call.Callee); recv != "" {
		if v := flow.taintedIn(recv); v != "" {
			hits = append(hits, argHit{call: call, arg: facts.CallArg{ArgIndex: -1, ArgExpr: recv}, v: v})
		}
	}
	return hits
}

func (s *AnalyzerState) scanCall(flow *localFlow, call *facts.Call, lang string, t *targets) {
	hits := s.taintedArgs(flow, call)
	if len(hits) == 0 {
		return
	}
	if _, ok := s.Patterns.IsSanitizer(call.Callee, lang); ok {
		// the argument may be an access path of the tainted variable, e.g. validate(request.form['q'])
		for _, hit := range hits {
			if hit.arg.ArgIndex < 0 {
				continue
			}
			for _, v := range funcutil.SetToOrderedSlice(flow.tainted) {
				if facts.ReferencesVar(hit.arg.ArgExpr, v) {
					delete(flow.tainted, v)
					flow.sanitized[v] = true
				}
			}
		}
		return
	}
	if sink, ok := t.sinkOf[call]; ok {
		seen := map[string]bool{}
		for _, hit := range hits {
			if !seen[hit.v] {
				seen[hit.v] = true
				flow.sinks = append(flow.sinks, sinkHit{sink: sink, arg: hit.arg, v: hit.v})
			}
		}
	}
	if s.Facts.Resolve(call).IsSome() {
		flow.passes = append(flow.passes,
			funcutil.Filter(hits, func(hit argHit) bool { return hit.arg.ArgIndex >= 0 })...)
	}
}

// sanitizedBetween returns true if a sanitizer call of the function, strictly between the lines from and to, receives
// an argument referencing v.
func (s *AnalyzerState) sanitizedBetween(k facts.FuncKey, v string, from int, to int) bool {
	lang := s.Language(k.File)
	for _, call := range s.Facts.Calls(k) {
		if call.Line <= from || call.Line >= to {
			continue
		}
		if _, ok := s.Patterns.IsSanitizer(call.Callee, lang); !ok {
			continue
		}
		for _, arg := range call.Args {
			if facts.ReferencesVar(arg.ArgExpr, v) {
				return true
			}
		}
	}
	return false
}

// resolvedCallAt returns the call to a resolved function evaluated by the right-hand side of the assignment
func (s *AnalyzerState) resolvedCallAt(a facts.Assignment, callee string) *facts.Call {
	for _, call := range s.Facts.CallsAt(a.File, a.Line) {
		if call.Callee == callee && s.Facts.Resolve(call).IsSome() {
			return call
		}
	}
	return nil
}

func (s *AnalyzerState) scanAssignment(flow *localFlow, p scanParams, a facts.Assignment, lang string) {
	target := a.TargetVar
	v := flow.taintedIn(a.SourceExpr)
	if v == "" {
		for _, src := range s.Facts.AssignmentSources(a) {
			if flow.tainted[src] {
				v = src
				break
			}
		}
	}

	if callee, _, isCall := facts.CallParts(a.SourceExpr); isCall {
		if _, ok := s.Patterns.IsSanitizer(callee, lang); ok {
			if v != "" {
				flow.sanitized[target] = true
			}
			delete(flow.tainted, target)
			delete(flow.origins, target)
			return
		}
		if call := s.resolvedCallAt(a, callee); call != nil {
			// the taint of a resolved call result comes from the callee, never from the syntax of the call
			hits := funcutil.Filter(s.taintedArgs(flow, call), func(hit argHit) bool { return hit.arg.ArgIndex >= 0 })
			tainted, steps := false, []Step(nil)
			if len(hits) > 0 && p.effect != nil {
				tainted, steps = p.effect(call, hits)
			}
			if tainted {
				flow.tainted[target] = true
				delete(flow.sanitized, target)
				flow.origins[target] = origin{parent: hits[0].v, steps: steps}
			} else {
				delete(flow.tainted, target)
				delete(flow.origins, target)
			}
			return
		}
	}

	if v != "" {
		flow.tainted[target] = true
		delete(flow.sanitized, target)
		if v != target {
			flow.origins[target] = origin{parent: v, steps: []Step{{
				Type:     StepAssignment,
				File:     a.File,
				Line:     a.Line,
				Function: a.InFunction,
				Var:      target,
				Expr:     a.SourceExpr,
			}}}
		}
		return
	}
	// strong update: the variable is rebound to a clean value
	delete(flow.tainted, target)
	delete(flow.origins, target)
}
