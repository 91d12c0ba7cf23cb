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
	"strings"

	"github.com/awslabs/argot-sast/analysis/facts"
)

// Step types. The hop steps are the ones counted in the hop count of a path.
const (
	StepSource      = "source"
	StepAssignment  = "assignment"
	StepArgument    = "argument_pass"
	StepReturn      = "return_flow"
	StepSanitizer   = "sanitizer"
	StepSinkReached = "sink_reached"
)

// Tracks that produce paths
const (
	TrackIntraprocedural = "intraprocedural"
	TrackFlowInsensitive = "flow_insensitive"
	TrackFlowSensitive   = "flow_sensitive"
	TrackMultiHop        = "multi_hop"
)

// Location is the position of a source or a sink, with the pattern that matched it
type Location struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function,omitempty"`
	Pattern  string `json:"pattern"`
	Category string `json:"category,omitempty"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// CallFrame is a caller frame of a call stack: the function and the line of the call it is executing.
type CallFrame struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Line     int    `json:"call_site_line"`
}

func (f CallFrame) String() string {
	return fmt.Sprintf("%s:%s@%d", f.File, f.Function, f.Line)
}

// Key returns the function of the frame
func (f CallFrame) Key() facts.FuncKey {
	return facts.FuncKey{File: f.File, Function: f.Function}
}

// Signature returns the canonical string of a call stack, used as deduplication key
func Signature(stack []CallFrame) string {
	parts := make([]string, len(stack))
	for i, f := range stack {
		parts[i] = f.String()
	}
	return strings.Join(parts, ">")
}

// inStack returns true if the function k appears in one of the frames of the stack
func inStack(stack []CallFrame, k facts.FuncKey) bool {
	for _, f := range stack {
		if f.File == k.File && f.Function == k.Function {
			return true
		}
	}
	return false
}

func push(stack []CallFrame, f CallFrame) []CallFrame {
	res := make([]CallFrame, len(stack), len(stack)+1)
	copy(res, stack)
	return append(res, f)
}

func prepend(f CallFrame, stack []CallFrame) []CallFrame {
	res := make([]CallFrame, 0, len(stack)+1)
	res = append(res, f)
	return append(res, stack...)
}

// Step is one element of a taint path
type Step struct {
	Type     string `json:"type"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function,omitempty"`
	Var      string `json:"var,omitempty"`
	Expr     string `json:"expr,omitempty"`
	Callee   string `json:"callee,omitempty"`
}

func (s Step) String() string {
	return fmt.Sprintf("%s@%s:%d", s.Type, s.File, s.Line)
}

// IsHop returns true for the steps counted in the hop count
func (s Step) IsHop() bool {
	switch s.Type {
	case StepSource, StepArgument, StepReturn, StepSinkReached:
		return true
	}
	return false
}

func appendSteps(steps []Step, more ...Step) []Step {
	res := make([]Step, len(steps), len(steps)+len(more))
	copy(res, steps)
	return append(res, more...)
}

// HopCount returns the number of hop steps of the path minus one: a flow from a source to a sink in the same function
// has one hop.
func HopCount(steps []Step) int {
	n := 0
	for _, s := range steps {
		if s.IsHop() {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return n - 1
}

// TaintPath is a verified path from a source to a sink.
type TaintPath struct {
	Source            Location    `json:"source"`
	Sink              Location    `json:"sink"`
	Path              []Step      `json:"path"`
	CallStack         []CallFrame `json:"call_stack"`
	HopCount          int         `json:"hop_count"`
	FlowSensitive     bool        `json:"flow_sensitive"`
	Conditions        []string    `json:"conditions"`
	ConditionSummary  string      `json:"condition_summary,omitempty"`
	PathComplexity    int         `json:"path_complexity"`
	Severity          string      `json:"severity"`
	VulnerabilityType string      `json:"vulnerability_type"`
	Track             string      `json:"track"`
	Sanitized         bool        `json:"sanitized"`
	TaintedVars       []string    `json:"tainted_vars,omitempty"`
	SanitizedVars     []string    `json:"sanitized_vars,omitempty"`
	RelatedSources    []Location  `json:"related_sources,omitempty"`

	// sinkExpr is the argument list of the sink call
	sinkExpr string
}

// ID returns the identity of the path: the coordinates of its source and sink, and its call stack signature.
func (p *TaintPath) ID() string {
	return fmt.Sprintf("%s:%d|%s:%d|%s", p.Source.File, p.Source.Line, p.Sink.File, p.Sink.Line,
		Signature(p.CallStack))
}

func (p *TaintPath) String() string {
	return fmt.Sprintf("%s -> %s (%d hops, %s)", p.Source, p.Sink, p.HopCount, p.Track)
}
