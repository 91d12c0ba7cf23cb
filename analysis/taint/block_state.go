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
	"strings"

	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/internal/funcutil"
)

// blockState is the abstract state at the entry of a basic block: the taint state and the branch conditions that
// hold on the paths reaching the block.
type blockState struct {
	flowState
	conditions []string
}

func (b *blockState) clone() *blockState {
	return &blockState{flowState: b.flowState.clone(), conditions: append([]string{}, b.conditions...)}
}

func (b *blockState) addCondition(cond string) {
	if !funcutil.Contains(b.conditions, cond) {
		b.conditions = append(b.conditions, cond)
	}
}

// merge joins the state of another path into b: a variable is tainted if it is tainted on any path, and sanitized
// only if it is sanitized on all paths.
func (b *blockState) merge(other *blockState) *blockState {
	res := b.clone()
	res.tainted = funcutil.Union(res.tainted, other.tainted)
	res.sanitized = funcutil.Intersect(b.sanitized, other.sanitized)
	for v, o := range other.origins {
		if _, ok := res.origins[v]; !ok {
			res.origins[v] = o
		}
	}
	for _, c := range other.conditions {
		res.addCondition(c)
	}
	return res
}

// edgeCondition returns the condition that holds when the edge is taken, and false if the edge is not conditional.
func edgeCondition(blk facts.Block, e facts.Edge) (string, bool) {
	cond := strings.TrimSpace(blk.Condition)
	if cond == "" || (e.Type != facts.EdgeTrue && e.Type != facts.EdgeFalse) {
		return "", false
	}
	if e.Type == facts.EdgeTrue {
		return cond, true
	}
	if inner, negated := facts.Negation(cond); negated {
		return inner, true
	}
	return "not " + cond, true
}

var truthyLiterals = map[string]bool{"True": true, "true": true, "1": true}

// feasible returns false if the condition can never hold in the function: a falsy literal, or a variable that is
// only ever assigned falsy literals.
func (s *AnalyzerState) feasible(k facts.FuncKey, cond string) bool {
	expr, negated := facts.Negation(cond)
	if negated {
		return !truthyLiterals[expr]
	}
	if facts.IsFalsyLiteral(expr) {
		return false
	}
	if facts.IsSimpleIdentifier(expr) && s.Facts.OnlyFalsyAssignments(k, facts.NormalizeIdentifier(expr)) {
		return false
	}
	return true
}

// guard applies a validator call in a condition that holds: the tainted variables it checks are sanitized.
func (s *AnalyzerState) guard(k facts.FuncKey, cond string, st *blockState) {
	expr, negated := facts.Negation(cond)
	if negated {
		return
	}
	callee, args, ok := facts.CallParts(expr)
	if !ok {
		return
	}
	if _, isSanitizer := s.Patterns.IsSanitizer(callee, s.Language(k.File)); !isSanitizer {
		return
	}
	for _, v := range funcutil.SetToOrderedSlice(st.tainted) {
		if facts.ReferencesVar(args, v) {
			delete(st.tainted, v)
			st.sanitized[v] = true
		}
	}
}

// applyEdge returns the state at the target of the edge, or false if the edge is infeasible.
func (s *AnalyzerState) applyEdge(k facts.FuncKey, blk facts.Block, e facts.Edge, out *blockState) (*blockState,
	bool) {
	cond, conditional := edgeCondition(blk, e)
	if !conditional {
		return out, true
	}
	if !s.feasible(k, cond) {
		return nil, false
	}
	res := out.clone()
	res.addCondition(cond)
	s.guard(k, cond, res)
	return res, true
}
