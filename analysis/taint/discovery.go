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

// Source is an occurrence of an expression matching a source pattern. The tainted variable of the seed is the text
// of the pattern: every later expression of the function referencing it reads the untrusted data.
type Source struct {
	Location
	Var  string
	Expr string
}

// Key returns the function containing the source
func (s Source) Key() facts.FuncKey {
	return facts.FuncKey{File: s.File, Function: s.Function}
}

func (s Source) step() Step {
	return Step{Type: StepSource, File: s.File, Line: s.Line, Function: s.Function, Var: s.Var, Expr: s.Expr}
}

// Sink is a call whose callee matches a sink pattern
type Sink struct {
	Location
	Call *facts.Call
}

// targets holds the sources and sinks discovered in the fact cache
type targets struct {
	sources []Source
	sinks   []Sink
	sinkOf  map[*facts.Call]*Sink
}

func (s *AnalyzerState) languageEnabled(file string) bool {
	if s.IsExcluded(file) {
		return false
	}
	lang := s.Language(file)
	return s.Config.HasLanguage(lang) ||
		(lang == facts.LanguageTypescript && s.Config.HasLanguage(facts.LanguageJavascript))
}

// DiscoverSources returns the sources of the fact cache, sorted by position. Expressions are matched against the
// source patterns in assignments, call arguments, return expressions and property-access or call symbols.
func DiscoverSources(s *AnalyzerState) []Source {
	seen := map[string]bool{}
	var sources []Source
	add := func(file string, line int, function string, expr string) {
		if function == "" || !s.languageEnabled(file) {
			return
		}
		for _, m := range s.Patterns.MatchKind(expr, s.Language(file), patterns.Source) {
			key := fmt.Sprintf("%s:%d:%s:%s", file, line, function, m.Pattern)
			if seen[key] {
				continue
			}
			seen[key] = true
			sources = append(sources, Source{
				Location: Location{File: file, Line: line, Function: function, Pattern: m.Pattern,
					Category: m.Category},
				Var:  m.Pattern,
				Expr: expr,
			})
		}
	}

	for _, k := range s.Facts.Functions() {
		for _, a := range s.Facts.Assignments(k) {
			add(a.File, a.Line, k.Function, a.SourceExpr)
		}
		for _, call := range s.Facts.Calls(k) {
			for _, arg := range call.Args {
				add(call.File, call.Line, k.Function, arg.ArgExpr)
			}
		}
		for _, r := range s.Facts.Returns(k) {
			add(r.File, r.Line, k.Function, r.ReturnExpr)
		}
	}
	for _, file := range s.Facts.Files() {
		for _, sym := range s.Facts.Symbols(file) {
			if sym.Kind != facts.SymbolProperty && sym.Kind != facts.SymbolCall && sym.Kind != facts.SymbolVariable {
				continue
			}
			if k := s.Facts.FunctionAt(file, sym.Line); k.IsSome() {
				add(file, sym.Line, k.Value().Function, sym.Name)
			}
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		return a.Pattern < b.Pattern
	})
	return sources
}

// DiscoverSinks returns the calls matching a sink pattern, sorted by position. Calls that resolve to a function of the
// fact cache are followed by the analysis and never treated as sinks, and neither are calls matching a source pattern.
func DiscoverSinks(s *AnalyzerState) []Sink {
	var sinks []Sink
	for _, k := range s.Facts.Functions() {
		if !s.languageEnabled(k.File) {
			continue
		}
		lang := s.Language(k.File)
		for _, call := range s.Facts.Calls(k) {
			if s.Facts.Resolve(call).IsSome() {
				continue
			}
			if _, isSource := s.Patterns.IsSource(call.Callee, lang); isSource {
				continue
			}
			m, ok := s.Patterns.IsSink(call.Callee, lang)
			if !ok {
				continue
			}
			sinks = append(sinks, Sink{
				Location: Location{File: call.File, Line: call.Line, Function: call.Caller, Pattern: m.Pattern,
					Category: m.Category},
				Call: call,
			})
		}
	}
	sort.Slice(sinks, func(i, j int) bool {
		if sinks[i].File != sinks[j].File {
			return sinks[i].File < sinks[j].File
		}
		if sinks[i].Line != sinks[j].Line {
			return sinks[i].Line < sinks[j].Line
		}
		return sinks[i].Call.Callee < sinks[j].Call.Callee
	})
	return sinks
}

func discover(s *AnalyzerState) *targets {
	t := &targets{
		sources: DiscoverSources(s),
		sinks:   DiscoverSinks(s),
		sinkOf:  map[*facts.Call]*Sink{},
	}
	for i := range t.sinks {
		t.sinkOf[t.sinks[i].Call] = &t.sinks[i]
	}
	return t
}
