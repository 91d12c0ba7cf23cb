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
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/analysis/patterns"
	"github.com/awslabs/argot-sast/internal/analysistest"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestState(t *testing.T, b *analysistest.Builder, setup func(cfg *config.Config)) *AnalyzerState {
	t.Helper()
	cfg := config.NewDefault()
	cfg.Workers = 2
	if setup != nil {
		setup(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	registry, err := patterns.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("could not build registry: %v", err)
	}
	logger := config.NewLogGroupWithLevel(config.ErrLevel, io.Discard)
	state, err := NewAnalyzerState(cfg, logger, b.Cache(), registry)
	if err != nil {
		t.Fatalf("could not build analyzer state: %v", err)
	}
	return state
}

func runAnalysis(t *testing.T, b *analysistest.Builder, setup func(cfg *config.Config)) AnalysisResult {
	t.Helper()
	res, err := Analyze(context.Background(), newTestState(t, b, setup))
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	return res
}

func flowSensitiveOnly(cfg *config.Config) {
	cfg.EnableFlowInsensitive = false
	cfg.MultiHop = false
}

func flowInsensitiveOnly(cfg *config.Config) {
	cfg.EnableFlowSensitive = false
	cfg.MultiHop = false
}

func directFlow() *analysistest.Builder {
	b := analysistest.NewBuilder()
	b.Func("ctrl.py", "get_user", 1).
		Assign(10, "user_id", "request.args.get('id')").
		Call(12, "cursor.execute", `"SELECT * FROM users WHERE id = " + user_id`)
	return b
}

// routerServiceDB is a flow from a request parameter in router.py through service.py to a query in db.py
func routerServiceDB() *analysistest.Builder {
	b := analysistest.NewBuilder()
	b.Func("router.py", "handle", 1).
		Assign(2, "user_id", "request.args.get('id')").
		CallIn(3, "service.py", "process", "user_id")
	b.Func("service.py", "process", 1, "x").
		CallIn(2, "db.py", "query", "x")
	b.Func("db.py", "query", 1, "x").
		Call(2, "cursor.execute", `"SELECT * FROM t WHERE id = " + x`)
	return b
}

func TestDirectFlow(t *testing.T) {
	res := runAnalysis(t, directFlow(), nil)
	if len(res.Sources) != 1 || len(res.Sinks) != 1 {
		t.Fatalf("expected one source and one sink, got %v and %v", res.Sources, res.Sinks)
	}
	if len(res.Paths) != 1 {
		t.Fatalf("expected exactly one path, got %v", res.Paths)
	}
	p := res.Paths[0]
	if p.HopCount != 1 {
		t.Errorf("expected a direct flow of 1 hop, got %d", p.HopCount)
	}
	if p.Source.File != "ctrl.py" || p.Source.Line != 10 || p.Sink.Line != 12 {
		t.Errorf("unexpected source or sink: %s", p)
	}
	if p.Track != TrackIntraprocedural || len(p.CallStack) != 0 {
		t.Errorf("expected an intraprocedural path without call stack, got %s with %v", p.Track, p.CallStack)
	}
	if p.Severity != patterns.SeverityCritical || p.VulnerabilityType != "SQL Injection" {
		t.Errorf("expected a critical SQL injection, got %s %s", p.Severity, p.VulnerabilityType)
	}
	if p.Path[0].Type != StepSource || p.Path[len(p.Path)-1].Type != StepSinkReached {
		t.Errorf("path should start at the source and end at the sink: %v", p.Path)
	}
	if res.Summary.PathsFound != 1 || res.Summary.HopDistribution[1] != 1 ||
		res.Summary.VulnerabilitiesByType["SQL Injection"] != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
	if res.RunID == "" {
		t.Errorf("run should have an id")
	}
}

func TestSameShapeSourcesAreRelated(t *testing.T) {
	b := analysistest.NewBuilder()
	b.Func("ctrl.py", "search", 1).
		Assign(10, "term", "request.args['q']").
		Call(12, "os.system", "request.args['q']")
	res := runAnalysis(t, b, nil)
	if len(res.Sources) != 2 {
		t.Fatalf("expected two sources, got %v", res.Sources)
	}
	if len(res.Paths) != 1 {
		t.Fatalf("expected one path, got %v", res.Paths)
	}
	p := res.Paths[0]
	if p.Source.Line != 10 || p.Sink.Line != 12 {
		t.Errorf("the earliest source should be the primary one, got %s", p)
	}
	if len(p.RelatedSources) != 1 || p.RelatedSources[0].Line != 12 {
		t.Errorf("expected the source of line 12 as related source, got %v", p.RelatedSources)
	}
}

func TestCrossFileFlow(t *testing.T) {
	res := runAnalysis(t, routerServiceDB(), nil)
	if len(res.Sinks) != 1 {
		t.Fatalf("calls resolving to analyzed functions should not be sinks, got %v", res.Sinks)
	}
	if len(res.Paths) != 1 {
		t.Fatalf("expected one path, got %v", res.Paths)
	}
	p := res.Paths[0]
	if p.HopCount != 3 {
		t.Errorf("expected 3 hops, got %d: %v", p.HopCount, p.Path)
	}
	if len(p.CallStack) != 2 || p.CallStack[0].File != "router.py" || p.CallStack[1].File != "service.py" {
		t.Errorf("expected the call stack router.py > service.py, got %v", p.CallStack)
	}
	if p.CallStack[0].Line != 3 || p.CallStack[1].Line != 2 {
		t.Errorf("unexpected call site lines in %v", p.CallStack)
	}
	if p.Sink.File != "db.py" {
		t.Errorf("unexpected sink %v", p.Sink)
	}
}

func TestMultiHopAlone(t *testing.T) {
	res := runAnalysis(t, routerServiceDB(), func(cfg *config.Config) {
		cfg.EnableFlowInsensitive = false
		cfg.EnableFlowSensitive = false
	})
	if len(res.Paths) != 1 {
		t.Fatalf("expected one path from caller discovery, got %v", res.Paths)
	}
	p := res.Paths[0]
	if p.Track != TrackMultiHop || p.HopCount != 3 || len(p.CallStack) != 2 {
		t.Errorf("unexpected multi-hop path %s with stack %v", p, p.CallStack)
	}
	if p.Source.File != "router.py" || p.Source.Line != 2 {
		t.Errorf("unexpected source %v", p.Source)
	}
}

func TestCallersAreNotCollapsed(t *testing.T) {
	b := analysistest.NewBuilder()
	a := b.Func("a.py", "a", 1).
		Assign(2, "v", "request.form['q']").
		CallIn(3, "h.py", "h", "v").
		CallIn(4, "h.py", "h", "v")
	a.Block(facts.BlockEntry, 1, 5, "")
	bf := b.Func("b.py", "b", 1).
		Assign(2, "w", "request.form['q']").
		CallIn(3, "h.py", "h", "w")
	bf.Block(facts.BlockEntry, 1, 4, "")
	h := b.Func("h.py", "h", 1, "p").
		Call(2, "os.system", `"ls " + p`)
	h.Block(facts.BlockEntry, 1, 3, "")

	for _, test := range []struct {
		name          string
		setup         func(cfg *config.Config)
		flowSensitive bool
	}{
		{"default", nil, true},
		{"flow-sensitive", flowSensitiveOnly, true},
		{"flow-insensitive", flowInsensitiveOnly, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			res := runAnalysis(t, b, test.setup)
			signatures := map[string]bool{}
			for _, p := range res.Paths {
				if p.HopCount != 2 || p.FlowSensitive != test.flowSensitive {
					t.Errorf("expected 2 hops with flow_sensitive=%v, got %s", test.flowSensitive, p)
				}
				signatures[Signature(p.CallStack)] = true
			}
			expected := []string{"a.py:a@3", "a.py:a@4", "b.py:b@3"}
			if len(res.Paths) != len(expected) {
				t.Fatalf("expected %d paths, got %v", len(expected), res.Paths)
			}
			for _, sig := range expected {
				if !signatures[sig] {
					t.Errorf("missing path with call stack %s", sig)
				}
			}
		})
	}
}

func TestSanitizerInterruptsFlow(t *testing.T) {
	b := analysistest.NewBuilder()
	b.Func("s.py", "page", 1).
		Assign(2, "name", "request.args.get('name')").
		Assign(3, "safe", "html.escape(name)").
		Call(4, "render_template_string", "safe")
	b.Func("s.py", "cmd", 20).
		Assign(21, "arg", "request.args.get('a')").
		Call(22, "validate", "arg").
		Call(23, "os.system", "arg")
	res := runAnalysis(t, b, nil)
	if len(res.Paths) != 0 {
		t.Errorf("sanitized flows should not be reported, got %v", res.Paths)
	}
}

func TestSanitizedAccessPath(t *testing.T) {
	b := analysistest.NewBuilder()
	b.Func("v.py", "run", 1).
		Call(2, "validate", "request.form['q']").
		Call(3, "os.system", "request.form['q']")
	b.Func("v.py", "unchecked", 10).
		Call(11, "os.system", "request.form['q']")
	b.Func("app.js", "create", 1).
		Call(2, "validateBody", "req.body").
		Call(3, "db.query", "req.body.sql")
	b.Func("caller.py", "handle", 1).
		Assign(2, "v", "request.form['q']").
		Call(3, "validate", "v").
		CallIn(4, "h.py", "h", "v")
	b.Func("h.py", "h", 1, "p").
		Call(2, "os.system", `"ls " + p`)

	for _, setup := range []func(cfg *config.Config){nil, flowSensitiveOnly, flowInsensitiveOnly} {
		res := runAnalysis(t, b, setup)
		if len(res.Paths) != 1 {
			t.Fatalf("only the unchecked flow should be reported, got %v", res.Paths)
		}
		if p := res.Paths[0]; p.Source.Function != "unchecked" || p.Sink.Line != 11 {
			t.Errorf("unexpected path %s", p)
		}
	}
}

func TestAmbiguousCalleeStaysASink(t *testing.T) {
	b := analysistest.NewBuilder()
	b.Func("routes.js", "list", 1).
		CallIn(2, "db.js", "db.query", "req.query.filter")
	b.Func("db.js", "Users.query", 1, "sql")
	b.Func("db.js", "Orders.query", 10, "sql")
	res := runAnalysis(t, b, nil)
	if len(res.Sinks) != 1 || res.Sinks[0].Call.Callee != "db.query" {
		t.Fatalf("an unresolved db.query should be a sink, got %v", res.Sinks)
	}
	if len(res.Paths) != 1 || res.Paths[0].HopCount != 1 || len(res.Paths[0].CallStack) != 0 {
		t.Errorf("expected a direct flow into db.query, got %v", res.Paths)
	}
}

func TestStrongUpdate(t *testing.T) {
	b := analysistest.NewBuilder()
	b.Func("u.py", "f", 1).
		Assign(2, "x", "request.args['x']").
		Assign(3, "x", "'constant'").
		Call(4, "os.system", "x")
	res := runAnalysis(t, b, flowInsensitiveOnly)
	if len(res.Paths) != 0 {
		t.Errorf("reassigning a clean value should clear the taint, got %v", res.Paths)
	}
}

func chain(n int) *analysistest.Builder {
	b := analysistest.NewBuilder()
	b.Func("c0.py", "f0", 1).
		Assign(2, "x", "request.args['q']").
		CallIn(3, "c1.py", "f1", "x")
	for i := 1; i < n; i++ {
		b.Func(fmt.Sprintf("c%d.py", i), fmt.Sprintf("f%d", i), 1, "x").
			CallIn(2, fmt.Sprintf("c%d.py", i+1), fmt.Sprintf("f%d", i+1), "x")
	}
	b.Func(fmt.Sprintf("c%d.py", n), fmt.Sprintf("f%d", n), 1, "x").
		Call(2, "os.system", "x")
	return b
}

// chainWithCFG is chain(n) where every function has a control-flow graph
func chainWithCFG(n int) *analysistest.Builder {
	b := chain(n)
	for i := 0; i <= n; i++ {
		b.In(fmt.Sprintf("c%d.py", i), fmt.Sprintf("f%d", i)).Block(facts.BlockEntry, 1, 3, "")
	}
	return b
}

func TestDepthCeiling(t *testing.T) {
	for _, test := range []struct {
		name          string
		build         func(n int) *analysistest.Builder
		setup         func(cfg *config.Config)
		flowSensitive bool
	}{
		{"default", chain, nil, false},
		{"flow-sensitive", chainWithCFG, flowSensitiveOnly, true},
	} {
		t.Run(test.name, func(t *testing.T) {
			// 7 argument passes: 8 hops
			res := runAnalysis(t, test.build(7), test.setup)
			if len(res.Paths) != 0 {
				t.Errorf("no path should exceed the default depth, got %v", res.Paths)
			}
			if !res.Summary.DepthLimitReached || res.Summary.LimitReachedMessage == "" {
				t.Errorf("the depth limit should be reported: %+v", res.Summary)
			}

			res = runAnalysis(t, test.build(7), func(cfg *config.Config) {
				if test.setup != nil {
					test.setup(cfg)
				}
				cfg.MaxDepth = 10
			})
			if len(res.Paths) != 1 || res.Paths[0].HopCount != 8 {
				t.Fatalf("expected one path of 8 hops with a larger depth, got %v", res.Paths)
			}
			if res.Paths[0].FlowSensitive != test.flowSensitive {
				t.Errorf("expected flow_sensitive=%v, got %s", test.flowSensitive, res.Paths[0])
			}
			if res.Summary.DepthLimitReached {
				t.Errorf("no limit should be reached")
			}

			res = runAnalysis(t, test.build(4), test.setup)
			if len(res.Paths) != 1 || res.Paths[0].HopCount != 5 {
				t.Errorf("a path of exactly the maximum depth should be reported, got %v", res.Paths)
			}
		})
	}
}

func TestIdempotence(t *testing.T) {
	b := routerServiceDB()
	b.Func("a.py", "a", 1).
		Assign(2, "v", "request.form['q']").
		CallIn(3, "service.py", "process", "v").
		CallIn(4, "db.py", "query", "v")
	setup := func(cfg *config.Config) { cfg.Workers = 4 }
	first, err := json.Marshal(runAnalysis(t, b, setup).Paths)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := json.Marshal(runAnalysis(t, b, setup).Paths)
		if err != nil {
			t.Fatal(err)
		}
		if string(again) != string(first) {
			t.Fatalf("results differ between runs:\n%s\n%s", first, again)
		}
	}
}

// guarded builds a function whose sink is only reachable when cond holds
func guarded(cond string, condValue string) *analysistest.Builder {
	b := analysistest.NewBuilder()
	f := b.Func("g.py", "f", 1).
		Assign(2, "data", "request.args['q']").
		Assign(3, "flag", condValue).
		Call(4, "os.system", "data")
	entry := f.Block(facts.BlockEntry, 1, 3, cond)
	then := f.Block("body", 4, 4, "")
	exit := f.Block(facts.BlockExit, 5, 5, "")
	f.Edge(entry, then, facts.EdgeTrue).
		Edge(entry, exit, facts.EdgeFalse).
		Edge(then, exit, "normal")
	return b
}

func TestInfeasibleBranch(t *testing.T) {
	res := runAnalysis(t, guarded("flag", "False"), flowSensitiveOnly)
	if len(res.Paths) != 0 {
		t.Errorf("a sink guarded by an always-false flag should not be reached, got %v", res.Paths)
	}
	res = runAnalysis(t, guarded("False", "False"), flowSensitiveOnly)
	if len(res.Paths) != 0 {
		t.Errorf("a sink guarded by a false literal should not be reached, got %v", res.Paths)
	}
	res = runAnalysis(t, guarded("flag", "False"), flowInsensitiveOnly)
	if len(res.Paths) != 1 {
		t.Errorf("the flow-insensitive engine ignores branches and should report the sink, got %v", res.Paths)
	}
}

func TestBranchConditionsRecorded(t *testing.T) {
	res := runAnalysis(t, guarded("flag", "settings.DEBUG"), flowSensitiveOnly)
	if len(res.Paths) != 1 {
		t.Fatalf("expected one path, got %v", res.Paths)
	}
	p := res.Paths[0]
	if !p.FlowSensitive || p.Track != TrackFlowSensitive {
		t.Errorf("expected a flow-sensitive path, got %s", p)
	}
	if len(p.Conditions) != 1 || p.Conditions[0] != "flag" || p.PathComplexity != 1 || p.ConditionSummary != "flag" {
		t.Errorf("unexpected conditions %v (%d, %q)", p.Conditions, p.PathComplexity, p.ConditionSummary)
	}
}

func TestValidatorGuard(t *testing.T) {
	b := analysistest.NewBuilder()
	f := b.Func("v.js", "handler", 1).
		Assign(2, "name", "req.query.name").
		Call(3, "res.send", "name")
	entry := f.Block(facts.BlockEntry, 1, 2, "validateQuery(name)")
	then := f.Block("body", 3, 3, "")
	exit := f.Block(facts.BlockExit, 4, 4, "")
	f.Edge(entry, then, facts.EdgeTrue).Edge(entry, exit, facts.EdgeFalse).Edge(then, exit, "normal")

	res := runAnalysis(t, b, flowSensitiveOnly)
	if len(res.Paths) != 0 {
		t.Errorf("a value checked by a validator should be clean in the guarded branch, got %v", res.Paths)
	}
}

func TestJoinMergesTaint(t *testing.T) {
	b := analysistest.NewBuilder()
	f := b.Func("j.py", "f", 1).
		Assign(2, "data", "request.args['q']").
		Assign(4, "out", "data").
		Assign(6, "out", "'safe'").
		Call(8, "os.system", "out")
	entry := f.Block(facts.BlockEntry, 1, 3, "mode")
	left := f.Block("body", 4, 5, "")
	right := f.Block("body", 6, 7, "")
	join := f.Block("body", 8, 8, "")
	f.Edge(entry, left, facts.EdgeTrue).
		Edge(entry, right, facts.EdgeFalse).
		Edge(left, join, "normal").
		Edge(right, join, "normal")

	res := runAnalysis(t, b, flowSensitiveOnly)
	if len(res.Paths) != 1 {
		t.Fatalf("taint from one branch should reach the join, got %v", res.Paths)
	}
	if !res.Paths[0].FlowSensitive {
		t.Errorf("expected a flow-sensitive path")
	}
}

func TestLoopBackToSourceBlock(t *testing.T) {
	b := analysistest.NewBuilder()
	f := b.Func("l.py", "poll", 1).
		Assign(2, "cmd", "''").
		Call(3, "os.system", "cmd").
		Assign(4, "cmd", "request.args['next']")
	entry := f.Block(facts.BlockEntry, 1, 2, "")
	loop := f.Block("loop", 3, 4, "more")
	exit := f.Block(facts.BlockExit, 5, 5, "")
	f.Edge(entry, loop, "normal").
		Edge(loop, loop, facts.EdgeTrue).
		Edge(loop, exit, facts.EdgeFalse)

	res := runAnalysis(t, b, flowSensitiveOnly)
	if len(res.Paths) != 1 {
		t.Fatalf("the sink before the source in the loop should be reached on the next iteration, got %v", res.Paths)
	}
	p := res.Paths[0]
	if !p.FlowSensitive || p.Source.Line != 4 || p.Sink.Line != 3 {
		t.Errorf("unexpected path %s", p)
	}
	if len(p.Conditions) != 1 || p.Conditions[0] != "more" {
		t.Errorf("expected the loop condition, got %v", p.Conditions)
	}
	if res.Summary.LoopBlocksVisited == 0 {
		t.Errorf("the loop block should be counted")
	}
}

func TestCFGFallbackIsFlagged(t *testing.T) {
	res := runAnalysis(t, routerServiceDB(), flowSensitiveOnly)
	if len(res.Paths) != 1 {
		t.Fatalf("expected one path, got %v", res.Paths)
	}
	if res.Paths[0].FlowSensitive {
		t.Errorf("a path through functions without control-flow graph is not flow-sensitive")
	}
	if res.Summary.CFGFallbacks == 0 {
		t.Errorf("the fallback should be counted")
	}
}

func TestCalleeSummary(t *testing.T) {
	b := analysistest.NewBuilder()
	f := b.Func("m.py", "main", 1).
		Assign(2, "q", "request.args['q']").
		CallIn(3, "m.py", "clean_up", "q").
		Assign(3, "r", "clean_up(q)").
		Call(4, "os.system", "r")
	f.Block(facts.BlockEntry, 1, 5, "")
	b.Func("m.py", "clean_up", 10, "s").
		Assign(11, "t", "s.strip()").
		Return(12, "t", "t")

	res := runAnalysis(t, b, flowSensitiveOnly)
	if len(res.Paths) != 1 {
		t.Fatalf("expected one path through the callee, got %v", res.Paths)
	}
	p := res.Paths[0]
	if !p.FlowSensitive || p.HopCount != 3 || len(p.CallStack) != 0 {
		t.Errorf("expected a flow-sensitive path of 3 hops returning to main, got %s %v", p, p.CallStack)
	}

	res = runAnalysis(t, b, flowInsensitiveOnly)
	if len(res.Paths) != 1 || res.Paths[0].HopCount != 3 {
		t.Errorf("the flow-insensitive engine should find the same path, got %v", res.Paths)
	}
}

func TestRecursionTerminates(t *testing.T) {
	b := analysistest.NewBuilder()
	b.Func("rec.py", "walk", 1, "node").
		CallIn(2, "rec.py", "walk", "node").
		Call(3, "os.system", "node")
	b.Func("rec.py", "main", 20).
		Assign(21, "n", "request.args['n']").
		CallIn(22, "rec.py", "walk", "n")
	res := runAnalysis(t, b, nil)
	if len(res.Paths) == 0 {
		t.Fatalf("expected paths through the recursive function")
	}
	if res.Summary.RecursionGuardHits == 0 {
		t.Errorf("the recursion guard should have been used")
	}
	groups := res.Summary.RecursiveFunctionGroups
	if len(groups) != 1 || len(groups[0]) != 1 || groups[0][0] != "rec.py:walk" {
		t.Errorf("expected walk to be reported as recursive, got %v", groups)
	}
}

func TestExcludedFiles(t *testing.T) {
	b := directFlow()
	b.Func("vendor/lib.py", "f", 1).
		Assign(2, "x", "request.args['x']").
		Call(3, "os.system", "x")
	res := runAnalysis(t, b, func(cfg *config.Config) { cfg.Exclude = []string{"vendor/"} })
	for _, p := range res.Paths {
		if p.Source.File == "vendor/lib.py" {
			t.Errorf("excluded file should not be analyzed: %s", p)
		}
	}
	if len(res.Paths) != 1 {
		t.Errorf("expected the path of ctrl.py only, got %v", res.Paths)
	}
}

func TestLanguageFilter(t *testing.T) {
	res := runAnalysis(t, directFlow(), func(cfg *config.Config) { cfg.Languages = []string{"javascript"} })
	if len(res.Sources) != 0 || len(res.Paths) != 0 {
		t.Errorf("python facts should be ignored when only javascript is enabled")
	}
}

func TestNodeBudget(t *testing.T) {
	res := runAnalysis(t, chain(3), func(cfg *config.Config) { cfg.NodeBudget = 1 })
	if !res.Summary.BudgetLimitReached {
		t.Errorf("a budget of one node should be exhausted")
	}
}

func TestCancelledContext(t *testing.T) {
	state := newTestState(t, routerServiceDB(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Analyze(ctx, state)
	if err != nil {
		t.Fatalf("a cancelled analysis should return partial results, got %v", err)
	}
	if !res.Summary.BudgetLimitReached || len(res.Paths) != 0 {
		t.Errorf("expected an interrupted run without paths, got %+v", res.Summary)
	}
}

func TestMaxPaths(t *testing.T) {
	b := analysistest.NewBuilder()
	f := b.Func("many.py", "f", 1)
	for i := 0; i < 4; i++ {
		f.Assign(10*i+2, fmt.Sprintf("v%d", i), "request.args['q']").
			Call(10*i+3, "os.system", fmt.Sprintf("v%d", i))
	}
	res := runAnalysis(t, b, func(cfg *config.Config) { cfg.MaxPaths = 2 })
	if len(res.Paths) != 2 || res.Summary.PathsTruncated == 0 {
		t.Errorf("expected 2 paths and a truncation, got %d paths, %+v", len(res.Paths), res.Summary)
	}
}

func TestMetrics(t *testing.T) {
	res := runAnalysis(t, directFlow(), nil)
	if v := testutil.ToFloat64(res.Metrics.PathsTotal.WithLabelValues(TrackIntraprocedural)); v != 1 {
		t.Errorf("expected one intraprocedural path in the metrics, got %v", v)
	}
	if v := testutil.ToFloat64(res.Metrics.SeedsTotal); v != float64(res.Summary.SeedsProcessed) {
		t.Errorf("seed counter %v does not match the summary %d", v, res.Summary.SeedsProcessed)
	}
	if v := testutil.ToFloat64(res.Metrics.NodesTotal); v == 0 {
		t.Errorf("some nodes should have been expanded")
	}
}

func TestNewAnalyzerStateRequiresFrozenRegistry(t *testing.T) {
	cfg := config.NewDefault()
	if _, err := NewAnalyzerState(cfg, nil, directFlow().Cache(), patterns.NewEmptyRegistry()); err == nil {
		t.Errorf("an unfrozen registry should be rejected")
	}
	if _, err := NewAnalyzerState(cfg, nil, nil, nil); err == nil {
		t.Errorf("missing inputs should be rejected")
	}
}
