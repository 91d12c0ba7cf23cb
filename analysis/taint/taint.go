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
	"fmt"
	"runtime"
	"time"

	"github.com/awslabs/argot-sast/internal/formatutil"
	"github.com/awslabs/argot-sast/internal/funcutil"
	"github.com/awslabs/argot-sast/internal/graphutil"
	"github.com/google/uuid"
)

// AnalysisResult contains the result of the taint analysis of a fact cache
type AnalysisResult struct {
	// RunID identifies the run in the reports
	RunID string

	// State is the analyzer state the analysis ran with
	State *AnalyzerState

	// Sources and Sinks are the seeds discovered in the facts
	Sources []Source
	Sinks   []Sink

	// Paths are the deduplicated taint paths, sorted by sink and source position
	Paths []*TaintPath

	// Summary is the run-level summary
	Summary Summary

	// Metrics holds the Prometheus collectors of the run
	Metrics *Metrics
}

// numWorkers returns the number of goroutines processing seeds
func numWorkers(workers int) int {
	if workers > 0 {
		return workers
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		return 1
	}
	return n
}

// Analyze runs the taint analysis over the fact cache of the state. The tracks enabled in the configuration are run
// for every seed in parallel, and their paths are assembled into one deduplicated list.
// The analysis stops early when ctx is done or the timeout of the configuration expires: the paths found so far are
// returned, and the summary is flagged with budget_limit_reached.
func Analyze(ctx context.Context, state *AnalyzerState) (AnalysisResult, error) {
	if state == nil {
		return AnalysisResult{}, fmt.Errorf("no analyzer state")
	}
	cfg := state.Config
	logger := state.Logger
	start := time.Now()

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return AnalysisResult{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := AnalysisResult{
		RunID:   uuid.NewString(),
		State:   state,
		Summary: newSummary(),
		Metrics: NewMetrics(),
	}

	logger.Infof("Gathering sources and sinks...")
	t := discover(state)
	result.Sources = t.sources
	result.Sinks = t.sinks
	result.Summary.SourcesFound = len(t.sources)
	result.Summary.SinksFound = len(t.sinks)
	logger.Infof("Found %d sources and %d sinks in %s", len(t.sources), len(t.sinks), state.Facts.Stats())

	workers := numWorkers(cfg.Workers)
	var raw []*TaintPath

	if cfg.EnableFlowInsensitive || cfg.EnableFlowSensitive {
		logger.Infof("Propagating taint from %d sources with %d workers...", len(t.sources), workers)
		results := funcutil.MapParallel(t.sources, func(src Source) seedResult {
			return runSource(ctx, state, t, src)
		}, workers)
		for _, r := range results {
			result.Summary.addSeed(r)
			raw = append(raw, r.paths...)
		}
	}

	if cfg.MultiHop {
		sinks := make([]*Sink, len(t.sinks))
		for i := range t.sinks {
			sinks[i] = &t.sinks[i]
		}
		logger.Infof("Discovering callers of %d sinks...", len(sinks))
		results := funcutil.MapParallel(sinks, func(sink *Sink) seedResult {
			r := newSeedRun(ctx, state, t)
			r.runMultiHop(sink)
			return r.result
		}, workers)
		for _, r := range results {
			result.Summary.addSeed(r)
			raw = append(raw, r.paths...)
		}
	}

	if ctx.Err() != nil {
		logger.Warnf("Analysis interrupted: %v", ctx.Err())
		result.Summary.BudgetLimitReached = true
	}

	paths := Assemble(raw)
	if cfg.ExceedsMaxPaths(len(paths)) {
		result.Summary.PathsTruncated = len(paths) - cfg.MaxPaths
		paths = paths[:cfg.MaxPaths]
	}
	result.Paths = paths
	result.Summary.addPaths(paths)
	result.Summary.setLimitMessage(state.MaxDepth())

	for _, group := range graphutil.RecursiveGroups(state.Facts.CallGraph()) {
		result.Summary.RecursiveFunctionGroups = append(result.Summary.RecursiveFunctionGroups,
			funcutil.Map(group, func(k graphutil.FuncKey) string { return k.String() }))
	}

	result.Summary.DurationSeconds = time.Since(start).Seconds()
	result.Metrics.Record(result.Summary, paths)
	if cfg.MetricsFile != "" {
		if err := result.Metrics.WriteToFile(cfg.MetricsFile); err != nil {
			logger.Warnf("%v", err)
			state.AddError("metrics", err)
		}
	}

	if result.Summary.LimitReachedMessage != "" {
		logger.Warnf("%s", formatutil.Yellow(result.Summary.LimitReachedMessage))
	}
	logger.Infof("Taint analysis: %s", result.Summary)
	logger.Infof("... done (%.2f s).", result.Summary.DurationSeconds)
	return result, nil
}

// runSource runs the forward tracks enabled in the configuration from one source
func runSource(ctx context.Context, state *AnalyzerState, t *targets, src Source) seedResult {
	state.Logger.Debugf("%s", formatutil.Bold("*** NEW SOURCE ***"))
	state.Logger.Debugf("%s: %s (%s)", src.Location, src.Expr, src.Category)

	var res seedResult
	if state.sanitizedBetween(src.Key(), src.Var, 0, src.Line) {
		state.Logger.Debugf("Skipping source %s: %s is sanitized earlier in %s", src.Location, src.Var, src.Function)
		return res
	}
	if state.Config.EnableFlowInsensitive {
		r := newSeedRun(ctx, state, t)
		r.runFlowInsensitive(src.Location, &visitorNode{
			key:   src.Key(),
			v:     src.Var,
			from:  src.Line,
			depth: 1,
			steps: []Step{src.step()},
		}, false, nil)
		res.merge(r.result)
	}
	if state.Config.EnableFlowSensitive {
		r := newSeedRun(ctx, state, t)
		r.runFlowSensitive(src.Location, &fsEntry{
			key:     src.Key(),
			tainted: funcutil.SetOf(src.Var),
			from:    src.Line,
			depth:   1,
			steps:   []Step{src.step()},
		})
		res.merge(r.result)
	}
	return res
}
