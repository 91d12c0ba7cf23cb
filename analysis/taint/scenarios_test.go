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
	"io"
	"path/filepath"
	"testing"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/awslabs/argot-sast/analysis/patterns"
	"github.com/awslabs/argot-sast/internal/analysistest"
)

type expectedPath struct {
	source string
	sink   string
	hops   int
	track  string
	stack  string
	vuln   string
}

func runScenario(t *testing.T, name string) AnalysisResult {
	t.Helper()
	snapshot, cfg := analysistest.LoadTest(t, filepath.Join("testdata", name))
	registry, err := patterns.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("could not build registry: %v", err)
	}
	logger := config.NewLogGroupWithLevel(config.ErrLevel, io.Discard)
	state, err := NewAnalyzerState(cfg, logger, facts.NewCache(snapshot), registry)
	if err != nil {
		t.Fatalf("could not build analyzer state: %v", err)
	}
	res, err := Analyze(context.Background(), state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	return res
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name    string
		sources int
		sinks   int
		paths   []expectedPath
	}{
		{
			name:    "flask-app",
			sources: 2,
			sinks:   2,
			paths: []expectedPath{{
				source: "app/routes.py:3",
				sink:   "services/catalog.py:3",
				hops:   2,
				track:  TrackFlowInsensitive,
				stack:  "app/routes.py:search@4",
				vuln:   "SQL Injection",
			}},
		},
		{
			name:    "express-app",
			sources: 1,
			sinks:   2,
			paths: []expectedPath{{
				source: "routes/user.js:2",
				sink:   "routes/user.js:7",
				hops:   1,
				track:  TrackFlowSensitive,
				vuln:   "SQL Injection",
			}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := runScenario(t, test.name)
			if res.Summary.SourcesFound != test.sources || res.Summary.SinksFound != test.sinks {
				t.Errorf("expected %d sources and %d sinks, got %d and %d", test.sources, test.sinks,
					res.Summary.SourcesFound, res.Summary.SinksFound)
			}
			if len(res.Paths) != len(test.paths) {
				t.Fatalf("expected %d paths, got %v", len(test.paths), res.Paths)
			}
			for i, expected := range test.paths {
				p := res.Paths[i]
				if p.Source.String() != expected.source || p.Sink.String() != expected.sink {
					t.Errorf("expected %s -> %s, got %s", expected.source, expected.sink, p)
				}
				if p.HopCount != expected.hops || p.Track != expected.track {
					t.Errorf("expected %d hops on track %s, got %s", expected.hops, expected.track, p)
				}
				if sig := Signature(p.CallStack); sig != expected.stack {
					t.Errorf("expected call stack %q, got %q", expected.stack, sig)
				}
				if p.VulnerabilityType != expected.vuln || p.Severity != patterns.SeverityCritical {
					t.Errorf("expected a critical %s, got %s %s", expected.vuln, p.Severity, p.VulnerabilityType)
				}
			}
		})
	}
}

func TestGuardedSinkConditions(t *testing.T) {
	res := runScenario(t, "express-app")
	if len(res.Paths) != 1 {
		t.Fatalf("expected one path, got %v", res.Paths)
	}
	p := res.Paths[0]
	if !p.FlowSensitive || p.ConditionSummary != "not debug" || p.PathComplexity != 1 {
		t.Errorf("expected the flow-sensitive path under 'not debug', got %q (complexity %d)",
			p.ConditionSummary, p.PathComplexity)
	}
}
