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

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/patterns"
	"github.com/awslabs/argot-sast/analysis/taint"
	"github.com/awslabs/argot-sast/internal/analysistest"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

func analyzeFixture(t *testing.T, cfg *config.Config) taint.AnalysisResult {
	t.Helper()
	b := analysistest.NewBuilder()
	b.Func("router.py", "handle", 1).
		Assign(2, "user_id", "request.args.get('id')").
		CallIn(3, "db.py", "query", "user_id")
	b.Func("db.py", "query", 1, "x").
		Call(2, "cursor.execute", `"SELECT * FROM t WHERE id = " + x`)
	b.Func("ctrl.py", "run", 1).
		Assign(2, "cmd", "request.form['cmd']").
		Call(3, "os.system", "cmd")

	registry, err := patterns.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("could not build registry: %v", err)
	}
	logger := config.NewLogGroupWithLevel(config.ErrLevel, io.Discard)
	state, err := taint.NewAnalyzerState(cfg, logger, b.Cache(), registry)
	if err != nil {
		t.Fatalf("could not build analyzer state: %v", err)
	}
	res, err := taint.Analyze(context.Background(), state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if len(res.Paths) != 2 {
		t.Fatalf("expected two paths in fixture, got %v", res.Paths)
	}
	return res
}

func TestEncodeValidDocument(t *testing.T) {
	res := analyzeFixture(t, config.NewDefault())
	b, err := NewDocument(res).Encode()
	if err != nil {
		t.Fatalf("document should be valid: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("could not decode document: %v", err)
	}
	for _, field := range []string{"run_id", "taint_paths", "summary"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("missing field %s in document", field)
		}
	}
	summary := decoded["summary"].(map[string]any)
	if summary["paths_found"].(float64) != 2 {
		t.Errorf("expected 2 paths in summary, got %v", summary["paths_found"])
	}
	hops := summary["hop_distribution"].(map[string]any)
	if hops["1"].(float64) != 1 || hops["2"].(float64) != 1 {
		t.Errorf("unexpected hop distribution %v", hops)
	}
}

func TestEmptyResultIsValid(t *testing.T) {
	doc := NewDocument(taint.AnalysisResult{RunID: "empty"})
	if _, err := doc.Encode(); err != nil {
		t.Errorf("empty document should be valid: %v", err)
	}
}

func TestValidateRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"run_id": `,
		"missing summary": `{"run_id": "x", "taint_paths": []}`,
		"empty run id": `{"run_id": "", "taint_paths": [], "summary": {"sources_found": 0, "sinks_found": 0,
			"paths_found": 0, "total_vulnerabilities": 0, "vulnerabilities_by_type": {}, "hop_distribution": {},
			"depth_limit_reached": false, "budget_limit_reached": false, "recursive_function_groups": [],
			"duration_seconds": 0}}`,
		"bad hop key": `{"run_id": "x", "taint_paths": [], "summary": {"sources_found": 0, "sinks_found": 0,
			"paths_found": 0, "total_vulnerabilities": 0, "vulnerabilities_by_type": {}, "hop_distribution": {"a": 1},
			"depth_limit_reached": false, "budget_limit_reached": false, "recursive_function_groups": [],
			"duration_seconds": 0}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if err := Validate([]byte(doc)); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestSarif(t *testing.T) {
	res := analyzeFixture(t, config.NewDefault())
	var buf bytes.Buffer
	if err := WriteSarif(&buf, NewDocument(res)); err != nil {
		t.Fatalf("could not write sarif: %v", err)
	}
	var log sarif.Report
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("could not read back sarif: %v", err)
	}
	if len(log.Runs) != 1 {
		t.Fatalf("expected one run, got %d", len(log.Runs))
	}
	run := log.Runs[0]
	if len(run.Tool.Driver.Rules) != 2 {
		t.Errorf("expected one rule per vulnerability type, got %d", len(run.Tool.Driver.Rules))
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected one result per path, got %d", len(run.Results))
	}
	for _, r := range run.Results {
		if r.RuleID == nil || !strings.HasPrefix(*r.RuleID, "argot/") {
			t.Errorf("unexpected rule id %v", r.RuleID)
		}
		if r.Level == nil || *r.Level != "error" {
			t.Errorf("critical findings should be errors, got %v", r.Level)
		}
		if len(r.CodeFlows) != 1 || len(r.CodeFlows[0].ThreadFlows) != 1 {
			t.Fatalf("expected one code flow per result")
		}
		if len(r.CodeFlows[0].ThreadFlows[0].Locations) < 2 {
			t.Errorf("code flow should list the steps of the path")
		}
	}
}

func TestRuleIDAndLevels(t *testing.T) {
	if id := RuleID("SQL Injection"); id != "argot/sql-injection" {
		t.Errorf("unexpected rule id %s", id)
	}
	levels := map[string]string{
		patterns.SeverityCritical: "error",
		patterns.SeverityHigh:     "error",
		patterns.SeverityMedium:   "warning",
		patterns.SeverityLow:      "note",
		"":                        "none",
	}
	for severity, level := range levels {
		if l := SarifLevel(severity); l != level {
			t.Errorf("severity %q: expected level %s, got %s", severity, level, l)
		}
	}
}

func TestWriteReports(t *testing.T) {
	cfg := config.NewDefault()
	cfg.ReportsDir = t.TempDir()
	cfg.ReportPaths = true
	cfg.ReportSarif = true
	res := analyzeFixture(t, cfg)
	written, err := Write(cfg, config.NewLogGroupWithLevel(config.ErrLevel, io.Discard), res)
	if err != nil {
		t.Fatalf("could not write reports: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected two report files, got %v", written)
	}
	for _, name := range written {
		b, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("could not read report %s: %v", name, err)
		}
		if strings.HasSuffix(name, ".json") {
			if err := Validate(b); err != nil {
				t.Errorf("written report is invalid: %v", err)
			}
		}
	}
}
