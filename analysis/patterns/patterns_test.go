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

package patterns

import (
	"testing"

	"github.com/awslabs/argot-sast/analysis/config"
)

func TestMatchers(t *testing.T) {
	tests := []struct {
		m    Matcher
		expr string
		want bool
	}{
		{Suffix("cursor.execute"), "self.db.cursor.execute", true},
		{Suffix("cursor.execute"), "mycursor.execute", false},
		{Suffix("execute"), "execute", true},
		{Exact("eval"), "eval", true},
		{Exact("eval"), "safe.eval", false},
		{Substring("req.body"), "req.body.name", true},
		{Substring("req.body"), "myreq.body", false},
		{Substring("request.args"), "request.args.get('id')", true},
	}
	for _, test := range tests {
		if got := test.m.Matches(test.expr); got != test.want {
			t.Errorf("%T(%s).Matches(%q) = %v, want %v", test.m, test.m, test.expr, got, test.want)
		}
	}
}

func TestRegistryMatchesPerLanguage(t *testing.T) {
	r, err := NewRegistry(config.NewDefault())
	if err != nil {
		t.Fatal(err)
	}
	if !r.Frozen() {
		t.Errorf("registry should be frozen after construction")
	}
	if m, ok := r.IsSink("cursor.execute", "python"); !ok || m.Category != CategorySQL {
		t.Errorf("cursor.execute should be a python sql sink, got %v", m)
	}
	if m, ok := r.IsSource("req.body.id", "typescript"); !ok || m.Category != CategoryUserInput {
		t.Errorf("req.body should be a typescript source through the javascript catalog, got %v", m)
	}
	if _, ok := r.IsSink("res.send", "python"); ok {
		t.Errorf("res.send is not a python sink")
	}
	if _, ok := r.IsSanitizer("validateBody", "rust"); !ok {
		t.Errorf("language-neutral sanitizers should apply to every language")
	}
	if matches := r.Match("nothing.here", "cobol"); len(matches) != 0 {
		t.Errorf("a language without catalog should have no sources or sinks, got %v", matches)
	}
}

func TestRegistryMultipleCategories(t *testing.T) {
	r := NewEmptyRegistry()
	if err := r.Register("python", CategorySQL, Sink, Suffix("run")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("python", CategoryCommand, Sink, Suffix("runner.run")); err != nil {
		t.Fatal(err)
	}
	matches := r.Match("runner.run", "python")
	if len(matches) != 2 || matches[0].Category != CategoryCommand || matches[1].Category != CategorySQL {
		t.Errorf("expected command and sql matches, got %v", matches)
	}
}

func TestRegistryFrozen(t *testing.T) {
	r := NewEmptyRegistry()
	r.Freeze()
	if err := r.Register("go", CategorySQL, Sink, Exact("Exec")); err == nil {
		t.Errorf("registering in a frozen registry should fail")
	}
}

func TestRegistryConfigPatterns(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Languages = []string{"python"}
	cfg.Patterns = []config.PatternSpec{
		{Language: "python", Kind: "sink", Category: "sql", Match: "legacy_db.run_raw", Mode: "suffix"},
		{Language: "go", Kind: "sink", Category: "sql", Match: "RunRaw", Mode: "exact"},
	}
	r, err := NewRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.IsSink("app.legacy_db.run_raw", "python"); !ok {
		t.Errorf("config pattern should be registered")
	}
	if len(r.Patterns("go")) != len(r.Patterns("*")) {
		t.Errorf("go catalog should not be registered when only python is enabled")
	}
}

func TestAssessSQLRisk(t *testing.T) {
	tests := []struct {
		expr string
		want Risk
	}{
		{`"SELECT * FROM users WHERE id = " + user_id`, SeverityCritical},
		{`f"SELECT * FROM users WHERE id = {user_id}"`, SeverityCritical},
		{"`SELECT * FROM users WHERE id = ${id}`", SeverityCritical},
		{`"SELECT * FROM users WHERE name = '{}'".format(name)`, SeverityCritical},
		{`"SELECT * FROM users WHERE id = %s" % user_id`, SeverityCritical},
		{`"SELECT * FROM users WHERE id = %s", (user_id,)`, SeverityHigh},
		{`"SELECT * FROM users WHERE id = ?", [id]`, SeverityLow},
		{`"SELECT * FROM users WHERE id = $1"`, SeverityLow},
		{`"SELECT * FROM users WHERE id = :id"`, SeverityLow},
		{`query`, SeverityMedium},
	}
	for _, test := range tests {
		if got := AssessSQLRisk(test.expr); got != test.want {
			t.Errorf("AssessSQLRisk(%s) = %s, want %s", test.expr, got, test.want)
		}
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		category  string
		sanitized bool
		sink      string
		want      string
	}{
		{CategorySQL, false, `"SELECT " + x`, SeverityCritical},
		{CategorySQL, true, `"SELECT " + x`, SeverityHigh},
		{CategorySQL, false, `"SELECT * FROM t WHERE id = ?"`, SeverityHigh},
		{CategoryXSS, false, "", SeverityHigh},
		{CategoryRedirect, true, "", SeverityLow},
		{"mystery", false, "", SeverityLow},
	}
	for _, test := range tests {
		if got := Severity(test.category, test.sanitized, test.sink); got != test.want {
			t.Errorf("Severity(%s, %v) = %s, want %s", test.category, test.sanitized, got, test.want)
		}
	}
}

func TestVulnerabilityType(t *testing.T) {
	if VulnerabilityType("xss") != "Cross-Site Scripting (XSS)" || VulnerabilityType("other") != "Data Exposure" {
		t.Errorf("unexpected vulnerability types")
	}
}
