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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/report"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const index = `
CREATE TABLE symbols (path TEXT, name TEXT, type TEXT, line INTEGER, end_line INTEGER);
CREATE TABLE assignments (file TEXT, line INTEGER, target_var TEXT, source_expr TEXT, in_function TEXT);
CREATE TABLE function_call_args (file TEXT, line INTEGER, caller_function TEXT, callee_function TEXT,
  argument_index INTEGER, argument_expr TEXT, param_name TEXT, callee_file_path TEXT);
CREATE TABLE function_returns (file TEXT, line INTEGER, function_name TEXT, return_expr TEXT);

INSERT INTO symbols VALUES ('app/views.py', 'show_user', 'function', 10, 20);
INSERT INTO assignments VALUES ('app/views.py', 11, 'user_id', 'request.args.get("id")', 'show_user');
INSERT INTO function_call_args VALUES ('app/views.py', 12, 'show_user', 'cursor.execute', 0,
  '"SELECT * FROM users WHERE id = " + user_id', NULL, NULL);
`

func newIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo_index.db")
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite)
	if err != nil {
		t.Fatalf("could not create index: %v", err)
	}
	defer conn.Close()
	if err := sqlitex.ExecuteScript(conn, index, nil); err != nil {
		t.Fatalf("could not write index: %v", err)
	}
	return path
}

func TestFlagsOverrideConfig(t *testing.T) {
	flags, err := NewFlags([]string{"-db", "index.db", "-max-depth", "7", "-no-flow-sensitive", "-multi-hop",
		"-languages", "python,Go", "-exclude", "vendor/", "-timeout", "1m"})
	if err != nil {
		t.Fatalf("could not parse flags: %v", err)
	}
	cfg := config.NewDefault()
	cfg.MaxDepthCeiling = 10
	if err := flags.Override(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxDepth != 7 || cfg.EnableFlowSensitive || !cfg.MultiHop {
		t.Errorf("flags not applied: %+v", cfg.Options)
	}
	if !cfg.HasLanguage("go") || cfg.HasLanguage("javascript") {
		t.Errorf("unexpected languages %v", cfg.Languages)
	}
	if len(cfg.Exclude) != 1 || cfg.Store.DSN != "index.db" {
		t.Errorf("unexpected exclude %v or store %v", cfg.Exclude, cfg.Store)
	}
}

func TestFlagsRejectDepthAboveCeiling(t *testing.T) {
	flags, err := NewFlags([]string{"-db", "index.db", "-max-depth", "30"})
	if err != nil {
		t.Fatalf("could not parse flags: %v", err)
	}
	if err := flags.Override(config.NewDefault()); err == nil {
		t.Errorf("expected an error for a depth above the ceiling")
	}
}

func TestRunWritesReports(t *testing.T) {
	dir := t.TempDir()
	flags, err := NewFlags([]string{"-db", newIndex(t), "-json", "-sarif", "-reports-dir", dir})
	if err != nil {
		t.Fatalf("could not parse flags: %v", err)
	}
	if err := Run(flags); err != nil {
		t.Fatalf("taint analysis failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("could not read reports dir: %v", err)
	}
	var jsonReports, sarifReports int
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("could not read report: %v", err)
		}
		switch filepath.Ext(e.Name()) {
		case ".json":
			jsonReports++
			if err := report.Validate(b); err != nil {
				t.Errorf("invalid report: %v", err)
			}
			if !strings.Contains(string(b), "SQL Injection") {
				t.Errorf("report should contain the SQL injection")
			}
		case ".sarif":
			sarifReports++
		}
	}
	if jsonReports != 1 || sarifReports != 1 {
		t.Errorf("expected one json and one sarif report, got %d and %d", jsonReports, sarifReports)
	}
}

func TestRunMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite)
	if err != nil {
		t.Fatalf("could not create index: %v", err)
	}
	conn.Close()
	flags, err := NewFlags([]string{"-db", path})
	if err != nil {
		t.Fatalf("could not parse flags: %v", err)
	}
	err = Run(flags)
	if err == nil || !strings.Contains(err.Error(), "symbols") {
		t.Errorf("expected a missing table error, got %v", err)
	}
}
