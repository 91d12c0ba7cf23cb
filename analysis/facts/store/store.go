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

// Package store loads fact snapshots from the relational fact store written by the extractors. Two drivers are
// supported: sqlite files and postgres databases. Loaded snapshots can be cached in a badger database keyed by the
// stamp of the store, so that repeated runs on an unchanged index skip the relational queries.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
)

// A Store loads the facts of a repository.
type Store interface {
	// Load reads all the fact tables into a snapshot. A missing required table is a *MissingTableError; a missing
	// optional table is logged and the corresponding facts are left empty.
	Load(ctx context.Context) (*facts.Snapshot, error)

	// Stamp returns a string that changes whenever the content of the store changes, or "" if the store cannot
	// provide one.
	Stamp() (string, error)

	Close() error
}

// MissingTableError is returned when a required fact table does not exist.
type MissingTableError struct {
	Table string
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("required table %q is missing: database is corrupted or incomplete, re-run the extractors "+
		"to rebuild the repository index", e.Table)
}

// rowReader reads the columns of the current row, in the order of the table's column list.
type rowReader interface {
	text(i int) string
	integer(i int) int
	boolean(i int) bool
}

type table struct {
	name     string
	required bool
	columns  []string
	decode   func(r rowReader, s *facts.Snapshot)
}

func (t table) query(quote func(string) string) string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = quote(c)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + quote(t.name)
}

// tables lists the fact tables. Each decoder appends to a distinct field of the snapshot, so that tables can be read
// concurrently.
var tables = []table{
	{
		name:     "symbols",
		required: true,
		columns:  []string{"path", "name", "type", "line", "end_line"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.Symbols = append(s.Symbols, facts.Symbol{
				File: r.text(0), Name: r.text(1), Kind: r.text(2), Line: r.integer(3), EndLine: r.integer(4),
			})
		},
	},
	{
		name:     "assignments",
		required: true,
		columns:  []string{"file", "line", "target_var", "source_expr", "in_function"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.Assignments = append(s.Assignments, facts.Assignment{
				File: r.text(0), Line: r.integer(1), TargetVar: r.text(2), SourceExpr: r.text(3), InFunction: r.text(4),
			})
		},
	},
	{
		name:     "function_call_args",
		required: true,
		columns: []string{"file", "line", "caller_function", "callee_function", "argument_index", "argument_expr",
			"param_name", "callee_file_path"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.CallArgs = append(s.CallArgs, facts.CallArg{
				File: r.text(0), Line: r.integer(1), CallerFunction: r.text(2), CalleeFunction: r.text(3),
				ArgIndex: r.integer(4), ArgExpr: r.text(5), ParamName: r.text(6), CalleeFile: r.text(7),
			})
		},
	},
	{
		name:     "function_returns",
		required: true,
		columns:  []string{"file", "line", "function_name", "return_expr"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.Returns = append(s.Returns, facts.Return{
				File: r.text(0), Line: r.integer(1), Function: r.text(2), ReturnExpr: r.text(3),
			})
		},
	},
	{
		name:    "assignment_sources",
		columns: []string{"assignment_file", "assignment_line", "assignment_target", "source_var_name"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.AssignmentSources = append(s.AssignmentSources, facts.AssignmentSource{
				File: r.text(0), Line: r.integer(1), TargetVar: r.text(2), SourceVar: r.text(3),
			})
		},
	},
	{
		name:    "function_return_sources",
		columns: []string{"return_file", "return_line", "return_function", "return_var_name"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.ReturnSources = append(s.ReturnSources, facts.ReturnSource{
				File: r.text(0), Line: r.integer(1), Function: r.text(2), ReturnVar: r.text(3),
			})
		},
	},
	{
		name:    "function_params",
		columns: []string{"file", "function_name", "param_index", "param_name", "is_variadic"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.Params = append(s.Params, facts.Param{
				File: r.text(0), Function: r.text(1), Index: r.integer(2), Name: r.text(3), Variadic: r.boolean(4),
			})
		},
	},
	{
		name: "cfg_blocks",
		columns: []string{"id", "file", "function_name", "block_type", "start_line", "end_line",
			"condition_expr"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.Blocks = append(s.Blocks, facts.Block{
				ID: r.integer(0), File: r.text(1), Function: r.text(2), Type: r.text(3),
				StartLine: r.integer(4), EndLine: r.integer(5), Condition: r.text(6),
			})
		},
	},
	{
		name:    "cfg_edges",
		columns: []string{"file", "function_name", "source_block_id", "target_block_id", "edge_type"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.Edges = append(s.Edges, facts.Edge{
				File: r.text(0), Function: r.text(1), Source: r.integer(2), Target: r.integer(3), Type: r.text(4),
			})
		},
	},
	{
		name:    "cfg_block_statements",
		columns: []string{"block_id", "statement_type", "line", "statement_text"},
		decode: func(r rowReader, s *facts.Snapshot) {
			s.Statements = append(s.Statements, facts.Statement{
				BlockID: r.integer(0), Type: r.text(1), Line: r.integer(2), Text: r.text(3),
			})
		},
	},
}

// RequiredTables returns the names of the tables that must exist in a fact store
func RequiredTables() []string {
	var names []string
	for _, t := range tables {
		if t.required {
			names = append(names, t.name)
		}
	}
	return names
}

// checkTables returns the tables present among the known tables, or a *MissingTableError for the first required
// table that is absent. Missing optional tables are logged.
func checkTables(exists map[string]bool, logger *config.LogGroup) ([]table, error) {
	var present []table
	for _, t := range tables {
		if exists[t.name] {
			present = append(present, t)
			continue
		}
		if t.required {
			return nil, &MissingTableError{Table: t.name}
		}
		logger.Warnf("Optional table %s is missing, analysis precision will be degraded", t.name)
	}
	return present, nil
}

// Open opens the store described by the config. If a snapshot cache directory is set, the returned store is a
// CachedStore.
func Open(ctx context.Context, cfg *config.Config, logger *config.LogGroup) (Store, error) {
	var s Store
	var err error
	switch cfg.Store.Driver {
	case config.StoreDriverSqlite, "":
		s, err = OpenSqlite(cfg.Store.DSN, logger)
	case config.StoreDriverPostgres:
		s, err = OpenPostgres(ctx, cfg.Store.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Store.SnapshotCache == "" {
		return s, nil
	}
	cache, err := OpenSnapshotCache(cfg.Store.SnapshotCache, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return NewCachedStore(s, cache, logger), nil
}
