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

package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SqliteStore reads facts from a sqlite database file. The file is only ever opened read-only.
type SqliteStore struct {
	path   string
	logger *config.LogGroup
}

// OpenSqlite returns a store reading the sqlite database at path. The file must exist.
func OpenSqlite(path string, logger *config.LogGroup) (*SqliteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("no sqlite database specified")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("fact store %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("fact store %s is a directory", path)
	}
	return &SqliteStore{path: path, logger: logger}, nil
}

func (s *SqliteStore) open() (*sqlite.Conn, error) {
	conn, err := sqlite.OpenConn(s.path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", s.path, err)
	}
	return conn, nil
}

// Load reads the fact tables, one connection and one goroutine per table.
func (s *SqliteStore) Load(ctx context.Context) (*facts.Snapshot, error) {
	conn, err := s.open()
	if err != nil {
		return nil, err
	}
	exists := map[string]bool{}
	err = sqlitex.ExecuteTransient(conn, "SELECT name FROM sqlite_master WHERE type = 'table'",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				exists[stmt.ColumnText(0)] = true
				return nil
			},
		})
	_ = conn.Close()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	present, err := checkTables(exists, s.logger)
	if err != nil {
		return nil, err
	}

	snapshot := &facts.Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range present {
		t := t
		g.Go(func() error {
			return s.loadTable(gctx, t, snapshot)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debugf("Loaded %s from %s", snapshot, s.path)
	return snapshot, nil
}

func (s *SqliteStore) loadTable(ctx context.Context, t table, snapshot *facts.Snapshot) error {
	conn, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	conn.SetInterrupt(ctx.Done())

	start := time.Now()
	n := 0
	err = sqlitex.ExecuteTransient(conn, t.query(quoteSqlite), &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			t.decode(sqliteRow{stmt}, snapshot)
			n++
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("read table %s: %w", t.name, err)
	}
	s.logger.Tracef("Read %d rows from %s in %.3fs", n, t.name, time.Since(start).Seconds())
	return nil
}

// Stamp identifies the content of the database by its path, modification time and size.
func (s *SqliteStore) Stamp() (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sqlite:%s:%d:%d", s.path, info.ModTime().UnixNano(), info.Size()), nil
}

// Close does nothing: connections are closed after each load.
func (s *SqliteStore) Close() error {
	return nil
}

func quoteSqlite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type sqliteRow struct {
	stmt *sqlite.Stmt
}

func (r sqliteRow) text(i int) string {
	if r.stmt.ColumnType(i) == sqlite.TypeNull {
		return ""
	}
	return r.stmt.ColumnText(i)
}

func (r sqliteRow) integer(i int) int {
	return r.stmt.ColumnInt(i)
}

func (r sqliteRow) boolean(i int) bool {
	switch r.stmt.ColumnType(i) {
	case sqlite.TypeInteger:
		return r.stmt.ColumnInt(i) != 0
	case sqlite.TypeText:
		v := strings.ToLower(r.stmt.ColumnText(i))
		return v == "1" || v == "true"
	default:
		return false
	}
}
