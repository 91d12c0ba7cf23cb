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
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// undefinedTable is the postgres error code for a relation that does not exist
const undefinedTable = "42P01"

// PostgresStore reads facts from a postgres database, for fact stores shared by several analysis workers.
type PostgresStore struct {
	db     *sql.DB
	logger *config.LogGroup
}

// OpenPostgres connects to the postgres database at dsn.
func OpenPostgres(ctx context.Context, dsn string, logger *config.LogGroup) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// Load reads the fact tables concurrently over the connection pool
func (s *PostgresStore) Load(ctx context.Context) (*facts.Snapshot, error) {
	exists := map[string]bool{}
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		exists[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
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
	s.logger.Debugf("Loaded %s from postgres", snapshot)
	return snapshot, nil
}

func (s *PostgresStore) loadTable(ctx context.Context, t table, snapshot *facts.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, t.query(pq.QuoteIdentifier))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTable {
			if t.required {
				return &MissingTableError{Table: t.name}
			}
			s.logger.Warnf("Optional table %s disappeared while loading", t.name)
			return nil
		}
		return fmt.Errorf("read table %s: %w", t.name, err)
	}
	defer rows.Close()

	values := make([]sql.NullString, len(t.columns))
	dest := make([]any, len(t.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("read table %s: %w", t.name, err)
		}
		t.decode(postgresRow(values), snapshot)
	}
	return rows.Err()
}

// Stamp returns "" since a shared database has no cheap content stamp; snapshots of postgres stores are not cached.
func (s *PostgresStore) Stamp() (string, error) {
	return "", nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// postgresRow reads the scanned columns of the current row. All columns are scanned as nullable strings so that the
// decoders do not depend on the exact column types of the schema.
type postgresRow []sql.NullString

func (r postgresRow) text(i int) string {
	return r[i].String
}

func (r postgresRow) integer(i int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r[i].String))
	if err != nil {
		return 0
	}
	return n
}

func (r postgresRow) boolean(i int) bool {
	switch strings.ToLower(strings.TrimSpace(r[i].String)) {
	case "1", "t", "true":
		return true
	default:
		return false
	}
}
