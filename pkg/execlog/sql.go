// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package execlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps records in a single table. The full record is stored as
// JSON; the remaining columns exist for querying.
//
// The *sql.DB is borrowed and is not closed by Close.
type SQLStore struct {
	db      *sql.DB
	dialect string
	table   string
}

// NewSQLStore creates the table if needed. dialect is postgres, mysql or
// sqlite (sqlite3 is accepted).
func NewSQLStore(ctx context.Context, db *sql.DB, dialect, table string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if dialect == "sqlite3" {
		dialect = config.DialectSQLite
	}
	switch dialect {
	case config.DialectPostgres, config.DialectMySQL, config.DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}
	if table == "" {
		table = "execution_logs"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &SQLStore{db: db, dialect: dialect, table: table}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize execution log schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	textType := "TEXT"
	if s.dialect == config.DialectMySQL {
		textType = "LONGTEXT"
	}
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			execution_id VARCHAR(255) PRIMARY KEY,
			combination_name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			record_json %s NOT NULL,
			start_time TIMESTAMP NULL,
			end_time TIMESTAMP NULL
		)`, s.table, textType)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// MySQL has no IF NOT EXISTS for indexes; the table query is enough there.
	if s.dialect != config.DialectMySQL {
		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_combination ON %s(combination_name)", s.table, s.table)
		if _, err := s.db.ExecContext(ctx, index); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) upsertQuery() string {
	cols := "(execution_id, combination_name, status, record_json, start_time, end_time)"
	switch s.dialect {
	case config.DialectMySQL:
		return fmt.Sprintf(`INSERT INTO %s %s VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				combination_name = VALUES(combination_name),
				status = VALUES(status),
				record_json = VALUES(record_json),
				start_time = VALUES(start_time),
				end_time = VALUES(end_time)`, s.table, cols)
	case config.DialectPostgres:
		return fmt.Sprintf(`INSERT INTO %s %s VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (execution_id) DO UPDATE SET
				combination_name = EXCLUDED.combination_name,
				status = EXCLUDED.status,
				record_json = EXCLUDED.record_json,
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time`, s.table, cols)
	default:
		return fmt.Sprintf(`INSERT INTO %s %s VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(execution_id) DO UPDATE SET
				combination_name = excluded.combination_name,
				status = excluded.status,
				record_json = excluded.record_json,
				start_time = excluded.start_time,
				end_time = excluded.end_time`, s.table, cols)
	}
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == config.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) Save(ctx context.Context, rec workflow.Record) error {
	if rec.ExecutionID == "" {
		return fmt.Errorf("execution id is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode execution log: %w", err)
	}

	var start, end sql.NullTime
	if !rec.StartTime.IsZero() {
		start = sql.NullTime{Time: rec.StartTime.UTC(), Valid: true}
	}
	if rec.EndTime != nil {
		end = sql.NullTime{Time: rec.EndTime.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.upsertQuery(),
		rec.ExecutionID, rec.CombinationName, string(rec.Status), string(data), start, end)
	if err != nil {
		return fmt.Errorf("failed to save execution log %s: %w", rec.ExecutionID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (workflow.Record, error) {
	query := fmt.Sprintf("SELECT record_json FROM %s WHERE execution_id = %s", s.table, s.placeholder(1))

	var data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return workflow.Record{}, fmt.Errorf("failed to load execution log %s: %w", id, err)
	}
	return decodeRecord(id, data)
}

func (s *SQLStore) List(ctx context.Context) ([]workflow.Record, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT execution_id, record_json FROM %s", s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	defer rows.Close()

	var records []workflow.Record
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		rec, err := decodeRecord(id, data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	sortNewestFirst(records)
	return records, nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("failed to clear execution logs: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error { return nil }

func decodeRecord(id, data string) (workflow.Record, error) {
	var rec workflow.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return workflow.Record{}, fmt.Errorf("failed to parse execution log %s: %w", id, err)
	}
	return rec, nil
}
