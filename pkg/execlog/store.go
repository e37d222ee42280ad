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

// Package execlog persists one terminal record per execution.
package execlog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

var ErrNotFound = errors.New("execution log not found")

// Store keeps execution records keyed by execution id. Saving an id that
// already exists replaces its record.
type Store interface {
	Save(ctx context.Context, rec workflow.Record) error
	Get(ctx context.Context, executionID string) (workflow.Record, error)
	// List returns records newest first.
	List(ctx context.Context) ([]workflow.Record, error)
	Clear(ctx context.Context) error
	Close() error
}

// New builds the store selected by cfg. SQL stores borrow their
// connection from pool.
func New(ctx context.Context, cfg *config.ExecutionLogConfig, pool *config.DBPool) (Store, error) {
	if cfg.IsSQL() {
		if pool == nil {
			return nil, fmt.Errorf("sql execution log requires a database pool")
		}
		db, err := pool.Get(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, db, cfg.Database.Dialect(), cfg.Table)
	}
	return NewFileStore(cfg.Directory)
}

func sortNewestFirst(records []workflow.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartTime.Equal(records[j].StartTime) {
			return records[i].ExecutionID < records[j].ExecutionID
		}
		return records[i].StartTime.After(records[j].StartTime)
	})
}
