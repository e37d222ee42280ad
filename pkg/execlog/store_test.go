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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

func record(id string, status workflow.Status, start time.Time) workflow.Record {
	end := start.Add(2 * time.Second)
	return workflow.Record{
		CombinationName: "content-research-pipeline",
		ExecutionID:     id,
		Status:          status,
		StepsCompleted:  2,
		TotalSteps:      3,
		Results:         map[string]any{"research": map[string]any{"status": "success"}},
		Errors:          []string{},
		StartTime:       start,
		EndTime:         &end,
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	files, err := NewFileStore(filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, err)

	pool := config.NewDBPool()
	t.Cleanup(func() { _ = pool.Close() })
	dbCfg := &config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "logs.db")}
	dbCfg.SetDefaults()
	db, err := pool.Get(ctx, dbCfg)
	require.NoError(t, err)
	sqlStore, err := NewSQLStore(ctx, db, dbCfg.Dialect(), "execution_logs")
	require.NoError(t, err)

	return map[string]Store{"file": files, "sql": sqlStore}
}

func TestStores(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			defer store.Close()

			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			first := record("exec-1", workflow.StatusCompleted, base)
			require.NoError(t, store.Save(ctx, first))

			got, err := store.Get(ctx, "exec-1")
			require.NoError(t, err)
			assert.Equal(t, first.CombinationName, got.CombinationName)
			assert.Equal(t, workflow.StatusCompleted, got.Status)
			assert.Equal(t, 2, got.StepsCompleted)
			assert.True(t, got.StartTime.Equal(base))
			require.NotNil(t, got.EndTime)
			assert.Equal(t, 2*time.Second, got.Duration())
			assert.Equal(t, map[string]any{"status": "success"}, got.Results["research"])

			again, err := store.Get(ctx, "exec-1")
			require.NoError(t, err)
			assert.Equal(t, got, again)

			// Saving the same id replaces the record.
			first.Status = workflow.StatusStopped
			first.Errors = []string{"stopped by user"}
			require.NoError(t, store.Save(ctx, first))
			got, err = store.Get(ctx, "exec-1")
			require.NoError(t, err)
			assert.Equal(t, workflow.StatusStopped, got.Status)
			assert.Equal(t, []string{"stopped by user"}, got.Errors)

			require.NoError(t, store.Save(ctx, record("exec-2", workflow.StatusFailed, base.Add(time.Minute))))
			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "exec-2", list[0].ExecutionID)
			assert.Equal(t, "exec-1", list[1].ExecutionID)

			require.NoError(t, store.Clear(ctx))
			list, err = store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), record("abc", workflow.StatusCompleted, time.Now().UTC())))
	data, err := os.ReadFile(filepath.Join(dir, "abc.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"execution_id": "abc"`)
	assert.Contains(t, string(data), `"status": "completed"`)

	assert.Error(t, store.Save(context.Background(), record("../escape", workflow.StatusCompleted, time.Now())))
	_, err = store.Get(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err = store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewSQLStore_Validation(t *testing.T) {
	_, err := NewSQLStore(context.Background(), nil, "sqlite", "logs")
	assert.Error(t, err)

	pool := config.NewDBPool()
	defer pool.Close()
	dbCfg := &config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "v.db")}
	dbCfg.SetDefaults()
	db, err := pool.Get(context.Background(), dbCfg)
	require.NoError(t, err)

	_, err = NewSQLStore(context.Background(), db, "oracle", "logs")
	assert.ErrorContains(t, err, "unsupported dialect")

	_, err = NewSQLStore(context.Background(), db, "sqlite3", "logs; DROP TABLE x")
	assert.ErrorContains(t, err, "invalid table name")
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	fileCfg := config.ExecutionLogConfig{Directory: t.TempDir()}
	fileCfg.SetDefaults()
	store, err := New(ctx, &fileCfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	sqlCfg := config.ExecutionLogConfig{
		Backend:  config.StorageBackendSQL,
		Database: &config.DatabaseConfig{Driver: "sqlite3", Database: filepath.Join(t.TempDir(), "n.db")},
	}
	sqlCfg.SetDefaults()
	_, err = New(ctx, &sqlCfg, nil)
	assert.Error(t, err)

	pool := config.NewDBPool()
	defer pool.Close()
	store, err = New(ctx, &sqlCfg, pool)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
}
