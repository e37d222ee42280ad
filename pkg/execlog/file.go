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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/agentmenu/pkg/utils"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

// FileStore writes each record to <dir>/<execution_id>.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if _, err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid execution id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *FileStore) Save(_ context.Context, rec workflow.Record) error {
	path, err := s.path(rec.ExecutionID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode execution log: %w", err)
	}
	return utils.WriteFileAtomic(path, data)
}

func (s *FileStore) Get(_ context.Context, id string) (workflow.Record, error) {
	path, err := s.path(id)
	if err != nil {
		return workflow.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return readRecord(path)
}

func readRecord(path string) (workflow.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return workflow.Record{}, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	if err != nil {
		return workflow.Record{}, fmt.Errorf("failed to read execution log: %w", err)
	}
	var rec workflow.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return workflow.Record{}, fmt.Errorf("failed to parse execution log '%s': %w", path, err)
	}
	return rec, nil
}

func (s *FileStore) List(_ context.Context) ([]workflow.Record, error) {
	paths, err := s.files()
	if err != nil {
		return nil, err
	}
	records := make([]workflow.Record, 0, len(paths))
	for _, p := range paths {
		rec, err := readRecord(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sortNewestFirst(records)
	return records, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	paths, err := s.files()
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution log directory '%s': %w", s.dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(s.dir, e.Name()))
		}
	}
	return paths, nil
}
