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

package combination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/agentmenu/pkg/utils"
)

// Store persists combinations.
type Store interface {
	Save(ctx context.Context, c *Combination) error
	Load(ctx context.Context) ([]*Combination, error)
	Delete(ctx context.Context, name string) error
}

// File formats understood by FileStore.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

var extensions = []string{".yaml", ".yml", ".json"}

// FileStore keeps one file per combination in a directory. It writes in
// its configured format and reads every supported format.
type FileStore struct {
	dir    string
	format string
}

func NewFileStore(dir, format string) (*FileStore, error) {
	switch format {
	case "":
		format = FormatYAML
	case FormatYAML, FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported combination format %q", format)
	}
	if _, err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, format: format}, nil
}

func (s *FileStore) Save(_ context.Context, c *Combination) error {
	var (
		data []byte
		err  error
	)
	if s.format == FormatJSON {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to encode combination %s: %w", c.Name, err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(s.dir, c.Name+"."+s.format), data); err != nil {
		return err
	}
	// A file in the other format would shadow this one on reload.
	for _, ext := range extensions {
		if ext != "."+s.format {
			_ = os.Remove(filepath.Join(s.dir, c.Name+ext))
		}
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) ([]*Combination, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read combinations directory '%s': %w", s.dir, err)
	}

	var combos []*Combination
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !slices.Contains(extensions, ext) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		c, err := readCombination(path, ext)
		if err != nil {
			return nil, err
		}
		if c.Name == "" {
			c.Name = strings.TrimSuffix(e.Name(), ext)
		}
		combos = append(combos, c)
	}
	sort.Slice(combos, func(i, j int) bool { return combos[i].Name < combos[j].Name })
	return combos, nil
}

func readCombination(path, ext string) (*Combination, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read combination '%s': %w", path, err)
	}
	var c Combination
	if ext == ".json" {
		err = json.Unmarshal(data, &c)
	} else {
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse combination '%s': %w", path, err)
	}
	return &c, nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	var errs []error
	for _, ext := range extensions {
		if err := os.Remove(filepath.Join(s.dir, name+ext)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
