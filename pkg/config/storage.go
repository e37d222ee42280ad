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

package config

import (
	"fmt"
	"path/filepath"
)

// StorageBackend identifies a storage backend type.
type StorageBackend string

const (
	// StorageBackendFile writes one JSON document per record.
	StorageBackendFile StorageBackend = "file"

	// StorageBackendSQL uses a SQL database for persistence.
	StorageBackendSQL StorageBackend = "sql"
)

// CombinationsConfig configures where combination definitions live.
type CombinationsConfig struct {
	// Directory holds one file per combination. Empty keeps definitions in memory only.
	Directory string `yaml:"directory,omitempty" json:"directory,omitempty" jsonschema:"default=./combinations"`

	// Format is the file encoding for new definitions: yaml or json.
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=yaml,enum=json,default=yaml"`

	// Predefined installs the built-in combinations whose agents are available.
	// Default: true
	Predefined *bool `yaml:"predefined,omitempty" json:"predefined,omitempty"`
}

func (c *CombinationsConfig) SetDefaults() {
	if c.Directory == "" {
		c.Directory = "./combinations"
	}
	if c.Format == "" {
		c.Format = "yaml"
	}
	if c.Predefined == nil {
		predefined := true
		c.Predefined = &predefined
	}
}

func (c *CombinationsConfig) Validate() error {
	if c.Format != "yaml" && c.Format != "json" {
		return fmt.Errorf("invalid format %q (valid: yaml, json)", c.Format)
	}
	return nil
}

// PredefinedEnabled reports whether built-in combinations are installed.
func (c *CombinationsConfig) PredefinedEnabled() bool {
	return c.Predefined == nil || *c.Predefined
}

// ExecutionLogConfig configures the execution log store.
//
// Example:
//
//	execution_log:
//	  backend: sql
//	  database:
//	    driver: sqlite
//	    database: ./data/agentmenu.db
type ExecutionLogConfig struct {
	// Backend is file or sql.
	Backend StorageBackend `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=file,enum=sql,default=file"`

	// Directory receives one <execution id>.json file per run (file backend).
	Directory string `yaml:"directory,omitempty" json:"directory,omitempty"`

	// Database is used by the sql backend.
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`

	// Table names the SQL table.
	Table string `yaml:"table,omitempty" json:"table,omitempty" jsonschema:"default=execution_logs"`
}

func (c *ExecutionLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StorageBackendFile
	}
	if c.Directory == "" {
		c.Directory = filepath.Join("combinations", "execution_logs")
	}
	if c.Table == "" {
		c.Table = "execution_logs"
	}
	if c.Database != nil {
		c.Database.SetDefaults()
	}
}

func (c *ExecutionLogConfig) Validate() error {
	switch c.Backend {
	case StorageBackendFile:
		if c.Directory == "" {
			return fmt.Errorf("directory is required for the file backend")
		}
	case StorageBackendSQL:
		if c.Database == nil {
			return fmt.Errorf("database is required for the sql backend")
		}
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	default:
		return fmt.Errorf("invalid backend %q (valid: file, sql)", c.Backend)
	}
	return nil
}

// IsSQL reports whether the sql backend is selected.
func (c *ExecutionLogConfig) IsSQL() bool {
	return c.Backend == StorageBackendSQL
}
