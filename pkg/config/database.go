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
	"strings"
)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// DatabaseConfig describes a SQL connection for postgres, mysql or sqlite.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" json:"driver" jsonschema:"enum=postgres,enum=mysql,enum=sqlite,enum=sqlite3,default=sqlite"`
	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database" json:"database" jsonschema:"description=Database name or SQLite file path"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode  string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`
	MaxConns int    `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"minimum=1,default=25"`
	MaxIdle  int    `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"minimum=1,default=5"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DialectSQLite
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
	if c.Port == 0 {
		switch c.Dialect() {
		case DialectPostgres:
			c.Port = 5432
		case DialectMySQL:
			c.Port = 3306
		}
	}
	if c.Dialect() == DialectPostgres && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

func (c *DatabaseConfig) Validate() error {
	switch c.Dialect() {
	case DialectPostgres, DialectMySQL:
		if c.Host == "" {
			return fmt.Errorf("host is required for %s", c.Driver)
		}
	case DialectSQLite:
	default:
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.MaxConns < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("max_conns and max_idle must be non-negative")
	}
	return nil
}

// DSN returns the connection string for sql.Open.
func (c *DatabaseConfig) DSN() string {
	switch c.Dialect() {
	case DialectPostgres:
		parts := []string{
			fmt.Sprintf("host=%s", c.Host),
			fmt.Sprintf("port=%d", c.Port),
			fmt.Sprintf("dbname=%s", c.Database),
		}
		if c.Username != "" {
			parts = append(parts, "user="+c.Username)
		}
		if c.Password != "" {
			parts = append(parts, "password="+c.Password)
		}
		if c.SSLMode != "" {
			parts = append(parts, "sslmode="+c.SSLMode)
		}
		return strings.Join(parts, " ")
	case DialectMySQL:
		// parseTime makes DATETIME columns scan into time.Time.
		auth := ""
		if c.Username != "" {
			auth = c.Username + ":" + c.Password + "@"
		}
		return fmt.Sprintf("%stcp(%s:%d)/%s?parseTime=true", auth, c.Host, c.Port, c.Database)
	case DialectSQLite:
		return c.Database
	default:
		return ""
	}
}

// DriverName returns the name registered with database/sql.
func (c *DatabaseConfig) DriverName() string {
	if c.Dialect() == DialectSQLite {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect normalizes the driver into one of the Dialect constants.
func (c *DatabaseConfig) Dialect() string {
	switch c.Driver {
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "postgresql":
		return DialectPostgres
	default:
		return c.Driver
	}
}
