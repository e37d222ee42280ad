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

// Package config defines the agentmenu configuration and its loading pipeline.
//
// Example:
//
//	logger:
//	  level: info
//	agents:
//	  directory: ./agents
//	executor:
//	  default_timeout: 300s
//	  max_concurrency: 4
//	combinations:
//	  directory: ./combinations
//	execution_log:
//	  backend: file
package config

import (
	"errors"
	"fmt"

	"github.com/kadirpekel/agentmenu/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	Logger        LoggerConfig         `yaml:"logger,omitempty" json:"logger,omitempty"`
	Global        GlobalConfig         `yaml:"global,omitempty" json:"global,omitempty"`
	Agents        AgentsConfig         `yaml:"agents,omitempty" json:"agents,omitempty"`
	Executor      ExecutorConfig       `yaml:"executor,omitempty" json:"executor,omitempty"`
	Combinations  CombinationsConfig   `yaml:"combinations,omitempty" json:"combinations,omitempty"`
	ExecutionLog  ExecutionLogConfig   `yaml:"execution_log,omitempty" json:"execution_log,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
	Server        ServerConfig         `yaml:"server,omitempty" json:"server,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Logger.SetDefaults()
	c.Global.SetDefaults()
	c.Agents.SetDefaults()
	c.Executor.SetDefaults()
	c.Combinations.SetDefaults()
	c.ExecutionLog.SetDefaults()
	c.Observability.SetDefaults()
	c.Server.SetDefaults()
}

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	check("logger", c.Logger.Validate())
	check("global", c.Global.Validate())
	check("agents", c.Agents.Validate())
	check("executor", c.Executor.Validate())
	check("combinations", c.Combinations.Validate())
	check("execution_log", c.ExecutionLog.Validate())
	check("observability", c.Observability.Validate())
	check("server", c.Server.Validate())

	return errors.Join(errs...)
}
