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
	"sort"
)

// AgentsConfig describes where agents come from and how they are tuned.
//
// Example:
//
//	agents:
//	  directory: ./agents
//	  entries:
//	    research_agent:
//	      path: ./agents/research
//	      category: research
//	      entry_point: main.py
//	      required_credentials: [OPENAI_API_KEY]
//	  settings:
//	    research_agent:
//	      model: gpt-4o
//	      env_search_region: eu
type AgentsConfig struct {
	// Directory is scanned for agent.yaml manifests. Empty disables scanning.
	Directory string `yaml:"directory,omitempty" json:"directory,omitempty"`

	// Entries declares agents inline. Inline entries win over manifests.
	Entries map[string]*AgentEntry `yaml:"entries,omitempty" json:"entries,omitempty"`

	// Settings holds per-agent overrides keyed by agent name.
	Settings map[string]map[string]any `yaml:"settings,omitempty" json:"settings,omitempty"`

	// StrictSettings rejects unknown override keys instead of keeping them in Extra.
	StrictSettings bool `yaml:"strict_settings,omitempty" json:"strict_settings,omitempty"`
}

// AgentEntry is the static description of one agent program.
type AgentEntry struct {
	Path                string   `yaml:"path,omitempty" json:"path,omitempty"`
	Category            string   `yaml:"category,omitempty" json:"category,omitempty"`
	Description         string   `yaml:"description,omitempty" json:"description,omitempty"`
	EntryPoint          string   `yaml:"entry_point,omitempty" json:"entry_point,omitempty"`
	RequiredCredentials []string `yaml:"required_credentials,omitempty" json:"required_credentials,omitempty"`
}

func (c *AgentsConfig) SetDefaults() {
	if c.Entries == nil {
		c.Entries = make(map[string]*AgentEntry)
	}
	if c.Settings == nil {
		c.Settings = make(map[string]map[string]any)
	}
}

func (c *AgentsConfig) Validate() error {
	for name, entry := range c.Entries {
		if name == "" {
			return fmt.Errorf("agent entry with empty name")
		}
		if entry == nil {
			return fmt.Errorf("agent %q: entry is empty", name)
		}
	}

	names := make([]string, 0, len(c.Settings))
	for name := range c.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := (AgentSettings{}).Apply(c.Settings[name], c.StrictSettings); err != nil {
			return fmt.Errorf("settings for %q: %w", name, err)
		}
	}
	return nil
}

// GlobalConfig holds defaults that every agent inherits.
type GlobalConfig struct {
	Model               string  `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"default=gpt-4o-mini"`
	Temperature         float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2,default=0.7"`
	MaxTokens           int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"minimum=1,default=2000"`
	Timeout             int     `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Seconds,minimum=1,default=300"`
	RetryAttempts       int     `yaml:"retry_attempts,omitempty" json:"retry_attempts,omitempty" jsonschema:"default=3"`
	MaxConcurrentAgents int     `yaml:"max_concurrent_agents,omitempty" json:"max_concurrent_agents,omitempty" jsonschema:"minimum=1,default=5"`
}

func (c *GlobalConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 300
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.MaxConcurrentAgents == 0 {
		c.MaxConcurrentAgents = 5
	}
}

func (c *GlobalConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if c.MaxConcurrentAgents < 0 {
		return fmt.Errorf("max_concurrent_agents must be non-negative")
	}
	return nil
}

// DefaultSettings returns the settings an agent starts from.
func (c *GlobalConfig) DefaultSettings() AgentSettings {
	return AgentSettings{
		Enabled:       true,
		Model:         c.Model,
		Temperature:   c.Temperature,
		MaxTokens:     c.MaxTokens,
		Timeout:       c.Timeout,
		RetryAttempts: c.RetryAttempts,
	}
}

// AgentSettings resolves the effective settings for an agent: global
// defaults with the configured overrides applied.
func (c *Config) AgentSettings(name string) (AgentSettings, error) {
	base := c.Global.DefaultSettings()
	overrides, ok := c.Agents.Settings[name]
	if !ok {
		return base, nil
	}
	return base.Apply(overrides, c.Agents.StrictSettings)
}
