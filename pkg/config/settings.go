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
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// EnvKeyPrefix marks an override key as an environment variable for the agent.
const EnvKeyPrefix = "env_"

// ErrUnknownSetting is returned in strict mode for keys outside the known set.
var ErrUnknownSetting = errors.New("unknown setting")

// AgentSettings are the tunables of one agent.
//
// Recognized override keys: enabled, model, temperature, max_tokens,
// timeout, retry_attempts. Keys prefixed with "env_" become environment
// variables (upper-cased, prefix removed). Anything else lands in Extra.
type AgentSettings struct {
	Enabled       bool              `yaml:"enabled" json:"enabled"`
	Model         string            `yaml:"model" json:"model"`
	Temperature   float64           `yaml:"temperature" json:"temperature"`
	MaxTokens     int               `yaml:"max_tokens" json:"max_tokens"`
	Timeout       int               `yaml:"timeout" json:"timeout"`
	RetryAttempts int               `yaml:"retry_attempts" json:"retry_attempts"`
	Env           map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Extra         map[string]any    `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// settingsOverride lists the recognized keys. Pointers tell "absent" from zero.
type settingsOverride struct {
	Enabled       *bool    `mapstructure:"enabled"`
	Model         *string  `mapstructure:"model"`
	Temperature   *float64 `mapstructure:"temperature"`
	MaxTokens     *int     `mapstructure:"max_tokens"`
	Timeout       *int     `mapstructure:"timeout"`
	RetryAttempts *int     `mapstructure:"retry_attempts"`
}

// Apply returns a copy of s with overrides applied. The receiver is not modified.
func (s AgentSettings) Apply(overrides map[string]any, strict bool) (AgentSettings, error) {
	out := s
	out.Env = maps.Clone(s.Env)
	out.Extra = maps.Clone(s.Extra)

	known := make(map[string]any, len(overrides))
	for key, value := range overrides {
		if rest, ok := strings.CutPrefix(key, EnvKeyPrefix); ok && rest != "" {
			if out.Env == nil {
				out.Env = make(map[string]string)
			}
			out.Env[strings.ToUpper(rest)] = fmt.Sprint(value)
			continue
		}
		known[key] = value
	}

	var ov settingsOverride
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &ov,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return s, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(known); err != nil {
		return s, fmt.Errorf("invalid setting value: %w", err)
	}

	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		if strict {
			return s, fmt.Errorf("%w: %s", ErrUnknownSetting, strings.Join(md.Unused, ", "))
		}
		if out.Extra == nil {
			out.Extra = make(map[string]any)
		}
		for _, key := range md.Unused {
			out.Extra[key] = known[key]
		}
	}

	if ov.Enabled != nil {
		out.Enabled = *ov.Enabled
	}
	if ov.Model != nil {
		out.Model = *ov.Model
	}
	if ov.Temperature != nil {
		if *ov.Temperature < 0 || *ov.Temperature > 2 {
			return s, fmt.Errorf("temperature must be between 0 and 2, got %v", *ov.Temperature)
		}
		out.Temperature = *ov.Temperature
	}
	if ov.MaxTokens != nil {
		out.MaxTokens = *ov.MaxTokens
	}
	if ov.Timeout != nil {
		out.Timeout = *ov.Timeout
	}
	if ov.RetryAttempts != nil {
		out.RetryAttempts = *ov.RetryAttempts
	}
	return out, nil
}

// Environ renders Env as KEY=VALUE pairs in sorted order.
func (s AgentSettings) Environ() []string {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}
	return env
}

// SettingsStore holds effective settings that can be changed at runtime.
type SettingsStore struct {
	mu       sync.RWMutex
	defaults AgentSettings
	strict   bool
	agents   map[string]AgentSettings
}

// NewSettingsStore seeds a store from cfg.
func NewSettingsStore(cfg *Config) (*SettingsStore, error) {
	st := &SettingsStore{
		defaults: cfg.Global.DefaultSettings(),
		strict:   cfg.Agents.StrictSettings,
		agents:   make(map[string]AgentSettings),
	}
	for name := range cfg.Agents.Settings {
		settings, err := cfg.AgentSettings(name)
		if err != nil {
			return nil, fmt.Errorf("settings for %q: %w", name, err)
		}
		st.agents[name] = settings
	}
	return st, nil
}

// Get returns the effective settings for name.
func (st *SettingsStore) Get(name string) AgentSettings {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if s, ok := st.agents[name]; ok {
		return s
	}
	return st.defaults
}

// Apply merges overrides into the settings for name and returns the result.
func (st *SettingsStore) Apply(name string, overrides map[string]any) (AgentSettings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	current, ok := st.agents[name]
	if !ok {
		current = st.defaults
	}
	updated, err := current.Apply(overrides, st.strict)
	if err != nil {
		return current, err
	}
	st.agents[name] = updated
	return updated, nil
}
