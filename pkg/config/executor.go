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
	"time"
)

// Invoker kinds.
const (
	InvokerSimulated = "simulated"
	InvokerProcess   = "process"
)

// ExecutorConfig tunes the workflow executor.
type ExecutorConfig struct {
	// DefaultTimeout bounds a step that declares no timeout of its own.
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty" json:"default_timeout,omitempty" jsonschema:"type=string,default=300s"`

	// MaxConcurrency caps parallel steps within one run. Zero means unlimited.
	MaxConcurrency int `yaml:"max_concurrency,omitempty" json:"max_concurrency,omitempty" jsonschema:"minimum=0"`

	// EnforceTimeouts cancels step invocations that exceed their budget.
	// Default: true
	EnforceTimeouts *bool `yaml:"enforce_timeouts,omitempty" json:"enforce_timeouts,omitempty"`

	// Invoker selects how steps reach agents: simulated or process.
	Invoker string `yaml:"invoker,omitempty" json:"invoker,omitempty" jsonschema:"enum=simulated,enum=process,default=simulated"`

	// SimulatedLatency is how long each simulated step takes.
	SimulatedLatency time.Duration `yaml:"simulated_latency,omitempty" json:"simulated_latency,omitempty" jsonschema:"type=string"`
}

func (c *ExecutorConfig) SetDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 300 * time.Second
	}
	if c.EnforceTimeouts == nil {
		enforce := true
		c.EnforceTimeouts = &enforce
	}
	if c.Invoker == "" {
		c.Invoker = InvokerSimulated
	}
}

func (c *ExecutorConfig) Validate() error {
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must be non-negative")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be non-negative")
	}
	if c.SimulatedLatency < 0 {
		return fmt.Errorf("simulated_latency must be non-negative")
	}
	switch c.Invoker {
	case InvokerSimulated, InvokerProcess:
	default:
		return fmt.Errorf("invalid invoker %q (valid: simulated, process)", c.Invoker)
	}
	return nil
}

// TimeoutsEnforced reports whether step timeouts are enforced.
func (c *ExecutorConfig) TimeoutsEnforced() bool {
	return c.EnforceTimeouts == nil || *c.EnforceTimeouts
}
