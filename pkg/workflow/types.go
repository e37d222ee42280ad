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

// Package workflow interprets declarative step graphs against named agents.
//
// A Workflow is an ordered list of Steps plus a Topology that decides how
// they run: one after another (sequential), all at once (parallel), or one
// after another gated by per-step Conditions (conditional). Step inputs are
// literals or references to the run input, the previous result, or a named
// step's result; references are parsed once when the workflow is decoded.
package workflow

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Topology selects the control-flow strategy of a workflow.
type Topology string

const (
	TopologySequential  Topology = "sequential"
	TopologyParallel    Topology = "parallel"
	TopologyConditional Topology = "conditional"
)

// Status is the lifecycle state of one run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// DefaultStepTimeout applies when neither the step nor the executor sets one.
const DefaultStepTimeout = 300 * time.Second

// Step is one agent invocation.
type Step struct {
	ID              string           `yaml:"step_id" json:"step_id"`
	Agent           string           `yaml:"agent_name" json:"agent_name"`
	Action          string           `yaml:"action,omitempty" json:"action,omitempty"`
	Description     string           `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs          map[string]Input `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs         []string         `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Conditions      *Conditions      `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	TimeoutSeconds  int              `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	ContinueOnError bool             `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
}

// Timeout returns the step budget, or fallback when the step declares none.
func (s Step) Timeout(fallback time.Duration) time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return fallback
}

// Workflow is a topology plus its ordered steps.
type Workflow struct {
	Type  Topology `yaml:"type" json:"type"`
	Steps []Step   `yaml:"steps" json:"steps"`
}

// Agents returns the distinct agent names in step order.
func (w Workflow) Agents() []string {
	seen := make(map[string]bool, len(w.Steps))
	var names []string
	for _, s := range w.Steps {
		if !seen[s.Agent] {
			seen[s.Agent] = true
			names = append(names, s.Agent)
		}
	}
	return names
}

// Validate checks the structural rules a definition must satisfy:
// every step has an id and an agent, and ids are unique.
// The topology is not checked here; unknown topologies fail at run time.
func (w Workflow) Validate() error {
	seen := make(map[string]int, len(w.Steps))
	for i, s := range w.Steps {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("step %d: step_id is required", i+1)
		}
		if strings.TrimSpace(s.Agent) == "" {
			return fmt.Errorf("step %q: agent_name is required", s.ID)
		}
		if s.TimeoutSeconds < 0 {
			return fmt.Errorf("step %q: timeout must be non-negative", s.ID)
		}
		if prev, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateStep, s.ID, prev+1, i+1)
		}
		seen[s.ID] = i
	}
	return nil
}

// Conditions gate a step in conditional workflows. Each set field must
// hold for the step to run; unset fields are ignored.
type Conditions struct {
	// HasData compares against whether the current data is non-empty.
	HasData *bool `yaml:"has_data,omitempty" json:"has_data,omitempty"`

	// DataContains requires the current data to be a string containing it.
	DataContains *string `yaml:"data_contains,omitempty" json:"data_contains,omitempty"`

	// PreviousStepSuccess compares against whether no error has been recorded.
	PreviousStepSuccess *bool `yaml:"previous_step_success,omitempty" json:"previous_step_success,omitempty"`
}

// Allows evaluates the conditions against the current data and error state.
func (c *Conditions) Allows(current any, errorsRecorded bool) bool {
	if c == nil {
		return true
	}
	if c.HasData != nil && !isEmpty(current) != *c.HasData {
		return false
	}
	if c.DataContains != nil {
		s, ok := current.(string)
		if !ok || !strings.Contains(s, *c.DataContains) {
			return false
		}
	}
	if c.PreviousStepSuccess != nil && !errorsRecorded != *c.PreviousStepSuccess {
		return false
	}
	return true
}

// isEmpty treats nil, zero scalars and empty strings, slices and maps as no data.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.IsZero()
	default:
		return false
	}
}

// FailureMarker occupies a parallel step's result slot when that step failed.
type FailureMarker struct {
	Error string `json:"error" yaml:"error"`
}
