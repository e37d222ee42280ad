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

package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateStep   = errors.New("duplicate step id")
	ErrStepTimeout     = errors.New("step timed out")
	ErrAgentNotFound   = errors.New("agent not found")
	ErrInvalidOutput   = errors.New("invalid agent output")
	ErrUnknownTopology = errors.New("unknown workflow topology")
)

// StepExecutionError reports a failed agent invocation.
type StepExecutionError struct {
	StepID string
	Agent  string
	Err    error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (agent %s): %v", e.StepID, e.Agent, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// stepError wraps err for step unless it already carries step context.
func stepError(step Step, err error) *StepExecutionError {
	var se *StepExecutionError
	if errors.As(err, &se) {
		return se
	}
	return &StepExecutionError{StepID: step.ID, Agent: step.Agent, Err: err}
}

// UnknownTopologyError is returned when no runner is registered for a topology.
type UnknownTopologyError struct {
	Topology Topology
}

func (e *UnknownTopologyError) Error() string {
	return fmt.Sprintf("unknown workflow type: %s", e.Topology)
}

func (e *UnknownTopologyError) Is(target error) bool { return target == ErrUnknownTopology }

// ExecutionError carries component and action context for executor failures.
type ExecutionError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func NewExecutionError(component, action, message string, err error) *ExecutionError {
	return &ExecutionError{Component: component, Action: action, Message: message, Err: err}
}
