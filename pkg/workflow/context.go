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
	"maps"
	"sync"
	"time"
)

// Record is the serializable view of a run. It is what status queries
// return and what the execution log persists.
type Record struct {
	CombinationName string         `json:"combination_name"`
	ExecutionID     string         `json:"execution_id"`
	Status          Status         `json:"status"`
	StepsCompleted  int            `json:"steps_completed"`
	TotalSteps      int            `json:"total_steps"`
	Results         map[string]any `json:"results"`
	Errors          []string       `json:"errors"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	CurrentStep     string         `json:"current_step,omitempty"`
	Result          any            `json:"result,omitempty"`
}

// Duration is the elapsed wall time, measured to now for live runs.
func (r Record) Duration() time.Duration {
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// ExecutionContext is the mutable state of one run. All methods are safe
// for concurrent use. Once the status is terminal the context is frozen
// and further mutations are ignored.
type ExecutionContext struct {
	mu sync.RWMutex

	combination    string
	executionID    string
	status         Status
	stepsCompleted int
	totalSteps     int
	results        map[string]any
	errors         []string
	startTime      time.Time
	endTime        *time.Time
	currentStep    string
	result         any

	now func() time.Time
}

func NewExecutionContext(combination, executionID string, totalSteps int) *ExecutionContext {
	ec := &ExecutionContext{
		combination: combination,
		executionID: executionID,
		status:      StatusRunning,
		totalSteps:  totalSteps,
		results:     make(map[string]any),
		errors:      []string{},
		now:         time.Now,
	}
	ec.startTime = ec.now()
	return ec
}

func (ec *ExecutionContext) ExecutionID() string { return ec.executionID }

func (ec *ExecutionContext) Combination() string { return ec.combination }

func (ec *ExecutionContext) Status() Status {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.status
}

// Finish moves the run to a terminal status. It returns false when the run
// was already terminal, in which case nothing changes.
func (ec *ExecutionContext) Finish(status Status, result any) bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.status.IsTerminal() {
		return false
	}
	end := ec.now()
	ec.status = status
	ec.endTime = &end
	ec.currentStep = ""
	if result != nil {
		ec.result = result
	}
	return true
}

func (ec *ExecutionContext) SetCurrentStep(id string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if !ec.status.IsTerminal() {
		ec.currentStep = id
	}
}

func (ec *ExecutionContext) StoreResult(stepID string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if !ec.status.IsTerminal() {
		ec.results[stepID] = value
	}
}

// Result looks up a completed step's result.
func (ec *ExecutionContext) Result(stepID string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.results[stepID]
	return v, ok
}

// Results returns a copy of the per-step results.
func (ec *ExecutionContext) Results() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return maps.Clone(ec.results)
}

func (ec *ExecutionContext) AddError(msg string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if !ec.status.IsTerminal() {
		ec.errors = append(ec.errors, msg)
	}
}

func (ec *ExecutionContext) HasErrors() bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.errors) > 0
}

// CompleteStep counts one finished step. The count never exceeds the total.
func (ec *ExecutionContext) CompleteStep() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if !ec.status.IsTerminal() && ec.stepsCompleted < ec.totalSteps {
		ec.stepsCompleted++
	}
}

// Snapshot copies the current state into a Record.
func (ec *ExecutionContext) Snapshot() Record {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	rec := Record{
		CombinationName: ec.combination,
		ExecutionID:     ec.executionID,
		Status:          ec.status,
		StepsCompleted:  ec.stepsCompleted,
		TotalSteps:      ec.totalSteps,
		Results:         maps.Clone(ec.results),
		Errors:          append([]string(nil), ec.errors...),
		StartTime:       ec.startTime,
		CurrentStep:     ec.currentStep,
		Result:          ec.result,
	}
	if rec.Errors == nil {
		rec.Errors = []string{}
	}
	if ec.endTime != nil {
		end := *ec.endTime
		rec.EndTime = &end
	}
	return rec
}
