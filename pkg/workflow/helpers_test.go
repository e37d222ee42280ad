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
	"context"
	"sync"
)

// recordingInvoker returns canned results and remembers what each step received.
type recordingInvoker struct {
	mu       sync.Mutex
	results  map[string]any
	failures map[string]error
	calls    map[string]map[string]any
	order    []string
}

func newRecordingInvoker() *recordingInvoker {
	return &recordingInvoker{
		results:  map[string]any{},
		failures: map[string]error{},
		calls:    map[string]map[string]any{},
	}
}

func (r *recordingInvoker) Invoke(_ context.Context, step Step, inputs map[string]any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[step.ID] = inputs
	r.order = append(r.order, step.ID)
	if err, ok := r.failures[step.ID]; ok {
		return nil, err
	}
	if v, ok := r.results[step.ID]; ok {
		return v, nil
	}
	return "result of " + step.ID, nil
}

func (r *recordingInvoker) invoked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.calls[id]
	return ok
}

func (r *recordingInvoker) received(id string) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

type staticCategories map[string]string

func (s staticCategories) AgentCategory(name string) (string, bool) {
	c, ok := s[name]
	return c, ok
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
