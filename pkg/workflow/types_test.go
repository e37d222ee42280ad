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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowValidate(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		wantErr string
	}{
		{name: "valid", steps: []Step{{ID: "s1", Agent: "a"}, {ID: "s2", Agent: "b"}}},
		{name: "empty id", steps: []Step{{Agent: "a"}}, wantErr: "step_id is required"},
		{name: "empty agent", steps: []Step{{ID: "s1"}}, wantErr: "agent_name is required"},
		{name: "negative timeout", steps: []Step{{ID: "s1", Agent: "a", TimeoutSeconds: -1}}, wantErr: "timeout"},
		{name: "duplicate", steps: []Step{{ID: "s1", Agent: "a"}, {ID: "s1", Agent: "b"}}, wantErr: "duplicate step id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Workflow{Type: TopologySequential, Steps: tt.steps}.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	err := Workflow{Steps: []Step{{ID: "x", Agent: "a"}, {ID: "x", Agent: "a"}}}.Validate()
	assert.ErrorIs(t, err, ErrDuplicateStep)
}

func TestWorkflowAgentsDeduplicates(t *testing.T) {
	wf := Workflow{Steps: []Step{
		{ID: "s1", Agent: "researcher"},
		{ID: "s2", Agent: "writer"},
		{ID: "s3", Agent: "researcher"},
	}}
	assert.Equal(t, []string{"researcher", "writer"}, wf.Agents())
}

func TestConditionsAllows(t *testing.T) {
	tests := []struct {
		name    string
		cond    *Conditions
		current any
		errored bool
		want    bool
	}{
		{name: "nil conditions", cond: nil, current: nil, want: true},
		{name: "has data with empty string", cond: &Conditions{HasData: boolPtr(true)}, current: "", want: false},
		{name: "has data with value", cond: &Conditions{HasData: boolPtr(true)}, current: "x", want: true},
		{name: "has data with empty map", cond: &Conditions{HasData: boolPtr(true)}, current: map[string]any{}, want: false},
		{name: "has data with zero", cond: &Conditions{HasData: boolPtr(true)}, current: 0, want: false},
		{name: "expects no data", cond: &Conditions{HasData: boolPtr(false)}, current: nil, want: true},
		{name: "contains match", cond: &Conditions{DataContains: strPtr("urgent")}, current: "an urgent note", want: true},
		{name: "contains miss", cond: &Conditions{DataContains: strPtr("urgent")}, current: "calm", want: false},
		{name: "contains on non-string", cond: &Conditions{DataContains: strPtr("1")}, current: 1, want: false},
		{name: "previous success without errors", cond: &Conditions{PreviousStepSuccess: boolPtr(true)}, want: true},
		{name: "previous success with errors", cond: &Conditions{PreviousStepSuccess: boolPtr(true)}, errored: true, want: false},
		{name: "expects failure", cond: &Conditions{PreviousStepSuccess: boolPtr(false)}, errored: true, want: true},
		{
			name:    "all must hold",
			cond:    &Conditions{HasData: boolPtr(true), DataContains: strPtr("go")},
			current: "python",
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Allows(tt.current, tt.errored))
		})
	}
}

func TestStepTimeoutFallback(t *testing.T) {
	assert.Equal(t, DefaultStepTimeout, Step{}.Timeout(DefaultStepTimeout))
	assert.Equal(t, 5*time.Second, Step{TimeoutSeconds: 5}.Timeout(DefaultStepTimeout))
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusRunning.IsTerminal())
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusStopped} {
		assert.True(t, s.IsTerminal(), s)
	}
}
