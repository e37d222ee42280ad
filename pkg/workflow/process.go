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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// ProcessRunner runs an agent once, feeding stdin and returning stdout.
// Cancelling ctx must terminate the process.
type ProcessRunner interface {
	RunOnce(ctx context.Context, agent string, stdin []byte) ([]byte, error)
}

// ProcessRequest is the JSON document written to an agent's stdin.
type ProcessRequest struct {
	StepID string         `json:"step_id"`
	Action string         `json:"action"`
	Inputs map[string]any `json:"inputs"`
}

// ProcessInvoker runs each step as a one-shot agent process speaking JSON
// over stdin and stdout.
type ProcessInvoker struct {
	Runner ProcessRunner
}

func (p *ProcessInvoker) Invoke(ctx context.Context, step Step, inputs map[string]any) (any, error) {
	action := step.Action
	if action == "" {
		action = DefaultAction
	}
	payload, err := json.Marshal(ProcessRequest{StepID: step.ID, Action: action, Inputs: inputs})
	if err != nil {
		return nil, stepError(step, fmt.Errorf("encode request: %w", err))
	}

	out, err := p.Runner.RunOnce(ctx, step.Agent, payload)
	if err != nil {
		return nil, stepError(step, err)
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, stepError(step, fmt.Errorf("%w: empty stdout", ErrInvalidOutput))
	}
	var result any
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, stepError(step, fmt.Errorf("%w: %v", ErrInvalidOutput, err))
	}
	return result, nil
}
