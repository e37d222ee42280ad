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
	"errors"
	"fmt"
	"time"
)

// DefaultAction is used when a step declares no action.
const DefaultAction = "process"

// Invoker performs one step against its agent.
type Invoker interface {
	Invoke(ctx context.Context, step Step, inputs map[string]any) (any, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, step Step, inputs map[string]any) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, step Step, inputs map[string]any) (any, error) {
	return f(ctx, step, inputs)
}

// CategoryLookup resolves an agent name to its category.
type CategoryLookup interface {
	AgentCategory(name string) (string, bool)
}

// SimulatedInvoker synthesizes category-shaped results without running
// anything. It is the default invoker for dry runs and tests.
type SimulatedInvoker struct {
	// Agents, when set, must know every invoked agent.
	Agents CategoryLookup

	// Latency is slept before each result, honoring cancellation.
	Latency time.Duration

	// Failures forces an error for a step id or agent name.
	Failures map[string]error

	Now func() time.Time
}

func (s *SimulatedInvoker) Invoke(ctx context.Context, step Step, inputs map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, stepError(step, err)
	}

	category := ""
	if s.Agents != nil {
		c, ok := s.Agents.AgentCategory(step.Agent)
		if !ok {
			return nil, stepError(step, fmt.Errorf("%w: %s", ErrAgentNotFound, step.Agent))
		}
		category = c
	}

	if err, ok := s.Failures[step.ID]; ok {
		return nil, stepError(step, err)
	}
	if err, ok := s.Failures[step.Agent]; ok {
		return nil, stepError(step, err)
	}

	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, stepError(step, ctx.Err())
		case <-timer.C:
		}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	action := step.Action
	if action == "" {
		action = DefaultAction
	}

	return map[string]any{
		"agent":     step.Agent,
		"action":    action,
		"timestamp": now().Format(time.RFC3339Nano),
		"status":    "success",
		"data":      simulatedData(category, step.Agent, action, inputs),
	}, nil
}

func simulatedData(category, agent, action string, inputs map[string]any) map[string]any {
	query := func(fallback string) any {
		if q, ok := inputs["query"]; ok {
			return q
		}
		return fallback
	}

	switch category {
	case "research":
		return map[string]any{
			"sources":      []any{"source1.com", "source2.com", "source3.com"},
			"summary":      fmt.Sprintf("Research results for: %v", query("unknown query")),
			"key_findings": []any{"Finding 1", "Finding 2", "Finding 3"},
			"confidence":   0.85,
		}
	case "content":
		return map[string]any{
			"content":           fmt.Sprintf("Generated content based on: %v", query("input data")),
			"format":            "markdown",
			"word_count":        500,
			"readability_score": 8.5,
		}
	case "business":
		return map[string]any{
			"analysis":        fmt.Sprintf("Business analysis for: %v", query("business domain")),
			"recommendations": []any{"Recommendation 1", "Recommendation 2"},
			"metrics":         map[string]any{"roi": 15.5, "market_size": "1.2B"},
			"risk_level":      "medium",
		}
	default:
		return map[string]any{
			"result":  fmt.Sprintf("Processed: %v", query("input data")),
			"details": fmt.Sprintf("Executed %s action on %s", action, agent),
		}
	}
}

// TimeoutInvoker bounds each invocation by the step timeout, or Default
// when the step sets none. The wrapped invoker is abandoned on expiry
// even if it ignores its context.
type TimeoutInvoker struct {
	Next    Invoker
	Default time.Duration
}

func (t *TimeoutInvoker) Invoke(ctx context.Context, step Step, inputs map[string]any) (any, error) {
	budget := step.Timeout(t.Default)
	if budget <= 0 {
		return t.Next.Invoke(ctx, step, inputs)
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := t.Next.Invoke(ctx, step, inputs)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(step, budget)
		}
		if o.err != nil {
			return nil, stepError(step, o.err)
		}
		return o.value, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(step, budget)
		}
		return nil, stepError(step, ctx.Err())
	}
}

func timeoutError(step Step, budget time.Duration) *StepExecutionError {
	return &StepExecutionError{
		StepID: step.ID,
		Agent:  step.Agent,
		Err:    fmt.Errorf("%w after %s", ErrStepTimeout, budget),
	}
}
