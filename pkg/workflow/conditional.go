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
	"fmt"
	"log/slog"
)

// ConditionalRunner executes steps in order, skipping any whose conditions
// do not hold. A failing step ends the run unless it continues on error.
type ConditionalRunner struct{}

func (ConditionalRunner) Topology() Topology { return TopologyConditional }

func (ConditionalRunner) Run(ctx context.Context, run *Run) (any, error) {
	ec := run.Context
	current := run.Input

	for _, step := range run.Steps {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		if !step.Conditions.Allows(current, ec.HasErrors()) {
			slog.Debug("step skipped", "execution_id", ec.ExecutionID(), "step_id", step.ID)
			continue
		}
		ec.SetCurrentStep(step.ID)

		scope := Scope{Input: run.Input, Previous: current, Results: ec.Result}
		result, err := run.Invoker.Invoke(ctx, step, scope.ResolveInputs(step.Inputs))
		if err != nil {
			serr := stepError(step, err)
			ec.AddError(fmt.Sprintf("Error in conditional step %s: %v", step.ID, serr.Err))
			if !step.ContinueOnError || ctx.Err() != nil {
				return current, serr
			}
			continue
		}

		ec.StoreResult(step.ID, result)
		ec.CompleteStep()
		current = result
	}
	return current, nil
}
