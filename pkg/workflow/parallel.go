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

	"golang.org/x/sync/errgroup"
)

// ParallelRunner starts every step at once and waits for all of them.
// Each step sees the run input and the results that existed before the
// phase began. A failed step leaves a FailureMarker in its slot without
// affecting its siblings.
type ParallelRunner struct{}

func (ParallelRunner) Topology() Topology { return TopologyParallel }

func (ParallelRunner) Run(ctx context.Context, run *Run) (any, error) {
	ec := run.Context
	scope := Scope{Input: run.Input, Previous: run.Input, Results: lookupMap(ec.Results())}

	resolved := make([]map[string]any, len(run.Steps))
	for i, step := range run.Steps {
		resolved[i] = scope.ResolveInputs(step.Inputs)
	}

	slots := make([]any, len(run.Steps))
	var g errgroup.Group
	if run.MaxConcurrency > 0 {
		g.SetLimit(run.MaxConcurrency)
	}
	for i, step := range run.Steps {
		g.Go(func() error {
			result, err := run.Invoker.Invoke(ctx, step, resolved[i])
			if err != nil {
				serr := stepError(step, err)
				msg := fmt.Sprintf("Error in parallel step %s: %v", step.ID, serr.Err)
				result = FailureMarker{Error: serr.Err.Error()}
				ec.AddError(msg)
			}
			slots[i] = result
			ec.StoreResult(step.ID, result)
			ec.CompleteStep()
			return nil
		})
	}
	_ = g.Wait()

	aggregate := make(map[string]any, len(run.Steps))
	for i, step := range run.Steps {
		aggregate[step.ID] = slots[i]
	}
	if err := ctx.Err(); err != nil {
		return aggregate, err
	}
	return aggregate, nil
}
