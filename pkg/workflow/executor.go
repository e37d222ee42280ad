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
	"log/slog"

	"github.com/kadirpekel/agentmenu/pkg/registry"
)

// Run is everything a topology runner needs for one execution.
type Run struct {
	Steps          []Step
	Input          any
	Context        *ExecutionContext
	Invoker        Invoker
	MaxConcurrency int
}

// TopologyRunner drives the steps of one topology. Step failures are
// recorded on the run context; the returned error reports why the run
// stopped early, if it did.
type TopologyRunner interface {
	Topology() Topology
	Run(ctx context.Context, run *Run) (any, error)
}

// TopologyRegistry maps topology names to runners.
type TopologyRegistry struct {
	*registry.BaseRegistry[TopologyRunner]
}

// NewTopologyRegistry returns a registry holding the built-in runners.
func NewTopologyRegistry() *TopologyRegistry {
	r := &TopologyRegistry{BaseRegistry: registry.NewBaseRegistry[TopologyRunner]()}
	for _, runner := range []TopologyRunner{SequentialRunner{}, ParallelRunner{}, ConditionalRunner{}} {
		_ = r.RegisterRunner(runner)
	}
	return r
}

func (r *TopologyRegistry) RegisterRunner(runner TopologyRunner) error {
	if runner == nil {
		return NewExecutionError("TopologyRegistry", "RegisterRunner", "runner cannot be nil", nil)
	}
	if runner.Topology() == "" {
		return NewExecutionError("TopologyRegistry", "RegisterRunner", "runner topology cannot be empty", nil)
	}
	return r.Upsert(string(runner.Topology()), runner)
}

// Executor runs workflows against an invoker.
type Executor struct {
	invoker        Invoker
	topologies     *TopologyRegistry
	maxConcurrency int
}

type ExecutorOption func(*Executor)

// WithMaxConcurrency caps parallel fan-out. Zero means unlimited.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *Executor) { e.maxConcurrency = n }
}

func WithTopologies(r *TopologyRegistry) ExecutorOption {
	return func(e *Executor) { e.topologies = r }
}

func NewExecutor(invoker Invoker, opts ...ExecutorOption) *Executor {
	e := &Executor{invoker: invoker}
	for _, opt := range opts {
		opt(e)
	}
	if e.topologies == nil {
		e.topologies = NewTopologyRegistry()
	}
	return e
}

// Supports reports whether a runner is registered for t.
func (e *Executor) Supports(t Topology) bool {
	_, ok := e.topologies.Get(string(t))
	return ok
}

// Execute drives wf to a terminal status on ec and returns the final result.
// An unknown topology fails the run before any step executes.
func (e *Executor) Execute(ctx context.Context, wf Workflow, ec *ExecutionContext, input any) (any, error) {
	log := slog.With("execution_id", ec.ExecutionID(), "combination", ec.Combination())

	runner, ok := e.topologies.Get(string(wf.Type))
	if !ok {
		err := &UnknownTopologyError{Topology: wf.Type}
		ec.AddError(err.Error())
		ec.Finish(StatusFailed, nil)
		log.Error("workflow rejected", "error", err)
		return nil, err
	}

	if len(wf.Steps) == 0 {
		ec.Finish(StatusCompleted, input)
		return input, nil
	}

	log.Debug("workflow started", "topology", wf.Type, "steps", len(wf.Steps))
	result, err := runner.Run(ctx, &Run{
		Steps:          wf.Steps,
		Input:          input,
		Context:        ec,
		Invoker:        e.invoker,
		MaxConcurrency: e.maxConcurrency,
	})

	switch {
	case err == nil:
		ec.Finish(StatusCompleted, result)
		log.Info("workflow completed", "topology", wf.Type)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		ec.Finish(StatusStopped, nil)
		log.Info("workflow stopped", "topology", wf.Type)
	default:
		ec.Finish(StatusFailed, nil)
		log.Warn("workflow failed", "topology", wf.Type, "error", err)
	}
	return result, err
}
