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

// Package runs launches combinations and tracks them until they reach a
// terminal status.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/agentmenu/pkg/combination"
	"github.com/kadirpekel/agentmenu/pkg/execlog"
	"github.com/kadirpekel/agentmenu/pkg/observability"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

const persistTimeout = 10 * time.Second

// Combinations resolves combination names for Launch.
type Combinations interface {
	Lookup(name string) (*combination.Combination, bool)
}

// Manager owns the live-run table. Terminal records are written to the
// execution log before a run leaves the table.
type Manager struct {
	combos   Combinations
	executor *workflow.Executor
	store    execlog.Store
	table    RunTable
	tracer   trace.Tracer
	metrics  observability.Metrics
	newID    func() string

	wg sync.WaitGroup
}

type Option func(*Manager)

func WithTable(t RunTable) Option {
	return func(m *Manager) { m.table = t }
}

func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

func WithMetrics(metrics observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithIDGenerator replaces the UUID execution id source.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

func NewManager(combos Combinations, executor *workflow.Executor, store execlog.Store, opts ...Option) *Manager {
	m := &Manager{
		combos:   combos,
		executor: executor,
		store:    store,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.table == nil {
		m.table = NewMemoryTable()
	}
	if m.tracer == nil {
		m.tracer = observability.Tracer()
	}
	if m.metrics == nil {
		m.metrics = observability.GetGlobalMetrics()
	}
	return m
}

// Launch starts the named combination in the background and returns its
// execution id. A workflow with an unsupported topology is recorded as
// failed and its id is returned together with the topology error.
func (m *Manager) Launch(ctx context.Context, name string, input any) (string, error) {
	combo, ok := m.combos.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCombinationNotFound, name)
	}

	id := m.newID()
	ec := workflow.NewExecutionContext(combo.Name, id, len(combo.Workflow.Steps))

	if !m.executor.Supports(combo.Workflow.Type) {
		_, err := m.executor.Execute(ctx, combo.Workflow, ec, input)
		m.persist(ec.Snapshot())
		return id, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	exec := &Execution{Context: ec, cancel: cancel, done: make(chan struct{})}
	m.table.Insert(exec)

	m.wg.Add(1)
	go m.run(runCtx, exec, combo, input)

	slog.Info("Combination launched", "combination", combo.Name, "execution_id", id)
	return id, nil
}

func (m *Manager) run(ctx context.Context, exec *Execution, combo *combination.Combination, input any) {
	defer m.wg.Done()
	defer close(exec.done)
	defer exec.cancel()

	ec := exec.Context
	ctx, span := m.tracer.Start(ctx, observability.SpanRun,
		trace.WithAttributes(
			attribute.String(observability.AttrCombination, combo.Name),
			attribute.String(observability.AttrExecutionID, ec.ExecutionID()),
			attribute.String(observability.AttrTopology, string(combo.Workflow.Type)),
		),
	)
	defer span.End()

	m.metrics.RunStarted(ctx, combo.Name)
	start := time.Now()

	_, err := m.executor.Execute(ctx, combo.Workflow, ec, input)

	rec := ec.Snapshot()
	span.SetAttributes(attribute.String(observability.AttrStatus, string(rec.Status)))
	if rec.Status == workflow.StatusFailed {
		if err == nil && len(rec.Errors) > 0 {
			err = errors.New(rec.Errors[len(rec.Errors)-1])
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	m.metrics.RunFinished(ctx, combo.Name, string(rec.Status), time.Since(start))

	m.persist(rec)
	m.table.Remove(ec.ExecutionID())
}

func (m *Manager) persist(rec workflow.Record) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Save(ctx, rec); err != nil {
		slog.Error("Failed to persist execution log", "execution_id", rec.ExecutionID, "error", err)
	}
}

// GetStatus returns the live record of a running execution, or the
// persisted record of a finished one.
func (m *Manager) GetStatus(ctx context.Context, id string) (workflow.Record, error) {
	if exec, ok := m.table.Get(id); ok {
		rec := exec.Context.Snapshot()
		if !rec.Status.IsTerminal() {
			return rec, nil
		}
		if stored, err := m.load(ctx, id); err == nil {
			return stored, nil
		}
		return normalize(rec), nil
	}
	return m.load(ctx, id)
}

func (m *Manager) load(ctx context.Context, id string) (workflow.Record, error) {
	if m.store == nil {
		return workflow.Record{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	rec, err := m.store.Get(ctx, id)
	if errors.Is(err, execlog.ErrNotFound) {
		return workflow.Record{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	return rec, err
}

// normalize gives a terminal live record the shape it has once read back
// from the log.
func normalize(rec workflow.Record) workflow.Record {
	data, err := json.Marshal(rec)
	if err != nil {
		return rec
	}
	var out workflow.Record
	if err := json.Unmarshal(data, &out); err != nil {
		return rec
	}
	return out
}

// Stop marks a running execution stopped, persists it and cancels its
// in-flight work. It reports false for unknown or already finished ids.
func (m *Manager) Stop(_ context.Context, id string) (bool, error) {
	exec, ok := m.table.Get(id)
	if !ok {
		return false, nil
	}
	if !exec.Context.Finish(workflow.StatusStopped, nil) {
		return false, nil
	}

	m.persist(exec.Context.Snapshot())
	m.table.Remove(id)
	exec.cancel()

	slog.Info("Execution stopped", "combination", exec.Context.Combination(), "execution_id", id)
	return true, nil
}

// ListRunning returns records of executions that have not finished,
// oldest first.
func (m *Manager) ListRunning() []workflow.Record {
	var out []workflow.Record
	for _, exec := range m.table.List() {
		rec := exec.Context.Snapshot()
		if !rec.Status.IsTerminal() {
			out = append(out, rec)
		}
	}
	return out
}

// Wait blocks until the execution's goroutine exits and returns its
// final record.
func (m *Manager) Wait(ctx context.Context, id string) (workflow.Record, error) {
	if exec, ok := m.table.Get(id); ok {
		select {
		case <-exec.done:
		case <-ctx.Done():
			return workflow.Record{}, ctx.Err()
		}
	}
	return m.GetStatus(ctx, id)
}

// Shutdown stops every running execution and waits for their goroutines.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, exec := range m.table.List() {
		if _, err := m.Stop(ctx, exec.Context.ExecutionID()); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
