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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/agentmenu/pkg/combination"
	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/directory"
	"github.com/kadirpekel/agentmenu/pkg/execlog"
	"github.com/kadirpekel/agentmenu/pkg/observability"
	"github.com/kadirpekel/agentmenu/pkg/runs"
	"github.com/kadirpekel/agentmenu/pkg/server"
	"github.com/kadirpekel/agentmenu/pkg/supervisor"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

// app is every long-lived service built from one config.
type app struct {
	cfg        *config.Config
	pool       *config.DBPool
	obs        *observability.Manager
	agents     *directory.Directory
	settings   *config.SettingsStore
	supervisor *supervisor.Supervisor
	combos     *combination.Registry
	logs       execlog.Store
	runs       *runs.Manager
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, pool: config.NewDBPool()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.obs = observability.NewManager(cfg.Observability)
	if err := a.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if a.agents, err = directory.FromConfig(&cfg.Agents); err != nil {
		return nil, fmt.Errorf("failed to build agent directory: %w", err)
	}
	if a.settings, err = config.NewSettingsStore(cfg); err != nil {
		return nil, err
	}
	a.supervisor = supervisor.New(a.agents, a.settings,
		supervisor.WithMaxProcesses(cfg.Global.MaxConcurrentAgents))
	if err := a.obs.RegisterAgentGauges(a.agentUsage); err != nil {
		return nil, err
	}

	var opts []combination.Option
	if cfg.Combinations.Directory != "" {
		store, err := combination.NewFileStore(cfg.Combinations.Directory, cfg.Combinations.Format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, combination.WithStore(store))
	}
	a.combos = combination.NewRegistry(a.agents, opts...)
	if err := a.combos.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load combinations: %w", err)
	}
	if cfg.Combinations.PredefinedEnabled() {
		installed, err := a.combos.LoadPredefined(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to install predefined combinations: %w", err)
		}
		if len(installed) > 0 {
			slog.Info("Predefined combinations installed", "combinations", installed)
		}
	}

	if a.logs, err = execlog.New(ctx, &cfg.ExecutionLog, a.pool); err != nil {
		return nil, fmt.Errorf("failed to open execution log: %w", err)
	}

	executor := workflow.NewExecutor(a.invoker(), workflow.WithMaxConcurrency(cfg.Executor.MaxConcurrency))
	a.runs = runs.NewManager(a.combos, executor, a.logs,
		runs.WithTracer(a.obs.Tracer()),
		runs.WithMetrics(a.obs.Metrics()),
	)

	slog.Info("Agent directory ready", "agents", a.agents.Count(), "combinations", a.combos.Count())
	return a, nil
}

// invoker builds the step invocation chain: the configured invoker,
// bounded by step timeouts when enforced, wrapped in tracing and metrics.
func (a *app) invoker() workflow.Invoker {
	var inv workflow.Invoker
	switch a.cfg.Executor.Invoker {
	case config.InvokerProcess:
		inv = &workflow.ProcessInvoker{Runner: a.supervisor}
	default:
		inv = &workflow.SimulatedInvoker{Agents: a.agents, Latency: a.cfg.Executor.SimulatedLatency}
	}
	if a.cfg.Executor.TimeoutsEnforced() {
		inv = &workflow.TimeoutInvoker{Next: inv, Default: a.cfg.Executor.DefaultTimeout}
	}
	return &workflow.InstrumentedInvoker{Next: inv, Tracer: a.obs.Tracer(), Metrics: a.obs.Metrics()}
}

// agentUsage reports the last sampled usage of every running agent.
func (a *app) agentUsage() []observability.AgentUsage {
	var usage []observability.AgentUsage
	for _, st := range a.supervisor.List() {
		if st.Alive {
			usage = append(usage, observability.AgentUsage{Agent: st.Agent, CPUPercent: st.CPUPercent, MemoryMB: st.MemoryMB})
		}
	}
	return usage
}

func (a *app) serverDeps() server.Deps {
	return server.Deps{
		Agents:       a.agents,
		Settings:     a.settings,
		Processes:    a.supervisor,
		Combinations: a.combos,
		Runs:         a.runs,
	}
}

// reload re-reads combination definitions after a config change.
func (a *app) reload(ctx context.Context, cfg *config.Config) {
	if err := a.combos.Reload(ctx); err != nil {
		slog.Error("Failed to reload combinations", "error", err)
		return
	}
	if cfg.Combinations.PredefinedEnabled() {
		if _, err := a.combos.LoadPredefined(ctx); err != nil {
			slog.Error("Failed to install predefined combinations", "error", err)
		}
	}
}

// Close stops running executions and agent processes, then releases storage.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.runs != nil {
		errs = append(errs, a.runs.Shutdown(ctx))
	}
	if a.supervisor != nil {
		errs = append(errs, a.supervisor.StopAll(ctx))
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	errs = append(errs, a.pool.Close())
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
