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

// Package combination defines named multi-agent workflows and keeps them
// in a registry backed by an optional persistent store.
package combination

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kadirpekel/agentmenu/pkg/directory"
	"github.com/kadirpekel/agentmenu/pkg/registry"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

// Combination is a named workflow over a set of agents.
type Combination struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Agents      []string          `yaml:"agents" json:"agents"`
	Workflow    workflow.Workflow `yaml:"workflow" json:"workflow"`
	Benefits    []string          `yaml:"benefits,omitempty" json:"benefits,omitempty"`
	UseCases    []string          `yaml:"use_cases,omitempty" json:"use_cases,omitempty"`
	CreatedAt   time.Time         `yaml:"created_at" json:"created_at"`
}

// Metadata is the descriptive part of a definition.
type Metadata struct {
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Benefits    []string `yaml:"benefits,omitempty" json:"benefits,omitempty"`
	UseCases    []string `yaml:"use_cases,omitempty" json:"use_cases,omitempty"`
}

// AgentDirectory is the read-only view of agents that definitions need.
type AgentDirectory interface {
	GetAgent(name string) (*directory.AgentInfo, bool)
	Missing(names []string) []string
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// Registry holds the defined combinations.
type Registry struct {
	agents AgentDirectory
	store  Store
	combos *registry.BaseRegistry[*Combination]
	now    func() time.Time
}

type Option func(*Registry)

// WithStore persists every definition and removal.
func WithStore(s Store) Option {
	return func(r *Registry) { r.store = s }
}

func NewRegistry(agents AgentDirectory, opts ...Option) *Registry {
	r := &Registry{
		agents: agents,
		combos: registry.NewBaseRegistry[*Combination](),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Define validates and registers a combination, replacing any previous
// one of the same name. A nil wf derives a sequential workflow that
// threads each agent's output into the next.
func (r *Registry) Define(ctx context.Context, name string, agents []string, wf *workflow.Workflow, meta Metadata) (*Combination, error) {
	if !namePattern.MatchString(name) {
		return nil, &DefinitionError{Combination: name, Reason: "name must be alphanumeric with '-', '_' or '.'"}
	}
	if len(agents) == 0 && (wf == nil || len(wf.Steps) == 0) {
		return nil, &DefinitionError{Combination: name, Reason: "at least one agent is required"}
	}

	referenced := referencedAgents(agents, wf)
	if missing := r.agents.Missing(referenced); len(missing) > 0 {
		slog.Warn("combination rejected", "combination", name, "missing_agents", missing)
		return nil, &MissingAgentsError{Combination: name, Missing: missing}
	}

	var flow workflow.Workflow
	if wf == nil {
		flow = r.defaultWorkflow(agents)
	} else {
		flow = *wf
		if flow.Type == "" {
			flow.Type = workflow.TopologySequential
		}
	}
	if err := flow.Validate(); err != nil {
		return nil, &DefinitionError{Combination: name, Reason: "invalid workflow", Err: err}
	}

	description := meta.Description
	if description == "" {
		description = "Combination of " + strings.Join(referenced, ", ")
	}

	combo := &Combination{
		Name:        name,
		Description: description,
		Agents:      referenced,
		Workflow:    flow,
		Benefits:    meta.Benefits,
		UseCases:    meta.UseCases,
		CreatedAt:   r.now().UTC(),
	}

	if r.store != nil {
		if err := r.store.Save(ctx, combo); err != nil {
			return nil, fmt.Errorf("failed to persist combination %s: %w", name, err)
		}
	}
	if err := r.combos.Upsert(name, combo); err != nil {
		return nil, err
	}
	slog.Info("combination defined", "combination", name, "topology", flow.Type, "steps", len(flow.Steps))
	return combo, nil
}

// referencedAgents lists agents in declaration order followed by agents
// that only steps name.
func referencedAgents(agents []string, wf *workflow.Workflow) []string {
	referenced := slices.Clone(agents)
	if wf == nil {
		return referenced
	}
	for _, a := range wf.Agents() {
		if !slices.Contains(referenced, a) {
			referenced = append(referenced, a)
		}
	}
	return referenced
}

func (r *Registry) defaultWorkflow(agents []string) workflow.Workflow {
	wf := workflow.Workflow{Type: workflow.TopologySequential}
	for i, name := range agents {
		query := workflow.PreviousRef()
		if i == 0 {
			query = workflow.InputRef()
		}
		step := workflow.Step{
			ID:             fmt.Sprintf("step_%d", i+1),
			Agent:          name,
			Action:         workflow.DefaultAction,
			Inputs:         map[string]workflow.Input{"query": query},
			Outputs:        []string{"result"},
			TimeoutSeconds: int(workflow.DefaultStepTimeout / time.Second),
		}
		if info, ok := r.agents.GetAgent(name); ok && info.Description != "" {
			step.Description = "Execute " + truncate(info.Description, 50)
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf
}

// Lookup returns the named combination.
func (r *Registry) Lookup(name string) (*Combination, bool) {
	return r.combos.Get(name)
}

// List returns every combination sorted by name.
func (r *Registry) List() []*Combination {
	return r.combos.List()
}

func (r *Registry) Count() int { return r.combos.Count() }

// Remove unregisters a combination and deletes it from the store.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if _, ok := r.combos.Get(name); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if r.store != nil {
		if err := r.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete combination %s: %w", name, err)
		}
	}
	return r.combos.Remove(name)
}

// Reload replaces the registry contents with what the store holds.
// Definitions with an invalid workflow are skipped with a warning. Agents
// missing from the directory are logged and surface as step failures
// when run.
func (r *Registry) Reload(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	combos, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	r.combos.Clear()
	loaded := 0
	for _, c := range combos {
		if c.Workflow.Type == "" {
			c.Workflow.Type = workflow.TopologySequential
		}
		if err := c.Workflow.Validate(); err != nil {
			slog.Warn("skipping invalid stored combination", "combination", c.Name, "error", err)
			continue
		}
		c.Agents = referencedAgents(c.Agents, &c.Workflow)
		if missing := r.agents.Missing(c.Agents); len(missing) > 0 {
			slog.Warn("stored combination references unknown agents", "combination", c.Name, "missing_agents", missing)
		}
		if err := r.combos.Upsert(c.Name, c); err != nil {
			return err
		}
		loaded++
	}
	slog.Info("combinations loaded", "count", loaded, "skipped", len(combos)-loaded)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
