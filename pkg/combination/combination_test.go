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

package combination

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmenu/pkg/directory"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

var knownAgents = []string{
	"advanced-web-researcher",
	"foundational-rag-agent",
	"linkedin-x-blog-content-creator",
	"ask-reddit-agent",
	"youtube-summary-agent",
	"tweet-generator-agent",
}

func testDirectory(t *testing.T, names ...string) *directory.Directory {
	t.Helper()
	d := directory.New()
	for _, n := range names {
		require.NoError(t, d.Add(directory.AgentInfo{Name: n}))
	}
	return d
}

func fixedNow() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := NewRegistry(testDirectory(t, knownAgents...), opts...)
	r.now = fixedNow
	return r
}

func TestDefineRejectsMissingAgents(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Define(context.Background(), "ghost-combo", []string{"advanced-web-researcher", "ghost-agent"}, nil, Metadata{})

	var missing *MissingAgentsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"ghost-agent"}, missing.Missing)
	assert.ErrorIs(t, err, ErrMissingAgents)
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, ok := r.Lookup("ghost-combo")
	assert.False(t, ok)
	assert.Zero(t, r.Count())
}

func TestDefineChecksStepAgentsToo(t *testing.T) {
	r := newTestRegistry(t)
	wf := &workflow.Workflow{Type: workflow.TopologyParallel, Steps: []workflow.Step{
		{ID: "s1", Agent: "ask-reddit-agent"},
		{ID: "s2", Agent: "unlisted-agent"},
	}}
	_, err := r.Define(context.Background(), "sneaky", []string{"ask-reddit-agent"}, wf, Metadata{})
	var missing *MissingAgentsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"unlisted-agent"}, missing.Missing)
}

func TestDefineDerivesSequentialWorkflow(t *testing.T) {
	r := newTestRegistry(t)
	agents := []string{"advanced-web-researcher", "foundational-rag-agent", "linkedin-x-blog-content-creator"}

	combo, err := r.Define(context.Background(), "pipeline", agents, nil, Metadata{Benefits: []string{"fast"}})
	require.NoError(t, err)

	assert.Equal(t, "Combination of advanced-web-researcher, foundational-rag-agent, linkedin-x-blog-content-creator", combo.Description)
	assert.Equal(t, agents, combo.Agents)
	assert.Equal(t, []string{"fast"}, combo.Benefits)
	assert.Equal(t, fixedNow(), combo.CreatedAt)

	wf := combo.Workflow
	assert.Equal(t, workflow.TopologySequential, wf.Type)
	require.Len(t, wf.Steps, 3)
	for i, step := range wf.Steps {
		assert.Equal(t, agents[i], step.Agent)
		assert.Equal(t, workflow.DefaultAction, step.Action)
		assert.Equal(t, []string{"result"}, step.Outputs)
		assert.Equal(t, 300, step.TimeoutSeconds)
	}
	assert.Equal(t, "step_1", wf.Steps[0].ID)
	assert.Equal(t, workflow.KindInput, wf.Steps[0].Inputs["query"].Kind())
	assert.Equal(t, workflow.KindPrevious, wf.Steps[1].Inputs["query"].Kind())
	assert.Equal(t, workflow.KindPrevious, wf.Steps[2].Inputs["query"].Kind())
	assert.Equal(t, "Execute AI Agent: Advanced Web Researcher", wf.Steps[0].Description)

	got, ok := r.Lookup("pipeline")
	require.True(t, ok)
	assert.Same(t, combo, got)
}

func TestDefineValidation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Define(ctx, "", []string{"ask-reddit-agent"}, nil, Metadata{})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = r.Define(ctx, "../escape", []string{"ask-reddit-agent"}, nil, Metadata{})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = r.Define(ctx, "nothing", nil, nil, Metadata{})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	dup := &workflow.Workflow{Type: workflow.TopologySequential, Steps: []workflow.Step{
		{ID: "same", Agent: "ask-reddit-agent"},
		{ID: "same", Agent: "tweet-generator-agent"},
	}}
	_, err = r.Define(ctx, "dup", nil, dup, Metadata{})
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.ErrorIs(t, err, workflow.ErrDuplicateStep)
	_, ok := r.Lookup("dup")
	assert.False(t, ok)
}

func TestDefineOverwritesAndRemove(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Define(ctx, "combo", []string{"ask-reddit-agent"}, nil, Metadata{Description: "v1"})
	require.NoError(t, err)
	_, err = r.Define(ctx, "combo", []string{"tweet-generator-agent"}, nil, Metadata{Description: "v2"})
	require.NoError(t, err)

	got, _ := r.Lookup("combo")
	assert.Equal(t, "v2", got.Description)
	assert.Equal(t, 1, r.Count())

	require.NoError(t, r.Remove(ctx, "combo"))
	assert.ErrorIs(t, r.Remove(ctx, "combo"), ErrNotFound)
}

func TestExplicitWorkflowFillsAgentsAndTopology(t *testing.T) {
	r := newTestRegistry(t)
	wf := &workflow.Workflow{Steps: []workflow.Step{
		{ID: "a", Agent: "ask-reddit-agent"},
		{ID: "b", Agent: "tweet-generator-agent"},
	}}
	combo, err := r.Define(context.Background(), "implicit", nil, wf, Metadata{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ask-reddit-agent", "tweet-generator-agent"}, combo.Agents)
	assert.Equal(t, workflow.TopologySequential, combo.Workflow.Type)
}

func TestLoadPredefinedInstallsOnlyAvailable(t *testing.T) {
	r := newTestRegistry(t)
	installed, err := r.LoadPredefined(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"content-research-pipeline", "social-media-analyzer"}, installed)
	_, ok := r.Lookup("business-intelligence-suite")
	assert.False(t, ok)

	social, ok := r.Lookup("social-media-analyzer")
	require.True(t, ok)
	assert.Equal(t, workflow.TopologyParallel, social.Workflow.Type)
	assert.Len(t, PredefinedNames(), 3)
}

func TestLoadPredefinedKeepsExistingDefinitions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	_, err := r.Define(ctx, "social-media-analyzer", []string{"ask-reddit-agent"}, nil, Metadata{Description: "mine"})
	require.NoError(t, err)

	installed, err := r.LoadPredefined(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"content-research-pipeline"}, installed)

	social, ok := r.Lookup("social-media-analyzer")
	require.True(t, ok)
	assert.Equal(t, "mine", social.Description)
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, format := range []string{FormatYAML, FormatJSON} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			store, err := NewFileStore(dir, format)
			require.NoError(t, err)

			r := newTestRegistry(t, WithStore(store))
			ctx := context.Background()
			_, err = r.LoadPredefined(ctx)
			require.NoError(t, err)
			_, err = r.Define(ctx, "custom", []string{"ask-reddit-agent", "tweet-generator-agent"}, nil, Metadata{UseCases: []string{"trends"}})
			require.NoError(t, err)

			_, err = os.Stat(filepath.Join(dir, "custom."+format))
			require.NoError(t, err)

			reloaded := newTestRegistry(t, WithStore(store))
			require.NoError(t, reloaded.Reload(ctx))
			require.Equal(t, r.Count(), reloaded.Count())

			for _, want := range r.List() {
				got, ok := reloaded.Lookup(want.Name)
				require.True(t, ok, want.Name)
				assert.Equal(t, want.Agents, got.Agents)
				assert.Equal(t, want.UseCases, got.UseCases)
				assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
				assertSameTopology(t, want.Workflow, got.Workflow)
			}

			require.NoError(t, reloaded.Remove(ctx, "custom"))
			_, err = os.Stat(filepath.Join(dir, "custom."+format))
			assert.True(t, errors.Is(err, os.ErrNotExist))
		})
	}
}

func assertSameTopology(t *testing.T, want, got workflow.Workflow) {
	t.Helper()
	assert.Equal(t, want.Type, got.Type)
	require.Len(t, got.Steps, len(want.Steps))
	for i := range want.Steps {
		w, g := want.Steps[i], got.Steps[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Agent, g.Agent)
		assert.Equal(t, w.TimeoutSeconds, g.TimeoutSeconds)
		require.Len(t, g.Inputs, len(w.Inputs))
		for name, in := range w.Inputs {
			assert.Equal(t, in.Kind(), g.Inputs[name].Kind(), "%s.%s", w.ID, name)
			assert.Equal(t, in.StepID(), g.Inputs[name].StepID(), "%s.%s", w.ID, name)
			assert.Equal(t, in.Value(), g.Inputs[name].Value(), "%s.%s", w.ID, name)
		}
	}
}

func TestFileStoreSwitchingFormatReplacesFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	combo := &Combination{Name: "c", Agents: []string{"a"}, Workflow: workflow.Workflow{Type: workflow.TopologySequential}}

	yamlStore, err := NewFileStore(dir, FormatYAML)
	require.NoError(t, err)
	require.NoError(t, yamlStore.Save(ctx, combo))

	jsonStore, err := NewFileStore(dir, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, jsonStore.Save(ctx, combo))

	loaded, err := jsonStore.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	_, err = NewFileStore(dir, "toml")
	assert.Error(t, err)
}

func TestFileStoreReportsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	store, err := NewFileStore(dir, FormatJSON)
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	assert.Error(t, err)
}

func TestDefineRecordsStepOnlyAgents(t *testing.T) {
	r := newTestRegistry(t)
	wf := &workflow.Workflow{Type: workflow.TopologySequential, Steps: []workflow.Step{
		{ID: "a", Agent: "ask-reddit-agent"},
		{ID: "b", Agent: "tweet-generator-agent"},
	}}
	combo, err := r.Define(context.Background(), "partial", []string{"youtube-summary-agent", "ask-reddit-agent"}, wf, Metadata{})
	require.NoError(t, err)
	assert.Equal(t, []string{"youtube-summary-agent", "ask-reddit-agent", "tweet-generator-agent"}, combo.Agents)
}

func TestReloadNormalizesStoredDefinitions(t *testing.T) {
	dir := t.TempDir()
	legacy := `name: legacy
agents: [ask-reddit-agent]
workflow:
  steps:
    - step_id: a
      agent_name: ask-reddit-agent
      inputs: {query: "${input}"}
    - step_id: b
      agent_name: tweet-generator-agent
      inputs: {topic: "${previous_result}"}
`
	dupes := `name: dupes
agents: [ask-reddit-agent]
workflow:
  type: sequential
  steps:
    - step_id: a
      agent_name: ask-reddit-agent
    - step_id: a
      agent_name: ghost-agent
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.yaml"), []byte(legacy), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dupes.yaml"), []byte(dupes), 0o644))

	store, err := NewFileStore(dir, FormatYAML)
	require.NoError(t, err)
	r := newTestRegistry(t, WithStore(store))
	require.NoError(t, r.Reload(context.Background()))

	_, ok := r.Lookup("dupes")
	assert.False(t, ok, "duplicate step ids must not load")
	assert.Equal(t, 1, r.Count())

	combo, ok := r.Lookup("legacy")
	require.True(t, ok)
	assert.Equal(t, workflow.TopologySequential, combo.Workflow.Type)
	assert.Equal(t, []string{"ask-reddit-agent", "tweet-generator-agent"}, combo.Agents)

	executor := workflow.NewExecutor(workflow.InvokerFunc(func(_ context.Context, step workflow.Step, _ map[string]any) (any, error) {
		return step.ID + " done", nil
	}))
	ec := workflow.NewExecutionContext(combo.Name, "exec-1", len(combo.Workflow.Steps))
	result, err := executor.Execute(context.Background(), combo.Workflow, ec, "topic")
	require.NoError(t, err)
	assert.Equal(t, "b done", result)
	assert.Equal(t, workflow.StatusCompleted, ec.Status())
}
