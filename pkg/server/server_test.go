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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmenu/pkg/combination"
	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/directory"
	"github.com/kadirpekel/agentmenu/pkg/execlog"
	"github.com/kadirpekel/agentmenu/pkg/observability"
	"github.com/kadirpekel/agentmenu/pkg/runs"
	"github.com/kadirpekel/agentmenu/pkg/supervisor"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

type fixture struct {
	handler http.Handler
	runs    *runs.Manager
}

func newFixture(t *testing.T, withProcesses bool) *fixture {
	t.Helper()

	dir := directory.New()
	for _, a := range []directory.AgentInfo{
		{Name: "web-researcher", RequiredCredentials: []string{"AGENTMENU_TEST_UNSET_KEY"}},
		{Name: "blog-content-writer"},
	} {
		require.NoError(t, dir.Add(a))
	}

	cfg := config.Default()
	settings, err := config.NewSettingsStore(cfg)
	require.NoError(t, err)

	combos := combination.NewRegistry(dir)
	store, err := execlog.NewFileStore(t.TempDir())
	require.NoError(t, err)
	executor := workflow.NewExecutor(&workflow.SimulatedInvoker{Agents: dir})
	manager := runs.NewManager(combos, executor, store, runs.WithMetrics(observability.NoopMetrics{}))
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	deps := Deps{Agents: dir, Settings: settings, Combinations: combos, Runs: manager}
	if withProcesses {
		deps.Processes = supervisor.New(dir, settings)
	}
	srv := New(config.ServerConfig{}, deps, WithObservability(observability.NoopManager()))
	return &fixture{handler: srv.Handler(), runs: manager}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAgentRoutes(t *testing.T) {
	f := newFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/agents/web-researcher", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "research", body["category"])

	rec, _ = f.do(t, http.MethodGet, "/api/agents/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/agents/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"web-researcher"}, body["research"])
	assert.Equal(t, []any{"blog-content-writer"}, body["content"])

	rec, body = f.do(t, http.MethodGet, "/api/agents/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total_agents"])
	assert.Equal(t, []any{"AGENTMENU_TEST_UNSET_KEY"}, body["credentials_required"])

	rec, body = f.do(t, http.MethodGet, "/api/agents/web-researcher/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, []any{"AGENTMENU_TEST_UNSET_KEY"}, body["missing_credentials"])
}

func TestSettingsRoutes(t *testing.T) {
	f := newFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/agents/web-researcher/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gpt-4o-mini", body["model"])

	rec, body = f.do(t, http.MethodPost, "/api/agents/web-researcher/settings", map[string]any{
		"temperature": 0.2,
		"env_api_key": "secret",
		"custom_flag": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.2, body["temperature"])
	assert.Equal(t, map[string]any{"API_KEY": "secret"}, body["env"])
	assert.Equal(t, map[string]any{"custom_flag": true}, body["extra"])

	rec, body = f.do(t, http.MethodGet, "/api/agents/web-researcher/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.2, body["temperature"])

	rec, _ = f.do(t, http.MethodPost, "/api/agents/web-researcher/settings", map[string]any{"temperature": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/agents/web-researcher/settings", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/agents/nobody/settings", map[string]any{"model": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessRoutes(t *testing.T) {
	f := newFixture(t, true)

	rec, _ := f.do(t, http.MethodPost, "/api/agents/web-researcher/launch", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "agent has no entry point")

	rec, _ = f.do(t, http.MethodPost, "/api/agents/web-researcher/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/api/agents/web-researcher/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "web-researcher", body["agent"])
	assert.Equal(t, false, body["alive"])

	disabled := newFixture(t, false)
	rec, _ = disabled.do(t, http.MethodPost, "/api/agents/web-researcher/launch", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

// stubProcesses reports a fixed status and health summary.
type stubProcesses struct {
	status  supervisor.ProcessStatus
	summary supervisor.HealthSummary
}

func (p *stubProcesses) Spawn(context.Context, string, ...string) (supervisor.ProcessStatus, error) {
	return p.status, nil
}

func (p *stubProcesses) Terminate(context.Context, string) error { return nil }

func (p *stubProcesses) Restart(context.Context, string) (supervisor.ProcessStatus, error) {
	return p.status, nil
}

func (p *stubProcesses) Status(agent string) (supervisor.ProcessStatus, bool) {
	return p.status, agent == p.status.Agent
}

func (p *stubProcesses) HealthSummary(context.Context) supervisor.HealthSummary { return p.summary }

func TestAgentResourceRoutes(t *testing.T) {
	dir := directory.New()
	require.NoError(t, dir.Add(directory.AgentInfo{Name: "web-researcher"}))
	procs := &stubProcesses{
		status: supervisor.ProcessStatus{
			Agent:      "web-researcher",
			PID:        4242,
			Alive:      true,
			Health:     supervisor.HealthHighLoad,
			CPUPercent: 93.5,
			MemoryMB:   256,
			Requests:   3,
		},
		summary: supervisor.HealthSummary{
			Overall:       supervisor.OverallWarning,
			Issues:        []string{"Agent web-researcher is under high load"},
			Agents:        map[string]supervisor.Health{"web-researcher": supervisor.HealthHighLoad},
			TotalAgents:   1,
			HealthyAgents: 0,
		},
	}
	srv := New(config.ServerConfig{}, Deps{Agents: dir, Processes: procs}, WithObservability(observability.NoopManager()))
	f := &fixture{handler: srv.Handler()}

	rec, body := f.do(t, http.MethodGet, "/api/agents/web-researcher/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "high_load", body["status"])
	assert.Equal(t, 93.5, body["cpu_percent"])
	assert.Equal(t, float64(256), body["memory_mb"])
	assert.Equal(t, float64(3), body["requests_count"])

	rec, body = f.do(t, http.MethodGet, "/api/agents/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warning", body["overall_health"])
	assert.Equal(t, map[string]any{"web-researcher": "high_load"}, body["agent_statuses"])
	assert.Equal(t, float64(1), body["total_agents"])

	disabled := newFixture(t, false)
	rec, _ = disabled.do(t, http.MethodGet, "/api/agents/health", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCombinationLifecycle(t *testing.T) {
	f := newFixture(t, false)

	rec, body := f.do(t, http.MethodPost, "/api/combinations", map[string]any{
		"name":   "broken",
		"agents": []string{"web-researcher", "ghost"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"ghost"}, body["missing_agents"])

	rec, _ = f.do(t, http.MethodPost, "/api/combinations", map[string]any{
		"name": "dupes",
		"workflow": map[string]any{
			"type": "sequential",
			"steps": []any{
				map[string]any{"step_id": "a", "agent_name": "web-researcher"},
				map[string]any{"step_id": "a", "agent_name": "blog-content-writer"},
			},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/api/combinations", map[string]any{
		"name":        "research-to-blog",
		"agents":      []string{"web-researcher", "blog-content-writer"},
		"description": "Research then write",
		"benefits":    []string{"speed"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "research-to-blog", body["name"])

	rec, body = f.do(t, http.MethodGet, "/api/combinations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/combinations/research-to-blog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wf, ok := body["workflow"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sequential", wf["type"])

	rec, _ = f.do(t, http.MethodPost, "/api/combinations/unknown/execute", map[string]any{"input": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/api/combinations/research-to-blog/execute", map[string]any{"input": "Go"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	id, _ := body["execution_id"].(string)
	require.NotEmpty(t, id)

	rec, _ = f.do(t, http.MethodGet, "/api/executions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := f.runs.Wait(context.Background(), id)
	require.NoError(t, err)

	var status map[string]any
	require.Eventually(t, func() bool {
		rec, status = f.do(t, http.MethodGet, "/api/executions/"+id, nil)
		return rec.Code == http.StatusOK && status["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 2, status["steps_completed"])
	assert.Equal(t, "research-to-blog", status["combination_name"])

	rec, body = f.do(t, http.MethodPost, "/api/executions/"+id+"/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "completed", body["status"])

	rec, _ = f.do(t, http.MethodGet, "/api/executions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.do(t, http.MethodPost, "/api/executions/missing/stop", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/combinations/research-to-blog", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = f.do(t, http.MethodDelete, "/api/combinations/research-to-blog", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	f := newFixture(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/combinations", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
