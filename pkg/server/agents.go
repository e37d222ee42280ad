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
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/agentmenu/pkg/directory"
	"github.com/kadirpekel/agentmenu/pkg/supervisor"
)

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	agents := s.deps.Agents.List()
	if agents == nil {
		agents = []*directory.AgentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "count": len(agents)})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Agents.Categories())
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Agents.Statistics())
}

// agent resolves {name} or writes a 404.
func (s *Server) agent(w http.ResponseWriter, r *http.Request) (*directory.AgentInfo, bool) {
	name := chi.URLParam(r, "name")
	info, ok := s.deps.Agents.GetAgent(name)
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found: "+name)
	}
	return info, ok
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	if info, ok := s.agent(w, r); ok {
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleValidateAgent(w http.ResponseWriter, r *http.Request) {
	info, ok := s.agent(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Agents.Validate(info.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if info, ok := s.agent(w, r); ok {
		writeJSON(w, http.StatusOK, s.deps.Settings.Get(info.Name))
	}
}

func (s *Server) handleApplySettings(w http.ResponseWriter, r *http.Request) {
	info, ok := s.agent(w, r)
	if !ok {
		return
	}
	var overrides map[string]any
	if err := decodeBody(r, &overrides); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(overrides) == 0 {
		writeError(w, http.StatusBadRequest, "no settings given")
		return
	}

	updated, err := s.deps.Settings.Apply(info.Name, overrides)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) processes(w http.ResponseWriter) (Processes, bool) {
	if s.deps.Processes == nil {
		writeError(w, http.StatusNotImplemented, "process supervision is disabled")
		return nil, false
	}
	return s.deps.Processes, true
}

func (s *Server) handleLaunchAgent(w http.ResponseWriter, r *http.Request) {
	info, ok := s.agent(w, r)
	if !ok {
		return
	}
	procs, ok := s.processes(w)
	if !ok {
		return
	}
	var body struct {
		Args []string `json:"args"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := procs.Spawn(r.Context(), info.Name, body.Args...)
	if err != nil {
		writeError(w, processErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	info, ok := s.agent(w, r)
	if !ok {
		return
	}
	procs, ok := s.processes(w)
	if !ok {
		return
	}
	if err := procs.Terminate(r.Context(), info.Name); err != nil {
		writeError(w, processErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": info.Name, "stopped": true})
}

func (s *Server) handleRestartAgent(w http.ResponseWriter, r *http.Request) {
	info, ok := s.agent(w, r)
	if !ok {
		return
	}
	procs, ok := s.processes(w)
	if !ok {
		return
	}
	status, err := procs.Restart(r.Context(), info.Name)
	if err != nil {
		writeError(w, processErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	info, ok := s.agent(w, r)
	if !ok {
		return
	}
	procs, ok := s.processes(w)
	if !ok {
		return
	}
	status, found := procs.Status(info.Name)
	if !found {
		status = supervisor.ProcessStatus{Agent: info.Name, Health: supervisor.HealthStopped}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAgentsHealth(w http.ResponseWriter, r *http.Request) {
	procs, ok := s.processes(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, procs.HealthSummary(r.Context()))
}

func processErrorStatus(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrAgentDisabled), errors.Is(err, supervisor.ErrNoEntryPoint):
		return http.StatusBadRequest
	case errors.Is(err, supervisor.ErrAlreadyRunning), errors.Is(err, supervisor.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, supervisor.ErrTooManyProcesses):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
