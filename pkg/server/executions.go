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

	"github.com/kadirpekel/agentmenu/pkg/runs"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

func (s *Server) handleListExecutions(w http.ResponseWriter, _ *http.Request) {
	running := s.deps.Runs.ListRunning()
	if running == nil {
		running = []workflow.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": running, "count": len(running)})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Runs.GetStatus(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, runs.ErrExecutionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleStopExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stopped, err := s.deps.Runs.Stop(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stopped {
		writeJSON(w, http.StatusOK, map[string]any{"execution_id": id, "stopped": true})
		return
	}

	rec, err := s.deps.Runs.GetStatus(r.Context(), id)
	switch {
	case errors.Is(err, runs.ErrExecutionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusConflict, map[string]any{
			"execution_id": id,
			"stopped":      false,
			"status":       rec.Status,
		})
	}
}
