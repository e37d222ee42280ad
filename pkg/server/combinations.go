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

	"github.com/kadirpekel/agentmenu/pkg/combination"
	"github.com/kadirpekel/agentmenu/pkg/runs"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

type defineRequest struct {
	Name     string             `json:"name"`
	Agents   []string           `json:"agents"`
	Workflow *workflow.Workflow `json:"workflow,omitempty"`
	combination.Metadata
}

type executeRequest struct {
	Input any `json:"input"`
}

func (s *Server) handleListCombinations(w http.ResponseWriter, _ *http.Request) {
	combos := s.deps.Combinations.List()
	if combos == nil {
		combos = []*combination.Combination{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"combinations": combos, "count": len(combos)})
}

func (s *Server) handleDefineCombination(w http.ResponseWriter, r *http.Request) {
	var req defineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	combo, err := s.deps.Combinations.Define(r.Context(), req.Name, req.Agents, req.Workflow, req.Metadata)
	var missing *combination.MissingAgentsError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "missing_agents": missing.Missing})
		return
	case errors.Is(err, combination.ErrInvalidDefinition):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, combo)
}

func (s *Server) handleGetCombination(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	combo, ok := s.deps.Combinations.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "combination not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, combo)
}

func (s *Server) handleDeleteCombination(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.deps.Combinations.Remove(r.Context(), name)
	switch {
	case errors.Is(err, combination.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.deps.Runs.Launch(r.Context(), name, req.Input)
	switch {
	case errors.Is(err, runs.ErrCombinationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrUnknownTopology):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "execution_id": id})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"execution_id": id,
			"combination":  name,
			"status":       workflow.StatusRunning,
		})
	}
}
