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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/agentmenu/pkg/combination"
	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/directory"
	"github.com/kadirpekel/agentmenu/pkg/observability"
	"github.com/kadirpekel/agentmenu/pkg/supervisor"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

// Agents is the directory view served under /api/agents.
type Agents interface {
	List() []*directory.AgentInfo
	GetAgent(name string) (*directory.AgentInfo, bool)
	Categories() map[string][]string
	Statistics() directory.Statistics
	Validate(name string) (directory.ValidationReport, error)
}

// Settings reads and patches per-agent settings.
type Settings interface {
	Get(name string) config.AgentSettings
	Apply(name string, overrides map[string]any) (config.AgentSettings, error)
}

// Processes controls long-running agent processes.
type Processes interface {
	Spawn(ctx context.Context, agent string, args ...string) (supervisor.ProcessStatus, error)
	Terminate(ctx context.Context, agent string) error
	Restart(ctx context.Context, agent string) (supervisor.ProcessStatus, error)
	Status(agent string) (supervisor.ProcessStatus, bool)
	HealthSummary(ctx context.Context) supervisor.HealthSummary
}

// Combinations manages combination definitions.
type Combinations interface {
	List() []*combination.Combination
	Lookup(name string) (*combination.Combination, bool)
	Define(ctx context.Context, name string, agents []string, wf *workflow.Workflow, meta combination.Metadata) (*combination.Combination, error)
	Remove(ctx context.Context, name string) error
}

// Runs launches and tracks executions.
type Runs interface {
	Launch(ctx context.Context, name string, input any) (string, error)
	GetStatus(ctx context.Context, id string) (workflow.Record, error)
	Stop(ctx context.Context, id string) (bool, error)
	ListRunning() []workflow.Record
}

// Deps are the services behind the API. Processes may be nil, in which
// case the process routes answer 501.
type Deps struct {
	Agents       Agents
	Settings     Settings
	Processes    Processes
	Combinations Combinations
	Runs         Runs
}

// Server is the HTTP API server.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	obs    *observability.Manager
	server *http.Server
}

type Option func(*Server)

// WithObservability traces and counts every request and serves the
// manager's scrape endpoint.
func WithObservability(obs *observability.Manager) Option {
	return func(s *Server) { s.obs = obs }
}

func New(cfg config.ServerConfig, deps Deps, opts ...Option) *Server {
	cfg.SetDefaults()
	s := &Server{cfg: cfg, deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Tracer(), s.obs.Metrics(), routePattern))
	}
	r.Use(loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, s.metricsPath(), s.metricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListAgents)
			r.Get("/categories", s.handleCategories)
			r.Get("/statistics", s.handleStatistics)
			r.Get("/health", s.handleAgentsHealth)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetAgent)
				r.Get("/validate", s.handleValidateAgent)
				r.Get("/settings", s.handleGetSettings)
				r.Post("/settings", s.handleApplySettings)
				r.Post("/launch", s.handleLaunchAgent)
				r.Post("/stop", s.handleStopAgent)
				r.Post("/restart", s.handleRestartAgent)
				r.Get("/status", s.handleAgentStatus)
			})
		})

		r.Route("/combinations", func(r chi.Router) {
			r.Get("/", s.handleListCombinations)
			r.Post("/", s.handleDefineCombination)
			r.Get("/{name}", s.handleGetCombination)
			r.Delete("/{name}", s.handleDeleteCombination)
			r.Post("/{name}/execute", s.handleExecute)
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.handleListExecutions)
			r.Get("/{id}", s.handleGetExecution)
			r.Post("/{id}/stop", s.handleStopExecution)
		})
	})

	return r
}

func (s *Server) metricsPath() string {
	if s.obs != nil {
		return s.obs.MetricsPath()
	}
	return observability.DefaultMetricsPath
}

func (s *Server) metricsHandler() http.Handler {
	if s.obs != nil {
		if h := s.obs.MetricsHandler(); h != nil {
			return h
		}
	}
	return promhttp.Handler()
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
