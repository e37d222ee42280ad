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

// Package supervisor starts, watches and stops agent processes.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/directory"
)

// DefaultGracePeriod is how long a terminated process may take to exit
// before it is killed.
const DefaultGracePeriod = 10 * time.Second

var (
	ErrUnknownAgent     = errors.New("unknown agent")
	ErrAgentDisabled    = errors.New("agent is disabled")
	ErrNoEntryPoint     = errors.New("agent has no entry point")
	ErrAlreadyRunning   = errors.New("agent is already running")
	ErrNotRunning       = errors.New("agent is not running")
	ErrTooManyProcesses = errors.New("too many agent processes")
)

// AgentSource resolves agent metadata.
type AgentSource interface {
	GetAgent(name string) (*directory.AgentInfo, bool)
}

// SettingsSource resolves effective agent settings.
type SettingsSource interface {
	Get(name string) config.AgentSettings
}

// ProcessStatus describes one supervised process. Resource figures come
// from the latest monitor sweep; request counts cover one-shot runs.
type ProcessStatus struct {
	Agent        string        `json:"agent"`
	PID          int           `json:"pid"`
	Alive        bool          `json:"alive"`
	StartedAt    time.Time     `json:"started_at"`
	Uptime       time.Duration `json:"uptime"`
	ExitError    string        `json:"exit_error,omitempty"`
	Health       Health        `json:"status"`
	CPUPercent   float64       `json:"cpu_percent"`
	MemoryMB     float64       `json:"memory_mb"`
	SampledAt    time.Time     `json:"sampled_at,omitzero"`
	Requests     int64         `json:"requests_count"`
	Errors       int64         `json:"errors_count"`
	LastActivity time.Time     `json:"last_activity,omitzero"`
}

type process struct {
	agent   string
	args    []string
	cmd     *exec.Cmd
	started time.Time
	done    chan struct{}
	exitErr error

	// Guarded by Supervisor.mu.
	usage     Usage
	health    Health
	sampledAt time.Time
	released  bool
}

// activity counts one-shot runs of an agent.
type activity struct {
	requests int64
	errors   int64
	last     time.Time
}

func (p *process) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *process) status() ProcessStatus {
	st := ProcessStatus{
		Agent:     p.agent,
		PID:       p.cmd.Process.Pid,
		Alive:     p.alive(),
		StartedAt: p.started,
	}
	if st.Alive {
		st.Uptime = time.Since(p.started)
		st.Health = p.health
		if st.Health == "" {
			st.Health = HealthStarting
		}
		st.CPUPercent = p.usage.CPUPercent
		st.MemoryMB = p.usage.MemoryMB
		st.SampledAt = p.sampledAt
	} else {
		st.Health = HealthStopped
		if p.exitErr != nil {
			st.ExitError = p.exitErr.Error()
		}
	}
	return st
}

// Supervisor owns the long-running agent processes, one per agent name.
type Supervisor struct {
	agents   AgentSource
	settings SettingsSource
	grace    time.Duration
	maxProcs int
	sampler  Sampler
	interval time.Duration

	mu    sync.Mutex
	procs map[string]*process

	activityMu sync.Mutex
	activity   map[string]*activity
}

type Option func(*Supervisor)

func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) { s.grace = d }
}

// WithMaxProcesses caps concurrently running agents. Zero means unlimited.
func WithMaxProcesses(n int) Option {
	return func(s *Supervisor) { s.maxProcs = n }
}

// WithSampler replaces the operating system sampler used by the monitor.
func WithSampler(sampler Sampler) Option {
	return func(s *Supervisor) { s.sampler = sampler }
}

func WithMonitorInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

func New(agents AgentSource, settings SettingsSource, opts ...Option) *Supervisor {
	s := &Supervisor{
		agents:   agents,
		settings: settings,
		grace:    DefaultGracePeriod,
		interval: DefaultMonitorInterval,
		procs:    make(map[string]*process),
		activity: make(map[string]*activity),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampler == nil {
		s.sampler = NewProcessSampler()
	}
	return s
}

// Command builds the command that runs an agent. The interpreter follows
// the entry point extension.
func (s *Supervisor) Command(ctx context.Context, agent string, args ...string) (*exec.Cmd, error) {
	info, ok := s.agents.GetAgent(agent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
	}
	if info.EntryPoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, agent)
	}

	var env []string
	if s.settings != nil {
		settings := s.settings.Get(agent)
		if !settings.Enabled {
			return nil, fmt.Errorf("%w: %s", ErrAgentDisabled, agent)
		}
		env = settings.Environ()
	}

	name, cmdArgs := interpreter(info.EntryPoint)
	cmd := exec.CommandContext(ctx, name, append(cmdArgs, args...)...)
	cmd.Dir = info.Path
	cmd.Env = append(os.Environ(), env...)
	return cmd, nil
}

func interpreter(entry string) (string, []string) {
	switch strings.ToLower(filepath.Ext(entry)) {
	case ".py":
		return "python3", []string{entry}
	case ".js", ".mjs":
		return "node", []string{entry}
	case ".go":
		return "go", []string{"run", entry}
	default:
		if filepath.IsAbs(entry) || strings.ContainsRune(entry, filepath.Separator) {
			return entry, nil
		}
		return "." + string(filepath.Separator) + entry, nil
	}
}

// Spawn starts a long-running process for agent.
func (s *Supervisor) Spawn(ctx context.Context, agent string, args ...string) (ProcessStatus, error) {
	if err := ctx.Err(); err != nil {
		return ProcessStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnLocked(agent, args)
}

func (s *Supervisor) spawnLocked(agent string, args []string) (ProcessStatus, error) {
	if p, ok := s.procs[agent]; ok && p.alive() {
		return s.statusLocked(p), fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, agent, p.cmd.Process.Pid)
	}
	if s.maxProcs > 0 && s.aliveLocked() >= s.maxProcs {
		return ProcessStatus{}, fmt.Errorf("%w: limit is %d", ErrTooManyProcesses, s.maxProcs)
	}

	// The process outlives the request that started it.
	cmd, err := s.Command(context.Background(), agent, args...)
	if err != nil {
		return ProcessStatus{}, err
	}
	log := slog.With("agent", agent)
	cmd.Stdout = &lineLogger{log: log, stream: "stdout"}
	cmd.Stderr = &lineLogger{log: log, stream: "stderr"}

	if err := cmd.Start(); err != nil {
		return ProcessStatus{}, fmt.Errorf("failed to start agent %s: %w", agent, err)
	}

	p := &process{agent: agent, args: args, cmd: cmd, started: time.Now(), done: make(chan struct{})}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
		log.Info("agent process exited", "pid", cmd.Process.Pid, "error", p.exitErr)
	}()
	s.procs[agent] = p
	log.Info("agent process started", "pid", cmd.Process.Pid)
	return s.statusLocked(p), nil
}

func (s *Supervisor) aliveLocked() int {
	n := 0
	for _, p := range s.procs {
		if p.alive() {
			n++
		}
	}
	return n
}

// statusLocked adds the agent's run counters to the process status.
func (s *Supervisor) statusLocked(p *process) ProcessStatus {
	st := p.status()
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	if a, ok := s.activity[p.agent]; ok {
		st.Requests = a.requests
		st.Errors = a.errors
		st.LastActivity = a.last
	}
	return st
}

func (s *Supervisor) recordRun(agent string, err error) {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	a, ok := s.activity[agent]
	if !ok {
		a = &activity{}
		s.activity[agent] = a
	}
	a.requests++
	if err != nil {
		a.errors++
	}
	a.last = time.Now()
}

// IsAlive reports whether agent has a running process.
func (s *Supervisor) IsAlive(agent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[agent]
	return ok && p.alive()
}

// Status reports the last known process of agent, or its run counters
// when it was never spawned.
func (s *Supervisor) Status(agent string) (ProcessStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[agent]; ok {
		return s.statusLocked(p), true
	}

	// Agents only ever run one-shot still report their counters.
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	a, ok := s.activity[agent]
	if !ok {
		return ProcessStatus{}, false
	}
	return ProcessStatus{
		Agent:        agent,
		Health:       HealthStopped,
		Requests:     a.requests,
		Errors:       a.errors,
		LastActivity: a.last,
	}, true
}

// List reports every known process sorted by agent name.
func (s *Supervisor) List() []ProcessStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProcessStatus, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, s.statusLocked(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Terminate sends SIGTERM and waits for the grace period, then kills.
func (s *Supervisor) Terminate(ctx context.Context, agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminateLocked(ctx, agent)
}

func (s *Supervisor) terminateLocked(ctx context.Context, agent string) error {
	p, ok := s.procs[agent]
	if !ok || !p.alive() {
		return fmt.Errorf("%w: %s", ErrNotRunning, agent)
	}

	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		slog.Warn("agent ignored SIGTERM, killing", "agent", agent, "pid", p.cmd.Process.Pid)
		_ = p.cmd.Process.Kill()
		<-p.done
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}

// Restart terminates agent if running and spawns it again with the same arguments.
func (s *Supervisor) Restart(ctx context.Context, agent string) (ProcessStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var args []string
	if p, ok := s.procs[agent]; ok {
		args = p.args
		if p.alive() {
			if err := s.terminateLocked(ctx, agent); err != nil {
				return ProcessStatus{}, err
			}
		}
		s.sampler.Forget(int32(p.cmd.Process.Pid))
	}
	delete(s.procs, agent)
	return s.spawnLocked(agent, args)
}

// StopAll terminates every running process.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for agent, p := range s.procs {
		if p.alive() {
			errs = append(errs, s.terminateLocked(ctx, agent))
		}
	}
	return errors.Join(errs...)
}

// RunOnce runs agent to completion with stdin and returns its stdout.
// Cancelling ctx sends SIGTERM and kills after the grace period.
func (s *Supervisor) RunOnce(ctx context.Context, agent string, stdin []byte) (out []byte, err error) {
	cmd, err := s.Command(ctx, agent)
	if err != nil {
		return nil, err
	}
	defer func() { s.recordRun(agent, err) }()
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = s.grace

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("agent %s: %w: %s", agent, err, msg)
		}
		return nil, fmt.Errorf("agent %s: %w", agent, err)
	}
	return stdout.Bytes(), nil
}

// lineLogger forwards process output to the logger one line at a time.
type lineLogger struct {
	log    *slog.Logger
	stream string
	buf    []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.log.Debug(string(l.buf[:i]), "stream", l.stream)
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}
