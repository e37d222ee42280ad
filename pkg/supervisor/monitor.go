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

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// DefaultMonitorInterval is the pause between two monitor sweeps.
const DefaultMonitorInterval = 30 * time.Second

// Load thresholds for agent processes.
const (
	highLoadCPUPercent = 90
	highLoadMemoryMB   = 1000
	idleCPUPercent     = 1
	idleAfter          = 5 * time.Minute
)

// Load thresholds for the host.
const (
	systemCPUWarnPercent    = 80
	systemMemoryWarnPercent = 80
	systemDiskCritPercent   = 90
)

// Health is the derived state of an agent process.
type Health string

const (
	HealthStarting Health = "starting"
	HealthRunning  Health = "running"
	HealthHighLoad Health = "high_load"
	HealthIdle     Health = "idle"
	HealthStopped  Health = "stopped"
	HealthError    Health = "error"
)

// Overall host and agent health reported by HealthSummary.
const (
	OverallHealthy  = "healthy"
	OverallWarning  = "warning"
	OverallCritical = "critical"
	OverallError    = "error"
)

// Usage is one resource sample of a process.
type Usage struct {
	CPUPercent float64
	MemoryMB   float64
}

// SystemUsage is one resource sample of the host.
type SystemUsage struct {
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryPercent     float64 `json:"memory_percent"`
	MemoryAvailableGB float64 `json:"memory_available_gb"`
	DiskPercent       float64 `json:"disk_percent"`
	DiskFreeGB        float64 `json:"disk_free_gb"`
}

// Sampler reads resource usage.
type Sampler interface {
	Process(ctx context.Context, pid int32) (Usage, error)
	System(ctx context.Context) (SystemUsage, error)
	// Forget drops any state kept for pid.
	Forget(pid int32)
}

// ProcessSampler samples through the operating system. Process handles
// are cached so CPU percentages are measured between consecutive samples;
// the first sample of a process reports zero CPU.
type ProcessSampler struct {
	// DiskPath is the mount sampled for disk usage. Defaults to "/".
	DiskPath string

	mu    sync.Mutex
	procs map[int32]*process.Process
}

func NewProcessSampler() *ProcessSampler {
	return &ProcessSampler{DiskPath: "/", procs: make(map[int32]*process.Process)}
}

func (s *ProcessSampler) handle(ctx context.Context, pid int32) (*process.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[pid]; ok {
		return p, nil
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	s.procs[pid] = p
	return p, nil
}

func (s *ProcessSampler) Process(ctx context.Context, pid int32) (Usage, error) {
	p, err := s.handle(ctx, pid)
	if err != nil {
		return Usage{}, err
	}
	cpuPercent, err := p.PercentWithContext(ctx, 0)
	if err != nil {
		return Usage{}, err
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, err
	}
	return Usage{CPUPercent: cpuPercent, MemoryMB: float64(info.RSS) / 1024 / 1024}, nil
}

func (s *ProcessSampler) System(ctx context.Context) (SystemUsage, error) {
	percents, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		return SystemUsage{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemUsage{}, fmt.Errorf("failed to read memory usage: %w", err)
	}
	path := s.DiskPath
	if path == "" {
		path = "/"
	}
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return SystemUsage{}, fmt.Errorf("failed to read disk usage: %w", err)
	}

	const gb = 1024 * 1024 * 1024
	usage := SystemUsage{
		MemoryPercent:     vm.UsedPercent,
		MemoryAvailableGB: float64(vm.Available) / gb,
		DiskPercent:       du.UsedPercent,
		DiskFreeGB:        float64(du.Free) / gb,
	}
	if len(percents) > 0 {
		usage.CPUPercent = percents[0]
	}
	return usage, nil
}

func (s *ProcessSampler) Forget(pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs, pid)
}

// deriveHealth classifies a live process from one sample.
func deriveHealth(u Usage, uptime time.Duration) Health {
	switch {
	case u.CPUPercent > highLoadCPUPercent || u.MemoryMB > highLoadMemoryMB:
		return HealthHighLoad
	case u.CPUPercent < idleCPUPercent && uptime > idleAfter:
		return HealthIdle
	default:
		return HealthRunning
	}
}

// sampleHealth maps a sampling failure onto a health state. A process we
// may not inspect is still running.
func sampleHealth(err error) Health {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning):
		return HealthStopped
	case errors.Is(err, os.ErrPermission):
		return HealthRunning
	default:
		return HealthError
	}
}

// HealthSummary is the aggregate view of the host and the supervised agents.
type HealthSummary struct {
	Overall       string            `json:"overall_health"`
	Issues        []string          `json:"issues"`
	System        *SystemUsage      `json:"system_metrics,omitempty"`
	SystemError   string            `json:"system_error,omitempty"`
	Agents        map[string]Health `json:"agent_statuses"`
	TotalAgents   int               `json:"total_agents"`
	HealthyAgents int               `json:"healthy_agents"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Sweep samples every live process and releases sampler state held for
// processes that have exited.
func (s *Supervisor) Sweep(ctx context.Context) {
	type target struct {
		p   *process
		pid int32
	}

	s.mu.Lock()
	var targets []target
	for _, p := range s.procs {
		pid := int32(p.cmd.Process.Pid)
		if p.alive() {
			targets = append(targets, target{p: p, pid: pid})
		} else if !p.released {
			s.sampler.Forget(pid)
			p.released = true
		}
	}
	s.mu.Unlock()

	for _, t := range targets {
		usage, err := s.sampler.Process(ctx, t.pid)
		health := sampleHealth(err)
		if err == nil {
			health = deriveHealth(usage, time.Since(t.p.started))
		} else if health == HealthError {
			slog.Warn("failed to sample agent process", "agent", t.p.agent, "pid", t.pid, "error", err)
		}

		s.mu.Lock()
		t.p.usage = usage
		t.p.health = health
		t.p.sampledAt = time.Now()
		s.mu.Unlock()
	}

	if sys, err := s.sampler.System(ctx); err != nil {
		slog.Warn("failed to sample system usage", "error", err)
	} else {
		for _, issue := range systemIssues(sys) {
			slog.Warn("system under load", "issue", issue)
		}
	}
}

// Monitor sweeps on every interval until ctx is cancelled.
func (s *Supervisor) Monitor(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Debug("process monitor started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func systemIssues(sys SystemUsage) []string {
	var issues []string
	if sys.CPUPercent > systemCPUWarnPercent {
		issues = append(issues, fmt.Sprintf("High CPU usage: %.1f%%", sys.CPUPercent))
	}
	if sys.MemoryPercent > systemMemoryWarnPercent {
		issues = append(issues, fmt.Sprintf("High memory usage: %.1f%%", sys.MemoryPercent))
	}
	if sys.DiskPercent > systemDiskCritPercent {
		issues = append(issues, fmt.Sprintf("Low disk space: %.1f%% used", sys.DiskPercent))
	}
	return issues
}

// HealthSummary samples the host and combines it with the last known
// health of every supervised agent.
func (s *Supervisor) HealthSummary(ctx context.Context) HealthSummary {
	summary := HealthSummary{
		Overall:   OverallHealthy,
		Issues:    []string{},
		Agents:    make(map[string]Health),
		Timestamp: time.Now(),
	}

	sys, err := s.sampler.System(ctx)
	if err != nil {
		summary.Overall = OverallError
		summary.SystemError = err.Error()
		summary.Issues = append(summary.Issues, "System metrics unavailable: "+err.Error())
	} else {
		summary.System = &sys
		if sys.CPUPercent > systemCPUWarnPercent || sys.MemoryPercent > systemMemoryWarnPercent {
			summary.Overall = OverallWarning
		}
		if sys.DiskPercent > systemDiskCritPercent {
			summary.Overall = OverallCritical
		}
		summary.Issues = append(summary.Issues, systemIssues(sys)...)
	}

	statuses := s.List()
	for _, st := range statuses {
		summary.Agents[st.Agent] = st.Health
		switch st.Health {
		case HealthRunning:
			summary.HealthyAgents++
		case HealthError:
			summary.Overall = OverallCritical
			summary.Issues = append(summary.Issues, fmt.Sprintf("Agent %s is in error state", st.Agent))
		case HealthHighLoad:
			if summary.Overall == OverallHealthy {
				summary.Overall = OverallWarning
			}
			summary.Issues = append(summary.Issues, fmt.Sprintf("Agent %s is under high load", st.Agent))
		}
	}
	summary.TotalAgents = len(statuses)
	return summary
}
