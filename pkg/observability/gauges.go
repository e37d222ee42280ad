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

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AgentUsage is the resource usage of one running agent process.
type AgentUsage struct {
	Agent      string
	CPUPercent float64
	MemoryMB   float64
}

// RegisterAgentGauges exports agent process usage as observable gauges.
// source is read on every collection. It is a no-op when metrics are off.
func (m *Manager) RegisterAgentGauges(source func() []AgentUsage) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meterProvider == nil || source == nil {
		return nil
	}

	meter := m.meterProvider.Meter(instrumentationName)
	name := func(s string) string { return m.config.Metrics.Namespace + "_" + s }

	cpuGauge, err := meter.Float64ObservableGauge(
		name("agent_cpu_percent"),
		metric.WithDescription("CPU usage of running agent processes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create agent cpu gauge: %w", err)
	}
	memGauge, err := meter.Float64ObservableGauge(
		name("agent_memory_mb"),
		metric.WithDescription("Resident memory of running agent processes in megabytes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create agent memory gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, u := range source() {
			attrs := metric.WithAttributes(attribute.String(AttrAgentName, u.Agent))
			o.ObserveFloat64(cpuGauge, u.CPUPercent, attrs)
			o.ObserveFloat64(memGauge, u.MemoryMB, attrs)
		}
		return nil
	}, cpuGauge, memGauge)
	if err != nil {
		return fmt.Errorf("failed to register agent gauges: %w", err)
	}
	return nil
}
