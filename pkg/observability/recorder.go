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
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records executor activity.
type Metrics interface {
	RunStarted(ctx context.Context, combination string)
	RunFinished(ctx context.Context, combination, status string, duration time.Duration)
	RecordStep(ctx context.Context, agent, status string, duration time.Duration)
	RecordHTTPRequest(ctx context.Context, method, route string, status int)
}

// PrometheusMetrics is the OpenTelemetry-backed recorder. The zero value
// records nothing.
type PrometheusMetrics struct {
	runsTotal    metric.Int64Counter
	runDuration  metric.Float64Histogram
	runsActive   metric.Int64UpDownCounter
	stepsTotal   metric.Int64Counter
	stepDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
}

func (m *PrometheusMetrics) RunStarted(ctx context.Context, combination string) {
	if m == nil || m.runsActive == nil {
		return
	}
	m.runsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCombination, combination)))
}

func (m *PrometheusMetrics) RunFinished(ctx context.Context, combination, status string, duration time.Duration) {
	if m == nil || m.runsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrCombination, combination),
		attribute.String(AttrStatus, status),
	)
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	m.runsActive.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrCombination, combination)))
}

func (m *PrometheusMetrics) RecordStep(ctx context.Context, agent, status string, duration time.Duration) {
	if m == nil || m.stepsTotal == nil {
		return
	}
	m.stepsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrStatus, status),
	))
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int) {
	if m == nil || m.httpRequests == nil {
		return
	}
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, strconv.Itoa(status)),
	))
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RunStarted(context.Context, string)                         {}
func (NoopMetrics) RunFinished(context.Context, string, string, time.Duration) {}
func (NoopMetrics) RecordStep(context.Context, string, string, time.Duration)  {}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int)     {}

var (
	metricsMu     sync.RWMutex
	globalMetrics Metrics = NoopMetrics{}
)

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if m == nil {
		m = NoopMetrics{}
	}
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
