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
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics builds the OpenTelemetry meter provider backed by a private
// Prometheus registry and returns the recorder together with the scrape handler.
// A disabled config yields a nil-safe recorder and a nil handler.
func InitMetrics(_ context.Context, cfg MetricsConfig) (*PrometheusMetrics, http.Handler, *sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil, nil, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(instrumentationName)
	name := func(s string) string { return cfg.Namespace + "_" + s }

	runs, err := meter.Int64Counter(
		name("runs_total"),
		metric.WithDescription("Combination runs that reached a terminal status"),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		name("run_duration_seconds"),
		metric.WithDescription("Combination run duration in seconds"),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	activeRuns, err := meter.Int64UpDownCounter(
		name("runs_active"),
		metric.WithDescription("Combination runs currently executing"),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create active runs gauge: %w", err)
	}

	steps, err := meter.Int64Counter(
		name("steps_total"),
		metric.WithDescription("Workflow step invocations"),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create steps counter: %w", err)
	}

	stepDuration, err := meter.Float64Histogram(
		name("step_duration_seconds"),
		metric.WithDescription("Workflow step duration in seconds"),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create step duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		name("http_requests_total"),
		metric.WithDescription("HTTP API requests"),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	m := &PrometheusMetrics{
		runsTotal:    runs,
		runDuration:  runDuration,
		runsActive:   activeRuns,
		stepsTotal:   steps,
		stepDuration: stepDuration,
		httpRequests: httpRequests,
	}
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, provider, nil
}
