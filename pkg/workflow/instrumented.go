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

package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/agentmenu/pkg/observability"
)

// InstrumentedInvoker wraps an invoker with a span and step metrics.
type InstrumentedInvoker struct {
	Next    Invoker
	Tracer  trace.Tracer
	Metrics observability.Metrics
}

func (i *InstrumentedInvoker) Invoke(ctx context.Context, step Step, inputs map[string]any) (any, error) {
	tracer := i.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}
	metrics := i.Metrics
	if metrics == nil {
		metrics = observability.GetGlobalMetrics()
	}

	ctx, span := tracer.Start(ctx, observability.SpanStep,
		trace.WithAttributes(
			attribute.String(observability.AttrStepID, step.ID),
			attribute.String(observability.AttrAgentName, step.Agent),
			attribute.String(observability.AttrAction, step.Action),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := i.Next.Invoke(ctx, step, inputs)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, status))
	metrics.RecordStep(ctx, step.Agent, status, time.Since(start))
	return result, err
}
