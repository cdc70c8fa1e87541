// Copyright 2025 The Rivaas Authors
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

package navigator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TransitionOutcome classifies how a completed navigation ended, used as a
// low-cardinality metrics/trace label.
type TransitionOutcome string

const (
	OutcomeSuccess   TransitionOutcome = "success"
	OutcomeCancelled TransitionOutcome = "cancelled"
	OutcomeError     TransitionOutcome = "error"
)

// ObservabilityRecorder provides unified lifecycle hooks for navigations,
// the SPA-router analogue of the teacher's per-HTTP-request recorder: the
// three pillars (metrics, tracing, access-style logging) are all driven
// from the same start/end pair, just keyed on a transition instead of a
// request.
//
// Lifecycle:
//  1. Router calls OnTransitionStart(ctx, fromName, toName, toPath) ->
//     (enrichedCtx, state). A nil state means "exclude this transition"
//     (OnTransitionEnd will still be called, with nil state, so recorders
//     can distinguish "excluded" from "never started").
//  2. The transition pipeline runs using the enriched context, so a
//     recorder's span is the parent of every guard/middleware call.
//  3. Router calls OnTransitionEnd(ctx, state, outcome, toName, err) once
//     the pipeline settles, however it settles.
//
// Thread safety: all methods must be safe for concurrent use, since the
// registry mutex does not serialize observability calls across Router
// instances sharing a recorder.
type ObservabilityRecorder interface {
	OnTransitionStart(ctx context.Context, fromName, toName, toPath string) (context.Context, any)
	OnTransitionEnd(ctx context.Context, state any, outcome TransitionOutcome, toName string, err error)
}

// otelObservability is an OpenTelemetry- and Prometheus-friendly default
// ObservabilityRecorder: metrics are recorded via the otel metric API (so
// they can be exported through otlpmetrichttp, stdoutmetric, or scraped
// via the Prometheus exporter bridge), and spans via the otel trace API.
type otelObservability struct {
	tracer   trace.Tracer
	counter  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTelObservability builds an ObservabilityRecorder on top of the given
// tracer and meter. Pass the global providers (otel.Tracer/otel.Meter) or
// ones built from a specific sdk/metric or sdk/trace provider to control
// export destinations, including the exporters/prometheus bridge.
func NewOTelObservability(tracer trace.Tracer, meter metric.Meter) (ObservabilityRecorder, error) {
	counter, err := meter.Int64Counter(
		"navigator.transitions",
		metric.WithDescription("Count of completed navigation transitions by outcome"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"navigator.transition.duration",
		metric.WithDescription("Navigation transition duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &otelObservability{tracer: tracer, counter: counter, duration: duration}, nil
}

type otelState struct {
	span  trace.Span
	start time.Time
	toName string
}

func (o *otelObservability) OnTransitionStart(ctx context.Context, fromName, toName, toPath string) (context.Context, any) {
	ctx, span := o.tracer.Start(ctx, "navigator.transition",
		trace.WithAttributes(
			attribute.String("navigator.from", fromName),
			attribute.String("navigator.to", toName),
			attribute.String("navigator.path", toPath),
		),
	)
	return ctx, &otelState{span: span, start: time.Now(), toName: toName}
}

func (o *otelObservability) OnTransitionEnd(ctx context.Context, state any, outcome TransitionOutcome, toName string, err error) {
	st, ok := state.(*otelState)
	if !ok || st == nil {
		return
	}
	elapsed := time.Since(st.start).Seconds()
	attrs := []attribute.KeyValue{
		attribute.String("navigator.outcome", string(outcome)),
		attribute.String("navigator.to", toName),
	}
	o.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	o.duration.Record(ctx, elapsed, metric.WithAttributes(attrs...))
	if err != nil {
		st.span.RecordError(err)
	}
	st.span.End()
}
