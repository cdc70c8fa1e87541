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

	"github.com/prometheus/client_golang/prometheus"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewPrometheusObservability wires an ObservabilityRecorder whose metrics
// are scraped through the given Prometheus registerer, using the otel
// Prometheus exporter bridge rather than hand-rolled prometheus
// collectors, so navigator metrics show up alongside any other
// OpenTelemetry-instrumented metrics in the same process.
func NewPrometheusObservability(reg *prometheus.Registry) (ObservabilityRecorder, error) {
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	tp := sdktrace.NewTracerProvider()
	return NewOTelObservability(tp.Tracer("rivaas.dev/navigator"), mp.Meter("rivaas.dev/navigator"))
}

// NewStdoutObservability wires an ObservabilityRecorder that prints
// metrics and spans to stdout, useful for local development and for the
// module's own examples/tests.
func NewStdoutObservability(ctx context.Context) (ObservabilityRecorder, func(context.Context) error, error) {
	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, err
	}
	traceExporter, err := stdouttrace.New()
	if err != nil {
		return nil, nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(metricExporter)))
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))

	rec, err := NewOTelObservability(tp.Tracer("rivaas.dev/navigator"), mp.Meter("rivaas.dev/navigator"))
	if err != nil {
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}
	return rec, shutdown, nil
}
