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

package transition

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// noopTracer backs Pipeline.PhaseTracer when a caller doesn't configure
// one, so startPhase never needs a nil check at each call site.
var noopTracer = noop.NewTracerProvider().Tracer("rivaas.dev/navigator/transition")

// startPhase wraps one pipeline phase (can-deactivate, can-activate,
// middleware) in its own child span, so a slow guard or a misbehaving
// middleware shows up distinctly under the overall per-navigation span
// the root package's ObservabilityRecorder creates.
func (p *Pipeline) startPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	tracer := p.PhaseTracer
	if tracer == nil {
		tracer = noopTracer
	}
	return tracer.Start(ctx, "navigator.transition."+phase, trace.WithAttributes(
		attribute.String("navigator.phase", phase),
	))
}

func endPhase(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
