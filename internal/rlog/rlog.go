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

// Package rlog is the navigator module's ambient logging seam: a small
// interface callers can satisfy with any structured logger, and a
// log/slog-backed default so the router logs sensibly out of the box.
package rlog

import (
	"log/slog"
	"os"
)

// Logger is the minimal structured-logging surface the router uses for its
// own lifecycle messages (route registration, transition failures, plugin
// registry diagnostics). It is independent of the DiagnosticHandler/
// ObservabilityRecorder collaborators: those are opt-in event sinks, this
// is the always-on ambient log.
type Logger interface {
	Log(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Default returns a Logger backed by slog.Default(), used whenever a
// caller hasn't supplied one via WithLogger.
func Default() Logger {
	return slogLogger{l: slog.Default()}
}

// NewSlog wraps an existing *slog.Logger as a Logger.
func NewSlog(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Log(msg string, args ...any)   { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)   { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any)  { s.l.Error(msg, args...) }

// Discard is a Logger that drops everything: its handler's minimum level is
// above every level the Logger methods log at.
var Discard Logger = slogLogger{l: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 100}))}
