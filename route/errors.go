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

// Package route implements the path matcher and the route tree: parsing
// route patterns, matching paths against them, building paths from names
// and parameters, and assembling a named hierarchical trie of routes with
// precomputed lookup caches.
package route

import (
	"fmt"
	"strings"
)

// ErrCode enumerates the structured error codes a RouterError can carry.
// These mirror the navigation-runtime error table; programmer errors that
// never reach a caller as a RouterError (e.g. a panic during construction)
// are reported as plain errors instead.
type ErrCode string

const (
	// ErrRouteNotFound indicates a name→path or path→state lookup failed.
	ErrRouteNotFound ErrCode = "ROUTE_NOT_FOUND"
	// ErrCannotDeactivate indicates a deactivation guard returned falsy or threw.
	ErrCannotDeactivate ErrCode = "CANNOT_DEACTIVATE"
	// ErrCannotActivate indicates an activation guard returned falsy or threw.
	ErrCannotActivate ErrCode = "CANNOT_ACTIVATE"
	// ErrTransition indicates middleware returned an error or rejected.
	ErrTransition ErrCode = "TRANSITION_ERR"
	// ErrTransitionCancelled indicates the transition was superseded or stopped.
	ErrTransitionCancelled ErrCode = "TRANSITION_CANCELLED"
	// ErrConstraintViolation indicates a param value failed an inline constraint.
	ErrConstraintViolation ErrCode = "CONSTRAINT_VIOLATION"
	// ErrInvalidOption indicates a programmer error in router configuration.
	ErrInvalidOption ErrCode = "INVALID_OPTION"
	// ErrDuplicateRoute indicates two sibling routes share a name or path.
	ErrDuplicateRoute ErrCode = "DUPLICATE_ROUTE"
	// ErrInvalidRoute indicates a malformed route definition.
	ErrInvalidRoute ErrCode = "INVALID_ROUTE"
)

// RouterError is the structured error type raised by navigation-runtime
// failures (spec §7). It carries a classification code plus arbitrary
// structured metadata describing what went wrong.
//
// RouterError intentionally does not implement Unwrap for Fields values;
// fields are data, not a wrapped error chain. A RouterError can itself wrap
// an underlying cause via the Cause field.
type RouterError struct {
	Code    ErrCode
	Message string
	Fields  map[string]any
	Cause   error
}

// New creates a RouterError with the given code and message.
func New(code ErrCode, message string) *RouterError {
	return &RouterError{Code: code, Message: message}
}

// WithField returns a copy of err with the given key/value merged into Fields.
func (e *RouterError) WithField(key string, value any) *RouterError {
	cp := *e
	cp.Fields = make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	cp.Fields[key] = value
	return &cp
}

// WithCause returns a copy of err with Cause set.
func (e *RouterError) WithCause(cause error) *RouterError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// Recode returns a copy of err with its Code overwritten. Used by the
// transition pipeline to reclassify an error thrown from a hook into the
// phase's error code (spec §4.5).
func (e *RouterError) Recode(code ErrCode) *RouterError {
	cp := *e
	cp.Code = code
	return &cp
}

func (e *RouterError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		b.WriteString(" (")
		first := true
		for k, v := range e.Fields {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%s=%v", k, v)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *RouterError) Unwrap() error {
	return e.Cause
}

// As reports whether err itself is a *RouterError and returns it. It is a
// direct type assertion: a *RouterError wrapped inside another error is not
// found.
func As(err error) (*RouterError, bool) {
	re, ok := err.(*RouterError)
	return re, ok
}
