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
	"sync"

	"rivaas.dev/navigator/route"
	"rivaas.dev/navigator/transition"
)

// eventKind enumerates the navigation lifecycle events an Observer can
// subscribe to.
type eventKind int

const (
	eventTransitionStart eventKind = iota
	eventTransitionSuccess
	eventTransitionError
	eventTransitionCancelled
	eventRouterStart
	eventRouterStop
)

type transitionEvent struct {
	kind eventKind
	to   *transition.State
	from *transition.State
	err  error
}

// Observer receives navigation lifecycle events. Unlike a method
// monkey-patched onto a global Symbol.observable contract, this is a
// plain Go interface: Subscribe returns an explicit unsubscribe function.
type Observer interface {
	Next(to, from *State)
	Error(err error)
	Complete()
}

// ObserverFunc adapts a plain function to Observer for the common
// "only care about successful transitions" case.
type ObserverFunc func(to, from *State)

func (f ObserverFunc) Next(to, from *State) { f(to, from) }
func (f ObserverFunc) Error(error)          {}
func (f ObserverFunc) Complete()            {}

// StartObserver is an optional Observer extension: an observer that also
// wants TRANSITION_START (spec §6) implements it alongside Observer, the
// same way an http.ResponseWriter optionally implements http.Flusher. The
// event bus type-asserts for it at emit time; observers that don't
// implement it simply never see the start event.
type StartObserver interface {
	Start(to *State)
}

// RouterLifecycleObserver is an optional Observer extension for ROUTER_START
// and ROUTER_STOP (spec §6), following the same optional-interface pattern
// as StartObserver.
type RouterLifecycleObserver interface {
	RouterStart()
	RouterStop()
}

type eventBus struct {
	mu        sync.Mutex
	observers []Observer
	max       int
}

func newEventBus(max int) *eventBus {
	if max <= 0 {
		max = 1000
	}
	return &eventBus{max: max}
}

// Subscribe registers an observer and returns an idempotent unsubscribe
// function.
func (b *eventBus) Subscribe(o Observer) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.observers) >= b.max {
		return nil, route.New(route.ErrInvalidOption, "listener limit exceeded").WithField("limit", b.max)
	}
	b.observers = append(b.observers, o)
	unsubscribed := false
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if unsubscribed {
			return
		}
		unsubscribed = true
		for i, obs := range b.observers {
			if obs == o {
				b.observers = append(b.observers[:i], b.observers[i+1:]...)
				break
			}
		}
	}, nil
}

func (b *eventBus) emit(e transitionEvent) {
	b.mu.Lock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.Unlock()

	for _, o := range observers {
		switch e.kind {
		case eventTransitionStart:
			if so, ok := o.(StartObserver); ok {
				so.Start(e.to)
			}
		case eventTransitionSuccess:
			o.Next(e.to, e.from)
		case eventTransitionError, eventTransitionCancelled:
			o.Error(e.err)
		case eventRouterStart:
			if lo, ok := o.(RouterLifecycleObserver); ok {
				lo.RouterStart()
			}
		case eventRouterStop:
			if lo, ok := o.(RouterLifecycleObserver); ok {
				lo.RouterStop()
			}
		}
	}
}
