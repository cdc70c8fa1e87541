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

//go:build js && wasm

package browser

import "syscall/js"

// JSEnvironment implements Environment against the real browser
// window.history / window.location objects via syscall/js.
type JSEnvironment struct {
	window js.Value
}

// NewJSEnvironment returns an Environment bound to the global window object.
func NewJSEnvironment() *JSEnvironment {
	return &JSEnvironment{window: js.Global().Get("window")}
}

func (j *JSEnvironment) CurrentURL() string {
	loc := j.window.Get("location")
	return loc.Get("pathname").String() + loc.Get("search").String() + loc.Get("hash").String()
}

// CurrentState returns window.history.state as a raw js.Value; callers
// that need a map[string]any (e.g. mergeState) must treat anything else,
// including this, as unmergeable and fall back to the new payload.
func (j *JSEnvironment) CurrentState() any {
	return j.window.Get("history").Get("state")
}

func (j *JSEnvironment) PushState(state any, url string) {
	j.window.Get("history").Call("pushState", toJSValue(state), "", url)
}

func (j *JSEnvironment) ReplaceState(state any, url string) {
	j.window.Get("history").Call("replaceState", toJSValue(state), "", url)
}

func (j *JSEnvironment) OnPopState(fn func(state any)) func() {
	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		var state any
		if len(args) > 0 {
			state = args[0].Get("state")
		}
		fn(state)
		return nil
	})
	j.window.Call("addEventListener", "popstate", cb)
	return func() {
		j.window.Call("removeEventListener", "popstate", cb)
		cb.Release()
	}
}

func toJSValue(v any) js.Value {
	if v == nil {
		return js.Null()
	}
	m, ok := v.(map[string]string)
	if !ok {
		return js.Null()
	}
	obj := js.Global().Get("Object").New()
	for k, val := range m {
		obj.Set(k, val)
	}
	return obj
}
