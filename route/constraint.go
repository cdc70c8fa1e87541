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

package route

import "regexp"

// Constraint represents a compiled inline constraint for a path parameter,
// declared in a pattern as ":name<regex>".
type Constraint struct {
	Param   string
	Pattern *regexp.Regexp
}

// constraintFromInline compiles a raw regex source into a Constraint. Used
// by Parse to compile a pattern's inline ":name<regex>" constraints.
// Panics on an invalid pattern: this is a programmer error caught at
// construction time, the same way the teacher's Where() panics on an
// invalid regex passed at startup.
func constraintFromInline(param, pattern string) Constraint {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		panic("route: invalid constraint pattern for parameter '" + param + "': " + err.Error())
	}
	return Constraint{Param: param, Pattern: re}
}

// ValidateConstraints checks params against constraints, failing with
// CONSTRAINT_VIOLATION listing the offending parameter, its actual value,
// and the required pattern (spec §4.1).
func ValidateConstraints(params map[string]string, constraints []Constraint, patternForMessage string) error {
	for _, c := range constraints {
		value, ok := params[c.Param]
		if !ok {
			continue
		}
		if !c.Pattern.MatchString(value) {
			return New(ErrConstraintViolation, "parameter value does not satisfy constraint").
				WithField("param", c.Param).
				WithField("value", value).
				WithField("pattern", c.Pattern.String()).
				WithField("route", patternForMessage)
		}
	}
	return nil
}
