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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterErrorWithFieldIsImmutable(t *testing.T) {
	t.Parallel()
	base := New(ErrRouteNotFound, "no route")
	withOne := base.WithField("name", "home")
	withTwo := withOne.WithField("extra", 1)

	assert.Empty(t, base.Fields, "WithField must not mutate the receiver")
	assert.Len(t, withOne.Fields, 1)
	assert.Len(t, withTwo.Fields, 2)
}

func TestRouterErrorRecode(t *testing.T) {
	t.Parallel()
	base := New(ErrCannotActivate, "rejected")
	recoded := base.Recode(ErrTransitionCancelled)

	assert.Equal(t, ErrCannotActivate, base.Code, "Recode must not mutate the receiver")
	assert.Equal(t, ErrTransitionCancelled, recoded.Code)
}

func TestRouterErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := New(ErrTransition, "middleware failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
}

func TestRouterErrorAs(t *testing.T) {
	t.Parallel()
	err := New(ErrDuplicateRoute, "dup")
	re, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrDuplicateRoute, re.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestRouterErrorMessageIncludesFields(t *testing.T) {
	t.Parallel()
	err := New(ErrConstraintViolation, "bad value").WithField("param", "id")
	assert.Contains(t, err.Error(), "CONSTRAINT_VIOLATION")
	assert.Contains(t, err.Error(), "bad value")
	assert.Contains(t, err.Error(), "param=id")
}
