// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package executor

import (
	"errors"
	"fmt"

	"github.com/hopfund/hopfund/planner"
)

var (
	// ErrMissingNode marks a step naming a node absent from the graph.
	ErrMissingNode = errors.New("node not in graph")

	// ErrMissingKey marks a step spending from a node without a signing
	// key.
	ErrMissingKey = errors.New("no signing key")

	// ErrNoCapability is returned when no capability is configured for
	// the kind of a step.
	ErrNoCapability = errors.New("no capability for step kind")

	// ErrNothingToMove is returned when a dynamic step resolves to an
	// empty amount.
	ErrNothingToMove = errors.New("dynamic amount resolved to zero")
)

// DispatchError is returned when a step fails.  The plan halts at Index and
// no later step is dispatched.
type DispatchError struct {
	Index int
	Step  planner.Step
	Err   error
}

// Error returns a description of the failed step.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("step %d (%v) failed: %v", e.Index, &e.Step, e.Err)
}

// Unwrap returns the underlying dispatch error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}
