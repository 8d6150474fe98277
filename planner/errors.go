// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import "errors"

var (
	// ErrInsufficientFunds is returned when the total amount does not
	// exceed the cost of the topology.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoRecipients is returned for a request without recipients.
	ErrNoRecipients = errors.New("no recipients")

	// ErrDuplicateRecipient is returned when a recipient address is
	// listed more than once.
	ErrDuplicateRecipient = errors.New("duplicate recipient")

	// ErrSourceRecipient is returned when the source wallet is also
	// listed as a recipient.
	ErrSourceRecipient = errors.New("source wallet listed as recipient")

	// ErrInvalidSource is returned for a malformed source key.
	ErrInvalidSource = errors.New("invalid source key")

	// ErrInvalidDuration is returned for a negative duration.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrClosureViolated is returned by Verify when a wallet would spend
	// more than it receives.
	ErrClosureViolated = errors.New("balance closure violated")

	// ErrUnsorted is returned by Verify when steps are not in time order.
	ErrUnsorted = errors.New("steps not sorted by offset")

	// ErrUnknownNode is returned by Verify when a step references a node
	// that is not part of the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrRecipientCoverage is returned by Verify when a recipient is not
	// paid by exactly one terminal step.
	ErrRecipientCoverage = errors.New("recipient not paid exactly once")
)

// PlanningError is returned for every failure that prevents a graph from
// being built.  No transfer has been attempted when it is returned, so the
// caller may replan with different inputs.
type PlanningError struct {
	Strategy string
	Err      error
}

// Error implements the error interface.
func (e *PlanningError) Error() string {
	if e.Strategy == "" {
		return "planning failed: " + e.Err.Error()
	}
	return "planning " + e.Strategy + " topology failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PlanningError) Unwrap() error {
	return e.Err
}
