// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds is returned when a wallet cannot cover an
	// amount plus the transaction fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBelowFeeFloor is returned by SweepAll when the balance of a
	// wallet does not exceed the transaction fee.  Nothing is sent.
	ErrBelowFeeFloor = errors.New("balance below fee floor")

	// ErrNetwork wraps every failed RPC call.
	ErrNetwork = errors.New("rpc failure")

	// ErrTransactionFailed is returned when a submitted transaction is
	// rejected by the cluster.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmTimeout is returned when a transaction does not reach
	// the configured commitment in time.
	ErrConfirmTimeout = errors.New("confirmation timed out")

	// ErrNothingToSend is returned when a token transfer finds an empty
	// token account.
	ErrNothingToSend = errors.New("empty token account")
)

// networkError wraps an RPC error with the name of the failed operation.
func networkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
}
