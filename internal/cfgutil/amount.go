// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"github.com/hopfund/hopfund/sol"
)

// AmountFlag embeds a sol.Amount and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field.  Values
// are SOL strings such as "1.5" or "0.25 SOL" and are parsed exactly.
type AmountFlag struct {
	sol.Amount
}

// NewAmountFlag creates an AmountFlag with a default sol.Amount.
func NewAmountFlag(defaultValue sol.Amount) *AmountFlag {
	return &AmountFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (a *AmountFlag) MarshalFlag() (string, error) {
	return a.Amount.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	amount, err := sol.ParseAmount(value)
	if err != nil {
		return err
	}
	a.Amount = amount
	return nil
}
