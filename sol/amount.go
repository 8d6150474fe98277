// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sol provides the lamport denominated amount type used across
// hopfund.
package sol

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// LamportsPerSOL is the number of lamports in one SOL.
	LamportsPerSOL = 1e9

	// MaxLamports is the largest amount that can be represented.
	MaxLamports = math.MaxInt64

	// decimals is the number of fractional digits of one SOL.
	decimals = 9
)

var (
	// ErrInvalidAmount is returned for NaN, infinite or out of range
	// amounts.
	ErrInvalidAmount = errors.New("invalid SOL amount")

	// ErrTooPrecise is returned when a SOL string carries more than nine
	// fractional digits.
	ErrTooPrecise = errors.New("SOL amount has sub-lamport precision")
)

// Amount represents a quantity of lamports.  Token movements that are not
// denominated in SOL carry their lamport-equivalent value in an Amount as
// well.
type Amount int64

// NewAmount creates an Amount from a floating point value representing some
// number of SOL.  The value is rounded to the nearest lamport.
func NewAmount(f float64) (Amount, error) {
	switch {
	case math.IsNaN(f), math.IsInf(f, 0):
		return 0, ErrInvalidAmount
	}

	v := math.Round(f * LamportsPerSOL)
	if v > MaxLamports || v < -MaxLamports {
		return 0, ErrInvalidAmount
	}
	return Amount(v), nil
}

// ParseAmount parses a decimal SOL string, optionally suffixed with " SOL",
// into an exact lamport Amount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "SOL"))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.Exponent() < -decimals && !d.Equal(d.Truncate(decimals)) {
		return 0, ErrTooPrecise
	}

	lamports := d.Shift(decimals)
	if lamports.GreaterThan(decimal.NewFromInt(MaxLamports)) ||
		lamports.LessThan(decimal.NewFromInt(-MaxLamports)) {

		return 0, ErrInvalidAmount
	}
	return Amount(lamports.IntPart()), nil
}

// MustParse is like ParseAmount but panics on error.  It is intended for
// constants and tests.
func MustParse(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ToSOL returns the amount as a floating point number of SOL.
func (a Amount) ToSOL() float64 {
	return float64(a) / LamportsPerSOL
}

// Decimal returns the exact SOL value of the amount.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -decimals)
}

// Lamports returns the amount as an unsigned lamport count as expected by
// instruction builders.  Negative amounts yield zero.
func (a Amount) Lamports() uint64 {
	if a < 0 {
		return 0
	}
	return uint64(a)
}

// String returns the amount formatted in SOL with the unit suffix, e.g.
// "0.000005 SOL".
func (a Amount) String() string {
	return a.Decimal().String() + " SOL"
}
