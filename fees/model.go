// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/hopfund/hopfund/sol"
)

const (
	// DefaultTxFee is the base fee charged for a transaction carrying one
	// signature.
	DefaultTxFee sol.Amount = 5000

	// DefaultSlippageBps is the conversion slippage tolerance used when
	// none is configured.
	DefaultSlippageBps = 100

	// bpsDenominator is the number of basis points in one whole.
	bpsDenominator = 10000
)

var (
	// ErrCostModelUnavailable is returned when the rent constants can not
	// be queried from the network.
	ErrCostModelUnavailable = errors.New("cost model unavailable")

	// ErrInvalidSlippage is returned for a slippage tolerance outside
	// [0, 10000) basis points.
	ErrInvalidSlippage = errors.New("slippage tolerance out of range")
)

// RentQuerier queries the rent-exempt minimum balances from the network.
type RentQuerier interface {
	// MinimumRentExemption returns the minimum balance that keeps a
	// data-less system account alive.
	MinimumRentExemption(ctx context.Context) (sol.Amount, error)

	// TokenAccountRentExemption returns the minimum balance of an SPL
	// token account.
	TokenAccountRentExemption(ctx context.Context) (sol.Amount, error)
}

// Params holds the locally configured parts of a Model.
type Params struct {
	TxFee       sol.Amount
	SwapFee     sol.Amount
	SlippageBps uint16
}

// Model is the fee and rent cost model of the network.
type Model struct {
	// TxFee is charged once for every signed transaction.
	TxFee sol.Amount

	// RentExempt is kept by every funded intermediate wallet.
	RentExempt sol.Amount

	// TokenAccountRent is paid whenever a token account is created.
	TokenAccountRent sol.Amount

	// SwapFee is the additional priority and routing cost of one
	// conversion on top of TxFee.
	SwapFee sol.Amount

	// SlippageBps is the tolerated loss of a single conversion.
	SlippageBps uint16
}

// Shape describes the cost-relevant parts of a topology.
type Shape struct {
	Transfers      int
	FundedAccounts int
	TokenAccounts  int
	Swaps          int
}

// Add returns the sum of two shapes.
func (s Shape) Add(o Shape) Shape {
	return Shape{
		Transfers:      s.Transfers + o.Transfers,
		FundedAccounts: s.FundedAccounts + o.FundedAccounts,
		TokenAccounts:  s.TokenAccounts + o.TokenAccounts,
		Swaps:          s.Swaps + o.Swaps,
	}
}

// String returns a compact description of the shape.
func (s Shape) String() string {
	return fmt.Sprintf("%d transfers, %d funded accounts, %d token "+
		"accounts, %d swaps", s.Transfers, s.FundedAccounts,
		s.TokenAccounts, s.Swaps)
}

// Cost returns the aggregate network cost of a topology with the given
// shape.
func (m Model) Cost(s Shape) sol.Amount {
	return sol.Amount(s.Transfers)*m.TxFee +
		sol.Amount(s.Swaps)*m.ConversionFee() +
		sol.Amount(s.FundedAccounts)*m.RentExempt +
		sol.Amount(s.TokenAccounts)*m.TokenAccountRent
}

// ConversionFee is the fee borne by the signer of one conversion.
func (m Model) ConversionFee() sol.Amount {
	return m.TxFee + m.SwapFee
}

// SlippageGross returns the smallest conversion input for which a round
// trip of two conversions, each losing at most SlippageBps, still yields at
// least net.
func (m Model) SlippageGross(net sol.Amount) sol.Amount {
	if net <= 0 {
		return 0
	}
	keep := bpsDenominator - int64(m.SlippageBps)
	once := grossUp(int64(net), keep)
	return sol.Amount(grossUp(once, keep))
}

// SlippageNet returns the guaranteed output of a round trip of two
// conversions of gross.
func (m Model) SlippageNet(gross sol.Amount) sol.Amount {
	return m.MinOut(m.MinOut(gross))
}

// MinOut returns the minimum output of a single conversion of amount.
func (m Model) MinOut(amount sol.Amount) sol.Amount {
	if amount <= 0 {
		return 0
	}
	keep := bpsDenominator - int64(m.SlippageBps)
	q, r := int64(amount)/bpsDenominator, int64(amount)%bpsDenominator
	return sol.Amount(q*keep + r*keep/bpsDenominator)
}

// Validate checks the model for values that can not produce a plan.
func (m Model) Validate() error {
	if m.TxFee < 0 || m.RentExempt < 0 || m.TokenAccountRent < 0 ||
		m.SwapFee < 0 {

		return fmt.Errorf("negative cost constant in model %+v", m)
	}
	if m.SlippageBps >= bpsDenominator {
		return ErrInvalidSlippage
	}
	return nil
}

// Query builds a Model from the locally configured params and the rent
// constants reported by the network.  Failures are not retried.
func Query(ctx context.Context, q RentQuerier, p Params) (Model, error) {
	rent, err := q.MinimumRentExemption(ctx)
	if err != nil {
		return Model{}, fmt.Errorf("%w: rent exemption: %w",
			ErrCostModelUnavailable, err)
	}
	tokenRent, err := q.TokenAccountRentExemption(ctx)
	if err != nil {
		return Model{}, fmt.Errorf("%w: token account rent: %w",
			ErrCostModelUnavailable, err)
	}

	m := Model{
		TxFee:            p.TxFee,
		RentExempt:       rent,
		TokenAccountRent: tokenRent,
		SwapFee:          p.SwapFee,
		SlippageBps:      p.SlippageBps,
	}
	if err := m.Validate(); err != nil {
		return Model{}, err
	}

	log.Debugf("Cost model: tx fee %v, rent %v, token rent %v, swap fee "+
		"%v, slippage %d bps", m.TxFee, m.RentExempt,
		m.TokenAccountRent, m.SwapFee, m.SlippageBps)

	return m, nil
}

// grossUp returns ceil(a*bpsDenominator/keep) without overflowing the
// intermediate product.  Results above MaxLamports saturate.
func grossUp(a, keep int64) int64 {
	q, r := a/keep, a%keep
	if q > sol.MaxLamports/bpsDenominator-1 {
		return sol.MaxLamports
	}
	return q*bpsDenominator + ceilDiv(r*bpsDenominator, keep)
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
