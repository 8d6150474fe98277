// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/sol"
)

// chainLength is the number of hop wallets in a chain.
const chainLength = 3

// chainCheckpoints are the fixed fractions of the duration at which the
// serial chain stages run.  The recipient fan-out is spread over the tail
// after the last checkpoint in use.
var chainCheckpoints = []float64{0.05, 0.25, 0.45, 0.65, 0.85}

// Conversion configures the value conversion of a chain.
type Conversion struct {
	// Mint is the intermediate token the value is converted into.
	Mint solana.PublicKey

	// Pool is the liquidity pool executing both conversions.
	Pool solana.PublicKey
}

// ChainStrategy moves the distribution through a fixed chain of three hop
// wallets before the last hop pays every recipient.
//
// Without a Conversion the chain is funded once by the source and each hop
// forwards everything but its rent.  With a Conversion the first hop
// converts the value into Conversion.Mint and hands the tokens to the
// second hop, which converts them back before forwarding.
type ChainStrategy struct {
	Conversion *Conversion
}

// Name implements TopologyStrategy.
func (c *ChainStrategy) Name() string {
	if c.Conversion != nil {
		return "chain+swap"
	}
	return "chain"
}

// Cost implements TopologyStrategy.
func (c *ChainStrategy) Cost(total sol.Amount, recipients int,
	m fees.Model) sol.Amount {

	if c.Conversion == nil {
		return m.Cost(c.shape(recipients))
	}

	l, ok := c.conversionLayout(total, recipients, m)
	if !ok {
		fixed := m.Cost(c.shape(recipients))
		if fixed < total {
			return total
		}
		return fixed
	}
	return total - l.distribution
}

// shape returns the cost shape of the chain, excluding slippage.
func (c *ChainStrategy) shape(recipients int) fees.Shape {
	shape := fees.Shape{
		Transfers:      chainLength + recipients,
		FundedAccounts: chainLength,
	}
	if c.Conversion != nil {
		// The gas transfer and the token transfer to the second hop,
		// the two conversions and the two token accounts.
		shape = shape.Add(fees.Shape{
			Transfers:     2,
			TokenAccounts: 2,
			Swaps:         2,
		})
	}
	return shape
}

// conversionLayout holds the amounts of a chain with a conversion.
type conversionLayout struct {
	first        sol.Amount
	gross        sol.Amount
	gas          sol.Amount
	last         sol.Amount
	distribution sol.Amount
}

// conversionLayout sizes a converting chain top-down from the total: what
// remains of the first hop's funding after its own costs is converted, the
// guaranteed round trip output funds the last hop.
func (c *ChainStrategy) conversionLayout(total sol.Amount, recipients int,
	m fees.Model) (conversionLayout, bool) {

	var (
		fee     = m.TxFee
		convFee = m.ConversionFee()
		rent    = m.RentExempt
		token   = m.TokenAccountRent
	)

	// The second hop pays for converting back and forwarding, and keeps
	// its rent.
	gas := convFee + fee + rent

	first := total - fee
	grossMax := first - (convFee + token) - (gas + fee) - (fee + token) -
		rent
	if grossMax <= 0 {
		return conversionLayout{}, false
	}

	last := m.SlippageNet(grossMax)
	distribution := last - sol.Amount(recipients)*fee - rent
	if distribution <= 0 {
		return conversionLayout{}, false
	}

	return conversionLayout{
		first:        first,
		gross:        m.SlippageGross(last),
		gas:          gas,
		last:         last,
		distribution: distribution,
	}, true
}

// Build implements TopologyStrategy.
func (c *ChainStrategy) Build(b *Builder) error {
	hops := make([]*WalletNode, chainLength)
	for i := range hops {
		hop, err := b.NewHop(fmt.Sprintf("mixer %d", i+1))
		if err != nil {
			return err
		}
		hops[i] = hop
		b.Reserve(hop, b.Model().RentExempt)
	}

	if c.Conversion != nil {
		return c.buildConverting(b, hops)
	}
	return c.buildPlain(b, hops)
}

func (c *ChainStrategy) buildPlain(b *Builder, hops []*WalletNode) error {
	var (
		m          = b.Model()
		recipients = b.Recipients()
		n          = sol.Amount(len(recipients))
	)

	// Size the chain bottom-up: each hop receives what it forwards plus
	// the fees it pays and the rent it keeps.
	last := b.Distribution() + n*m.TxFee + m.RentExempt
	mid := last + m.TxFee + m.RentExempt
	first := mid + m.TxFee + m.RentExempt

	b.AddStep(Step{
		Kind:   KindTransfer,
		From:   b.Source().ID,
		To:     hops[0].ID,
		Amount: first,
		Offset: b.At(chainCheckpoints[0]),
		Stage:  0,
		Fee:    m.TxFee,
	})
	b.AddStep(Step{
		Kind:   KindTransfer,
		From:   hops[0].ID,
		To:     hops[1].ID,
		Amount: mid,
		Offset: b.At(chainCheckpoints[1]),
		Stage:  1,
		Fee:    m.TxFee,
	})
	b.AddStep(Step{
		Kind:   KindTransfer,
		From:   hops[1].ID,
		To:     hops[2].ID,
		Amount: last,
		Offset: b.At(chainCheckpoints[2]),
		Stage:  2,
		Fee:    m.TxFee,
	})

	c.fanOut(b, hops[2], 3, chainCheckpoints[3])
	return nil
}

func (c *ChainStrategy) buildConverting(b *Builder, hops []*WalletNode) error {
	m := b.Model()
	l, ok := c.conversionLayout(b.Total(), len(b.Recipients()), m)
	if !ok {
		return ErrInsufficientFunds
	}

	out := m.MinOut(l.gross)
	b.AddStep(Step{
		Kind:   KindTransfer,
		From:   b.Source().ID,
		To:     hops[0].ID,
		Amount: l.first,
		Offset: b.At(chainCheckpoints[0]),
		Stage:  0,
		Fee:    m.TxFee,
	})
	b.AddStep(Step{
		Kind:   KindSwap,
		From:   hops[0].ID,
		To:     hops[0].ID,
		Amount: l.gross,
		Offset: b.At(chainCheckpoints[1]),
		Stage:  1,
		Fee:    m.ConversionFee() + m.TokenAccountRent,
		Swap: &SwapParams{
			Pool:        c.Conversion.Pool,
			InputMint:   NativeMint,
			OutputMint:  c.Conversion.Mint,
			SlippageBps: m.SlippageBps,
			MinOut:      out,
		},
	})
	b.AddStep(Step{
		Kind:   KindTransfer,
		From:   hops[0].ID,
		To:     hops[1].ID,
		Amount: l.gas,
		Offset: b.At(chainCheckpoints[2]),
		Stage:  2,
		Fee:    m.TxFee,
	})
	b.AddStep(Step{
		Kind:            KindTokenTransfer,
		From:            hops[0].ID,
		To:              hops[1].ID,
		Amount:          out,
		AmountIsDynamic: true,
		Offset:          b.At(chainCheckpoints[2]),
		Stage:           2,
		Fee:             m.TxFee + m.TokenAccountRent,
		Token:           &TokenParams{Mint: c.Conversion.Mint},
	})
	b.AddStep(Step{
		Kind:            KindSwap,
		From:            hops[1].ID,
		To:              hops[1].ID,
		Amount:          out,
		AmountIsDynamic: true,
		Offset:          b.At(chainCheckpoints[3]),
		Stage:           3,
		Fee:             m.ConversionFee(),
		Swap: &SwapParams{
			Pool:        c.Conversion.Pool,
			InputMint:   c.Conversion.Mint,
			OutputMint:  NativeMint,
			SlippageBps: m.SlippageBps,
			MinOut:      m.SlippageNet(l.gross),
		},
	})
	b.AddStep(Step{
		Kind:   KindTransfer,
		From:   hops[1].ID,
		To:     hops[2].ID,
		Amount: l.last,
		Offset: b.At(chainCheckpoints[4]),
		Stage:  4,
		Fee:    m.TxFee,
	})

	c.fanOut(b, hops[2], 5, 0.90)
	return nil
}

// fanOut pays every recipient from the last hop at random offsets within
// the tail of the duration starting at from.
func (c *ChainStrategy) fanOut(b *Builder, last *WalletNode, stage int,
	from float64) {

	recipients := b.Recipients()
	shares := b.Split(b.Distribution(), len(recipients))
	for i, r := range recipients {
		b.AddStep(Step{
			Kind:     KindTransfer,
			From:     last.ID,
			To:       r.ID,
			Amount:   shares[i],
			Offset:   b.Within(from, 1),
			Stage:    stage,
			Fee:      b.Model().TxFee,
			Terminal: true,
		})
	}
}
