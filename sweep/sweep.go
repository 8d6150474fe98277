// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hopfund/hopfund/chain"
	"github.com/hopfund/hopfund/planner"
	"github.com/hopfund/hopfund/sol"
)

// Sweeper empties a wallet to a destination.
type Sweeper interface {
	// SweepAll moves the lamport balance.  It returns an error wrapping
	// chain.ErrBelowFeeFloor, and sends nothing, when the balance does
	// not cover the fee.
	SweepAll(ctx context.Context, signer solana.PrivateKey,
		to solana.PublicKey) (chain.Receipt, error)

	// TransferToken moves the full balance of mint.  It returns an error
	// wrapping chain.ErrNothingToSend when there is none.
	TransferToken(ctx context.Context, signer solana.PrivateKey,
		to, mint solana.PublicKey) (chain.Receipt, error)
}

// A compile-time assertion to ensure the chain adapter can sweep.
var _ Sweeper = (*chain.Client)(nil)

// Result is the outcome of a single sweep transfer.
type Result struct {
	Node *planner.WalletNode

	// Mint is the token swept, or nil for the lamport balance.
	Mint *solana.PublicKey

	Receipt chain.Receipt
	Err     error
}

// Summary is the outcome of a sweep.
type Summary struct {
	Results []Result

	// Swept, Empty and Failed count lamport sweeps by outcome.
	Swept  int
	Empty  int
	Failed int

	// Tokens counts swept token balances.  Failed token sweeps are
	// counted in Failed.
	Tokens int

	// Total is the lamport amount moved to the destination.
	Total sol.Amount
}

// Err returns an error describing the failed wallets, or nil.
func (s *Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("failed %d sweep %s", s.Failed,
		pickNoun(s.Failed, "transfer", "transfers"))
}

// Sweep moves the balance of every controlled node to dest, one wallet at
// a time.  The balances of mints are moved first, while the wallet still
// holds the lamports to pay for them.  A failure is logged and counted and
// does not stop the sweep.  Wallets holding no more than the fee floor are
// left alone.
func Sweep(ctx context.Context, nodes []*planner.WalletNode,
	dest solana.PublicKey, sweeper Sweeper,
	mints ...solana.PublicKey) *Summary {

	summary := &Summary{}
	for _, n := range nodes {
		signer, ok := n.Signer()
		if !ok || n.Address.Equals(dest) {
			continue
		}

		for i := range mints {
			sweepToken(ctx, n, signer, dest, &mints[i], sweeper,
				summary)
		}

		receipt, err := sweeper.SweepAll(ctx, signer, dest)
		summary.Results = append(summary.Results, Result{
			Node:    n,
			Receipt: receipt,
			Err:     err,
		})

		switch {
		case errors.Is(err, chain.ErrBelowFeeFloor):
			log.Debugf("Nothing to sweep from %v", n)
			summary.Empty++

		case err != nil:
			log.Errorf("Failed to sweep %v: %v", n, err)
			summary.Failed++

		default:
			log.Infof("Swept %v from %v with transaction %v",
				receipt.Amount, n, receipt)
			summary.Swept++
			summary.Total += receipt.Amount
		}
	}

	if summary.Swept != 0 {
		log.Infof("Swept %v to %v across %d %s", summary.Total, dest,
			summary.Swept, pickNoun(summary.Swept, "wallet", "wallets"))
	}

	return summary
}

// sweepToken moves the balance of mint held by n to dest.
func sweepToken(ctx context.Context, n *planner.WalletNode,
	signer solana.PrivateKey, dest solana.PublicKey, mint *solana.PublicKey,
	sweeper Sweeper, summary *Summary) {

	receipt, err := sweeper.TransferToken(ctx, signer, dest, *mint)
	if errors.Is(err, chain.ErrNothingToSend) {
		log.Tracef("No %v held by %v", mint, n)
		return
	}

	summary.Results = append(summary.Results, Result{
		Node:    n,
		Mint:    mint,
		Receipt: receipt,
		Err:     err,
	})
	if err != nil {
		log.Errorf("Failed to sweep %v from %v: %v", mint, n, err)
		summary.Failed++
		return
	}

	log.Infof("Swept %d units of %v from %v with transaction %v",
		receipt.Amount, mint, n, receipt)
	summary.Tokens++
}

func pickNoun(n int, singularForm, pluralForm string) string {
	if n == 1 {
		return singularForm
	}
	return pluralForm
}
