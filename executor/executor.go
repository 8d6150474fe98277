// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/hopfund/hopfund/chain"
	"github.com/hopfund/hopfund/planner"
	"github.com/hopfund/hopfund/sol"
	"github.com/hopfund/hopfund/swap"
	"github.com/lightningnetwork/lnd/clock"
)

// Transferer moves native SOL.
type Transferer interface {
	Transfer(ctx context.Context, signer solana.PrivateKey,
		to solana.PublicKey, amount sol.Amount) (chain.Receipt, error)
}

// Converter converts value held by a wallet between assets.
type Converter interface {
	Convert(ctx context.Context, signer solana.PrivateKey,
		req swap.Request) (chain.Receipt, error)
}

// TokenTransferer moves the full balance of an SPL token.
type TokenTransferer interface {
	TransferToken(ctx context.Context, signer solana.PrivateKey,
		to, mint solana.PublicKey) (chain.Receipt, error)
}

// BalanceQuerier reads balances used to resolve dynamic amounts.
type BalanceQuerier interface {
	Balance(ctx context.Context, addr solana.PublicKey) (sol.Amount, error)
	TokenBalance(ctx context.Context, owner,
		mint solana.PublicKey) (uint64, error)
}

// Compile-time assertions to ensure the network adapters provide the
// capabilities.
var (
	_ Transferer      = (*chain.Client)(nil)
	_ TokenTransferer = (*chain.Client)(nil)
	_ BalanceQuerier  = (*chain.Client)(nil)
	_ Converter       = (*swap.Client)(nil)
)

// Config holds the capabilities of an Executor.  Capabilities a graph does
// not use may be nil.
type Config struct {
	Transferer      Transferer
	Converter       Converter
	TokenTransferer TokenTransferer
	Balances        BalanceQuerier

	// Clock drives the schedule.  It defaults to the wall clock.
	Clock clock.Clock
}

// Completed records a dispatched step.
type Completed struct {
	Index   int
	Step    planner.Step
	Amount  sol.Amount
	Receipt chain.Receipt
	At      time.Time
}

// Skipped records a step dropped by an integrity check.
type Skipped struct {
	Index  int
	Step   planner.Step
	Reason error
}

// Report is the outcome of a run.
type Report struct {
	PlanID    uuid.UUID
	Started   time.Time
	Finished  time.Time
	Completed []Completed
	Skipped   []Skipped
}

// Executor walks a funding graph in time order and dispatches one step at
// a time.
type Executor struct {
	cfg Config
}

// New returns an Executor using the given capabilities.
func New(cfg Config) *Executor {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	return &Executor{cfg: cfg}
}

// Run executes the steps of g in their stored order, waiting until
// start+Offset before each one.  The first failing step halts the run with
// a *DispatchError.  Steps failing an integrity check are logged and
// skipped.  The report is returned in every case.
func (e *Executor) Run(ctx context.Context, g *planner.Graph,
	start time.Time) (*Report, error) {

	report := &Report{
		PlanID:  g.ID,
		Started: e.cfg.Clock.Now(),
	}
	defer func() {
		report.Finished = e.cfg.Clock.Now()
	}()

	log.Infof("Executing plan %v: %d steps starting %v", g.ID,
		len(g.Steps), start.Format(time.RFC3339))

	for i := range g.Steps {
		step := g.Steps[i]

		if err := e.waitUntil(ctx, start.Add(step.Offset)); err != nil {
			return report, err
		}

		from, to, err := resolveNodes(g, &step)
		if err != nil {
			log.Warnf("Skipping step %d (%v): %v", i, &step, err)
			report.Skipped = append(report.Skipped, Skipped{
				Index:  i,
				Step:   step,
				Reason: err,
			})
			continue
		}

		log.Debugf("Dispatching step %d/%d: %v", i+1, len(g.Steps),
			&step)

		amount, receipt, err := e.dispatch(ctx, g, &step, from, to)
		if err != nil {
			log.Errorf("Step %d (%v) failed, halting plan: %v", i,
				&step, err)
			return report, &DispatchError{Index: i, Step: step, Err: err}
		}

		report.Completed = append(report.Completed, Completed{
			Index:   i,
			Step:    step,
			Amount:  amount,
			Receipt: receipt,
			At:      e.cfg.Clock.Now(),
		})

		log.Infof("Step %d/%d done: %v %s -> %s (%v)", i+1,
			len(g.Steps), step.Kind, from, to, receipt)
	}

	log.Infof("Plan %v complete: %d steps dispatched, %d skipped", g.ID,
		len(report.Completed), len(report.Skipped))

	return report, nil
}

// waitUntil blocks until the clock reaches at or ctx is cancelled.
func (e *Executor) waitUntil(ctx context.Context, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wait := at.Sub(e.cfg.Clock.Now())
	if wait <= 0 {
		return nil
	}

	log.Tracef("Waiting %v until %v", wait, at.Format(time.RFC3339))

	select {
	case <-e.cfg.Clock.TickAfter(wait):
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveNodes looks up the endpoints of step and checks the sender can
// sign.
func resolveNodes(g *planner.Graph, step *planner.Step) (*planner.WalletNode,
	*planner.WalletNode, error) {

	from, ok := g.Node(step.From)
	if !ok {
		return nil, nil, fmt.Errorf("%w: from %q", ErrMissingNode,
			step.From)
	}
	if !from.Controlled() {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingKey, from)
	}
	to, ok := g.Node(step.To)
	if !ok {
		return nil, nil, fmt.Errorf("%w: to %q", ErrMissingNode, step.To)
	}

	return from, to, nil
}

// dispatch sends step to the capability serving its kind and returns the
// amount actually used.
func (e *Executor) dispatch(ctx context.Context, g *planner.Graph,
	step *planner.Step, from, to *planner.WalletNode) (sol.Amount,
	chain.Receipt, error) {

	signer, _ := from.Signer()

	switch step.Kind {
	case planner.KindTransfer:
		if e.cfg.Transferer == nil {
			return 0, chain.Receipt{}, ErrNoCapability
		}

		amount := step.Amount
		if step.AmountIsDynamic {
			var err error
			amount, err = e.spendable(ctx, g, step, from)
			if err != nil {
				return 0, chain.Receipt{}, err
			}
		}

		receipt, err := e.cfg.Transferer.Transfer(
			ctx, signer, to.Address, amount,
		)
		return amount, receipt, err

	case planner.KindSwap:
		if e.cfg.Converter == nil || step.Swap == nil {
			return 0, chain.Receipt{}, ErrNoCapability
		}

		req := swap.Request{
			Pool:        step.Swap.Pool,
			InputMint:   step.Swap.InputMint,
			OutputMint:  step.Swap.OutputMint,
			AmountIn:    step.Amount.Lamports(),
			SlippageBps: step.Swap.SlippageBps,
		}

		// The guaranteed output is only comparable when it is paid
		// in lamports.
		if step.Swap.OutputMint.Equals(planner.NativeMint) {
			req.MinOut = step.Swap.MinOut.Lamports()
		}

		if step.AmountIsDynamic {
			units, err := e.tokenBalance(
				ctx, from, step.Swap.InputMint,
			)
			if err != nil {
				return 0, chain.Receipt{}, err
			}
			req.AmountIn = units
		}

		receipt, err := e.cfg.Converter.Convert(ctx, signer, req)
		return sol.Amount(req.AmountIn), receipt, err

	case planner.KindTokenTransfer:
		if e.cfg.TokenTransferer == nil || step.Token == nil {
			return 0, chain.Receipt{}, ErrNoCapability
		}

		amount := step.Amount
		if step.AmountIsDynamic {
			units, err := e.tokenBalance(ctx, from, step.Token.Mint)
			if err != nil {
				return 0, chain.Receipt{}, err
			}
			amount = sol.Amount(units)
		}

		receipt, err := e.cfg.TokenTransferer.TransferToken(
			ctx, signer, to.Address, step.Token.Mint,
		)
		return amount, receipt, err

	default:
		return 0, chain.Receipt{}, fmt.Errorf("%w: %v", ErrNoCapability,
			step.Kind)
	}
}

// spendable resolves a dynamic transfer: the balance of from minus the fee
// of the step and the reserve the node must keep.
func (e *Executor) spendable(ctx context.Context, g *planner.Graph,
	step *planner.Step, from *planner.WalletNode) (sol.Amount, error) {

	if e.cfg.Balances == nil {
		return 0, ErrNoCapability
	}

	balance, err := e.cfg.Balances.Balance(ctx, from.Address)
	if err != nil {
		return 0, err
	}

	amount := balance - step.Fee - g.Reserves[from.ID]
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %v holds %v", ErrNothingToMove, from,
			balance)
	}

	log.Debugf("Resolved dynamic transfer from %v to %v", from, amount)

	return amount, nil
}

// tokenBalance resolves a dynamic token amount held by from.
func (e *Executor) tokenBalance(ctx context.Context, from *planner.WalletNode,
	mint solana.PublicKey) (uint64, error) {

	if e.cfg.Balances == nil {
		return 0, ErrNoCapability
	}

	units, err := e.cfg.Balances.TokenBalance(ctx, from.Address, mint)
	if err != nil {
		return 0, err
	}
	if units == 0 {
		return 0, fmt.Errorf("%w: %v holds no %v", ErrNothingToMove,
			from, mint)
	}

	log.Debugf("Resolved dynamic amount of %v: %d units of %v", from,
		units, mint)

	return units, nil
}
