// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	"fmt"

	"github.com/hopfund/hopfund/sol"
)

// Verify replays the steps of g in order and checks that they are sorted by
// offset, that every step originates from a wallet the plan controls, that
// no hop ever spends more than it has received and that every hop ends with
// at least its reserve.  It also checks that every recipient is paid by
// exactly one terminal step.
//
// Dynamic steps are replayed with their planned lower bound and swaps
// credit their guaranteed minimum output.
func Verify(g *Graph) error {
	balances := make(map[string]sol.Amount)
	paid := make(map[string]int)

	for i := range g.Steps {
		step := &g.Steps[i]
		if i > 0 && step.Offset < g.Steps[i-1].Offset {
			return fmt.Errorf("%w: step %d at %v after %v", ErrUnsorted,
				i, step.Offset, g.Steps[i-1].Offset)
		}

		from, ok := g.Node(step.From)
		if !ok {
			return fmt.Errorf("%w: step %d from %q", ErrUnknownNode, i,
				step.From)
		}
		to, ok := g.Node(step.To)
		if !ok {
			return fmt.Errorf("%w: step %d to %q", ErrUnknownNode, i,
				step.To)
		}
		if !from.Controlled() {
			return fmt.Errorf("%w: step %d spends from uncontrolled "+
				"%s", ErrClosureViolated, i, from.ID)
		}

		// The source is funded outside the plan, only hops are
		// accounted.
		if from.Role == RoleHop {
			balances[from.ID] -= step.Amount + step.Fee
			if balances[from.ID] < 0 {
				return fmt.Errorf("%w: %s short by %v at step %d (%v)",
					ErrClosureViolated, from.ID,
					-balances[from.ID], i, step)
			}
		}

		credit := step.Amount
		if step.Kind == KindSwap && step.Swap != nil {
			credit = step.Swap.MinOut
		}
		balances[to.ID] += credit

		if step.Terminal {
			paid[to.ID]++
		}
	}

	for _, hop := range g.Hops() {
		reserve := g.Reserves[hop.ID]
		if balances[hop.ID] < reserve {
			return fmt.Errorf("%w: %s ends with %v, below its reserve "+
				"%v", ErrClosureViolated, hop.ID, balances[hop.ID],
				reserve)
		}
	}

	for _, n := range g.Nodes {
		if n.Role == RoleRecipient && paid[n.ID] != 1 {
			return fmt.Errorf("%w: %s paid %d times",
				ErrRecipientCoverage, n.ID, paid[n.ID])
		}
	}

	return nil
}
