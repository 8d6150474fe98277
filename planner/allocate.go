// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	"math"
	"sort"

	"github.com/hopfund/hopfund/sol"
)

// DefaultJitter is the fraction by which a recipient share may deviate from
// the equal share before normalization.
const DefaultJitter = 0.15

// NoJitter disables split jitter.  A zero jitter in Config selects
// DefaultJitter instead.
const NoJitter = -1.0

// Rand is the source of randomness used for jitter and timing.  It is
// satisfied by *rand.Rand from math/rand/v2.
type Rand interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

// Allocate splits total into n shares.  Every share is the equal share
// total/n scaled by an independent factor drawn from [1-jitter, 1+jitter],
// after which all shares are rescaled so they sum to exactly total.
//
// A non-positive total or n yields no shares and a single share is never
// jittered.
func Allocate(total sol.Amount, n int, jitter float64, rng Rand) []sol.Amount {
	if n <= 0 || total <= 0 {
		return nil
	}
	if n == 1 {
		return []sol.Amount{total}
	}

	switch {
	case jitter < 0 || math.IsNaN(jitter):
		jitter = 0
	case jitter >= 1:
		jitter = math.Nextafter(1, 0)
	}

	weights := make([]float64, n)
	var sum float64
	for i := range weights {
		w := 1 + jitter*(2*rng.Float64()-1)
		weights[i] = w
		sum += w
	}

	// Shares are capped by what is left of total so the running sum
	// never exceeds it, even where float64 can not represent total.
	shares := make([]sol.Amount, n)
	var assigned sol.Amount
	for i, w := range weights {
		left := total - assigned
		f := math.Floor(float64(total) * w / sum)

		var share sol.Amount
		switch {
		case f <= 0:
		case f >= float64(left):
			share = left
		default:
			share = sol.Amount(f)
		}
		shares[i] = share
		assigned += share
	}

	// Flooring leaves a few lamports per share unassigned.  Settle the
	// difference one lamport at a time, starting from the largest
	// shares.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shares[order[a]] > shares[order[b]]
	})
	for i := 0; assigned < total; i = (i + 1) % n {
		shares[order[i]]++
		assigned++
	}

	return shares
}

// sumAmounts returns the sum of amounts.
func sumAmounts(amounts []sol.Amount) sol.Amount {
	var total sol.Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
