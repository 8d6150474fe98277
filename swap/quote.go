// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

// routeStep is one hop of a quoted route.
type routeStep struct {
	SwapInfo struct {
		AmmKey     string `json:"ammKey"`
		Label      string `json:"label"`
		InputMint  string `json:"inputMint"`
		OutputMint string `json:"outputMint"`
	} `json:"swapInfo"`
	Percent int `json:"percent"`
}

// quoteFields are the parts of a quote the client inspects.
type quoteFields struct {
	InputMint            string      `json:"inputMint"`
	InAmount             string      `json:"inAmount"`
	OutputMint           string      `json:"outputMint"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SlippageBps          int         `json:"slippageBps"`
	RoutePlan            []routeStep `json:"routePlan"`
}

// Quote is a route quoted by the service.  The raw response is kept so it
// can be passed back verbatim when building the swap.
type Quote struct {
	quoteFields
	raw json.RawMessage
}

// OutAmount returns the expected output in base units.
func (q *Quote) OutAmount() (uint64, error) {
	return parseUnits("outAmount", q.quoteFields.OutAmount)
}

// MinOut returns the output guaranteed by the slippage tolerance.
func (q *Quote) MinOut() (uint64, error) {
	return parseUnits("otherAmountThreshold", q.OtherAmountThreshold)
}

// Uses reports whether any hop of the route trades through pool.
func (q *Quote) Uses(pool solana.PublicKey) bool {
	for _, step := range q.RoutePlan {
		if step.SwapInfo.AmmKey == pool.String() {
			return true
		}
	}
	return false
}

// Labels returns the AMM labels of the route.
func (q *Quote) Labels() []string {
	labels := make([]string, 0, len(q.RoutePlan))
	for _, step := range q.RoutePlan {
		labels = append(labels, step.SwapInfo.Label)
	}
	return labels
}

func parseUnits(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrPool, field, s)
	}
	return v, nil
}
