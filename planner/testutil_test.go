// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/sol"
)

const (
	testFee  sol.Amount = 5_000
	testRent sol.Amount = 1_000_000
)

// testModel is the cost model used throughout the tests: a 0.000005 SOL
// fee and 0.001 SOL of rent per funded account.
var testModel = fees.Model{
	TxFee:            testFee,
	RentExempt:       testRent,
	TokenAccountRent: 2_039_280,
	SwapFee:          20_000,
	SlippageBps:      100,
}

// testKey derives a deterministic key from a tag and an index.
func testKey(tag, i byte) solana.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	seed[0], seed[1] = tag, i
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
}

// testKeyGen returns a KeyGen producing a deterministic key sequence.
func testKeyGen() KeyGen {
	var i byte
	return func() (solana.PrivateKey, error) {
		i++
		return testKey(0xAA, i), nil
	}
}

func testRecipients(n int) []solana.PublicKey {
	addrs := make([]solana.PublicKey, n)
	for i := range addrs {
		addrs[i] = testKey(0xBB, byte(i)).PublicKey()
	}
	return addrs
}

func testPlanner(t *testing.T, strategy TopologyStrategy,
	seed uint64) *Planner {

	t.Helper()

	return New(Config{
		Strategy: strategy,
		Model:    testModel,
		Rand:     NewRand(seed),
		KeyGen:   testKeyGen(),
	})
}

func testRequest(total sol.Amount, recipients int,
	d time.Duration) Request {

	return Request{
		Source:      testKey(0xCC, 0),
		Recipients:  testRecipients(recipients),
		TotalAmount: total,
		Duration:    d,
	}
}
