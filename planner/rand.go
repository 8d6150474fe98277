// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// NewRand returns a deterministic generator for a non-zero seed and a
// cryptographically seeded one for a zero seed.
func NewRand(seed uint64) *rand.Rand {
	var s [32]byte
	if seed == 0 {
		if _, err := crand.Read(s[:]); err != nil {
			panic("planner: unable to read random seed: " + err.Error())
		}
	} else {
		binary.LittleEndian.PutUint64(s[:], seed)
	}
	return rand.New(rand.NewChaCha8(s))
}
