// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero contains functions to clear key material from memory.
package zero

// Bytes sets all bytes in the passed slice to zero.  This is used to
// explicitly clear signing keys once a run is over.
func Bytes(b []byte) {
	clear(b)
}

// Keys clears every key in keys.
func Keys[K ~[]byte](keys ...K) {
	for _, k := range keys {
		clear(k)
	}
}
