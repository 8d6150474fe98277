// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package swap converts value held by a wallet between SOL and an SPL token
through a quote/swap HTTP service speaking the Jupiter v6 API.

A conversion first asks the service for a quote, checks the quoted route goes
through the configured pool and that its guaranteed output honors the caller's
minimum, then fetches the serialized swap transaction, signs it with the wallet
key and submits it through a Submitter, usually a *chain.Client.
*/
package swap
