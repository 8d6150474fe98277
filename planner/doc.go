// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package planner builds funding graphs: the wallet topology, per-edge amounts
and per-edge scheduled offsets that move a total amount from one source
wallet to a set of recipients through freshly generated intermediate wallets.

Planning is a pure computation.  Randomness (recipient split jitter and step
timing) and key generation are injected through Config, so a planner seeded
with the same values produces the same graph.

Topologies

The wallet layout is chosen by a TopologyStrategy.  Two strategies are
provided:

  - ChainStrategy moves the whole distribution through a fixed chain of three
    hops, optionally converting the value into an intermediate token and back
    on the way, before the last hop fans out to every recipient.
  - FanOutStrategy funds a layer of hub wallets, each hub funds a layer of
    distributor wallets and each distributor pays a subset of the recipients.

Both strategies size every edge bottom-up from the fee model so that every
intermediate wallet receives enough to cover what it sends, the fees it pays
and the rent it keeps.  Verify replays a graph in time order and checks this
closure property.

Amounts

Recipient shares are produced by Allocate, which splits a total into jittered
shares that always sum to exactly the total.

Steps whose amount can only be known when they run, such as converting the
full token balance of a wallet back, carry AmountIsDynamic and a conservative
planned Amount used for verification.  The executor resolves the real amount
from on-chain balances.
*/
package planner
