// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package fees implements the cost model used to size every hop of a funding
plan.

A Model combines the network's flat per-signature transaction fee with the
rent-exempt minimums queried from the network.  The cost of a topology is a
pure function of its Shape: how many transfers it signs, how many accounts it
funds and keeps rent-exempt, how many token accounts it creates and how many
conversions it performs.

Query builds a Model from a RentQuerier.  A failure to reach the network is
not retried and surfaces as ErrCostModelUnavailable.
*/
package fees
