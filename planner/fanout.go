// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	"fmt"

	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/sol"
)

const (
	// DefaultHubs is the default size of the hub layer.
	DefaultHubs = 3

	// DefaultDistributors is the default size of the distributor layer.
	DefaultDistributors = 6
)

// Stage windows of the fan-out topology as fractions of the duration.
var (
	hubWindow         = [2]float64{0, 0.2}
	distributorWindow = [2]float64{0.2, 0.5}
	recipientWindow   = [2]float64{0.5, 1}
)

// FanOutStrategy funds a layer of hub wallets from the source, a layer of
// distributor wallets from the hubs and pays the recipients from the
// distributors.  Distributors are assigned to hubs and recipients to
// distributors round-robin.
type FanOutStrategy struct {
	Hubs         int
	Distributors int
}

// Name implements TopologyStrategy.
func (f *FanOutStrategy) Name() string {
	return "fanout"
}

// layers returns the number of hubs and distributors that end up funded.
// Layers never outnumber the layer they pay, so no wallet is left empty.
func (f *FanOutStrategy) layers(recipients int) (int, int) {
	hubs, distributors := f.Hubs, f.Distributors
	if hubs <= 0 {
		hubs = DefaultHubs
	}
	if distributors <= 0 {
		distributors = DefaultDistributors
	}
	distributors = min(distributors, recipients)
	hubs = min(hubs, distributors)
	return hubs, distributors
}

// Cost implements TopologyStrategy.
func (f *FanOutStrategy) Cost(_ sol.Amount, recipients int,
	m fees.Model) sol.Amount {

	hubs, distributors := f.layers(recipients)
	return m.Cost(fees.Shape{
		Transfers:      hubs + distributors + recipients,
		FundedAccounts: hubs + distributors,
	})
}

// Build implements TopologyStrategy.
func (f *FanOutStrategy) Build(b *Builder) error {
	var (
		m          = b.Model()
		recipients = b.Recipients()
	)
	numHubs, numDists := f.layers(len(recipients))

	hubs := make([]*WalletNode, numHubs)
	for i := range hubs {
		hub, err := b.NewHop(fmt.Sprintf("hub %d", i+1))
		if err != nil {
			return err
		}
		hubs[i] = hub
		b.Reserve(hub, m.RentExempt)
	}
	dists := make([]*WalletNode, numDists)
	for i := range dists {
		dist, err := b.NewHop(fmt.Sprintf("distributor %d", i+1))
		if err != nil {
			return err
		}
		dists[i] = dist
		b.Reserve(dist, m.RentExempt)
	}

	// Required inflows are computed bottom-up.  A distributor needs its
	// recipients' shares, one fee per payment and its rent.
	shares := b.Split(b.Distribution(), len(recipients))
	distIn := make([]sol.Amount, numDists)
	for i, share := range shares {
		distIn[i%numDists] += share + m.TxFee
	}
	for j := range distIn {
		distIn[j] += m.RentExempt
	}

	// A hub needs its distributors' inflows, one fee per distributor and
	// its rent.
	hubIn := make([]sol.Amount, numHubs)
	for j, in := range distIn {
		hubIn[j%numHubs] += in + m.TxFee
	}
	for i := range hubIn {
		hubIn[i] += m.RentExempt
	}

	for i, hub := range hubs {
		b.AddStep(Step{
			Kind:   KindTransfer,
			From:   b.Source().ID,
			To:     hub.ID,
			Amount: hubIn[i],
			Offset: b.Within(hubWindow[0], hubWindow[1]),
			Stage:  0,
			Fee:    m.TxFee,
		})
	}
	for j, dist := range dists {
		b.AddStep(Step{
			Kind:   KindTransfer,
			From:   hubs[j%numHubs].ID,
			To:     dist.ID,
			Amount: distIn[j],
			Offset: b.Within(distributorWindow[0], distributorWindow[1]),
			Stage:  1,
			Fee:    m.TxFee,
		})
	}
	for i, r := range recipients {
		b.AddStep(Step{
			Kind:     KindTransfer,
			From:     dists[i%numDists].ID,
			To:       r.ID,
			Amount:   shares[i],
			Offset:   b.Within(recipientWindow[0], recipientWindow[1]),
			Stage:    2,
			Fee:      m.TxFee,
			Terminal: true,
		})
	}

	return nil
}
