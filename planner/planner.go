// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/sol"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// KeyGen generates the signing key of a new hop wallet.
type KeyGen func() (solana.PrivateKey, error)

// TopologyStrategy lays out the wallets and edges of a funding graph.
type TopologyStrategy interface {
	// Name identifies the strategy in logs and configuration.
	Name() string

	// Cost returns the total network cost of moving total to the given
	// number of recipients.  Planning fails when total does not exceed
	// it.
	Cost(total sol.Amount, recipients int, m fees.Model) sol.Amount

	// Build creates the hop wallets and steps of the graph.  The
	// distribution total available to recipients is b.Distribution().
	Build(b *Builder) error
}

// Config configures a Planner.
type Config struct {
	// Strategy selects the topology.  ChainStrategy is used when nil.
	Strategy TopologyStrategy

	// Model is the fee and rent cost model.
	Model fees.Model

	// Jitter is the split jitter fraction.  DefaultJitter is used when
	// zero, NoJitter splits evenly.
	Jitter float64

	// Rand drives split jitter and step timing.
	Rand Rand

	// KeyGen generates hop keys.  solana.NewRandomPrivateKey is used
	// when nil.
	KeyGen KeyGen
}

// Request describes a single plan.
type Request struct {
	Source      solana.PrivateKey
	Recipients  []solana.PublicKey
	TotalAmount sol.Amount
	Duration    time.Duration
}

// Planner builds funding graphs.
type Planner struct {
	cfg Config
}

// New returns a Planner for the given config.
func New(cfg Config) *Planner {
	if cfg.Strategy == nil {
		cfg.Strategy = &ChainStrategy{}
	}
	if cfg.Jitter == 0 {
		cfg.Jitter = DefaultJitter
	}
	if cfg.KeyGen == nil {
		cfg.KeyGen = solana.NewRandomPrivateKey
	}
	if cfg.Rand == nil {
		cfg.Rand = NewRand(0)
	}
	return &Planner{cfg: cfg}
}

// Plan builds the funding graph for req.  It fails with a *PlanningError
// wrapping ErrInsufficientFunds, before any wallet is generated, when the
// total amount does not exceed the topology cost.
func (p *Planner) Plan(req Request) (*Graph, error) {
	strategy := p.cfg.Strategy
	fail := func(err error) (*Graph, error) {
		return nil, &PlanningError{Strategy: strategy.Name(), Err: err}
	}

	if err := validateRequest(req); err != nil {
		return fail(err)
	}
	if err := p.cfg.Model.Validate(); err != nil {
		return fail(err)
	}

	cost := strategy.Cost(req.TotalAmount, len(req.Recipients), p.cfg.Model)
	if req.TotalAmount <= cost {
		return fail(fmt.Errorf("%w: total %v does not exceed cost %v "+
			"for %d recipients", ErrInsufficientFunds,
			req.TotalAmount, cost, len(req.Recipients)))
	}

	g := &Graph{
		ID:           uuid.New(),
		Strategy:     strategy.Name(),
		Recipients:   append([]solana.PublicKey(nil), req.Recipients...),
		TotalAmount:  req.TotalAmount,
		TotalCost:    cost,
		Distribution: req.TotalAmount - cost,
		Duration:     req.Duration,
		Reserves:     make(map[string]sol.Amount),
		Model:        p.cfg.Model,
		index:        make(map[string]*WalletNode),
	}

	b := &Builder{cfg: &p.cfg, graph: g}
	g.Source = b.addNode(&WalletNode{
		ID:      "source",
		Label:   "source",
		Role:    RoleSource,
		Address: req.Source.PublicKey(),
		Key:     fn.Some(req.Source),
	})
	for i, addr := range req.Recipients {
		b.recipients = append(b.recipients, b.addNode(&WalletNode{
			ID:      fmt.Sprintf("recipient-%d", i),
			Label:   fmt.Sprintf("recipient %d", i+1),
			Role:    RoleRecipient,
			Address: addr,
			Key:     fn.None[solana.PrivateKey](),
		}))
	}

	if err := strategy.Build(b); err != nil {
		g.Wipe()
		return fail(err)
	}

	// Every stage is merged into one timeline.  Steps sharing an offset
	// keep the order they were generated in.
	sort.SliceStable(g.Steps, func(i, j int) bool {
		return g.Steps[i].Offset < g.Steps[j].Offset
	})

	if err := Verify(g); err != nil {
		g.Wipe()
		return fail(err)
	}

	log.Infof("Planned %s graph %v: %d hops, %d steps, distributing %v "+
		"of %v (cost %v)", g.Strategy, g.ID, len(g.Hops()),
		len(g.Steps), g.Distribution, g.TotalAmount, g.TotalCost)

	return g, nil
}

func validateRequest(req Request) error {
	if len(req.Source) != 64 {
		return ErrInvalidSource
	}
	if len(req.Recipients) == 0 {
		return ErrNoRecipients
	}
	if req.Duration < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, req.Duration)
	}

	source := req.Source.PublicKey()
	seen := make(map[solana.PublicKey]struct{}, len(req.Recipients))
	for _, r := range req.Recipients {
		if r.Equals(source) {
			return ErrSourceRecipient
		}
		if _, ok := seen[r]; ok {
			return fmt.Errorf("%w: %v", ErrDuplicateRecipient, r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// Builder gives a TopologyStrategy access to the graph under construction.
type Builder struct {
	cfg        *Config
	graph      *Graph
	recipients []*WalletNode
	hops       int
}

// Model returns the cost model.
func (b *Builder) Model() fees.Model {
	return b.cfg.Model
}

// Source returns the source node.
func (b *Builder) Source() *WalletNode {
	return b.graph.Source
}

// Recipients returns the recipient nodes in request order.
func (b *Builder) Recipients() []*WalletNode {
	return b.recipients
}

// Total returns the total amount of the plan.
func (b *Builder) Total() sol.Amount {
	return b.graph.TotalAmount
}

// Distribution returns the amount that reaches the recipients.
func (b *Builder) Distribution() sol.Amount {
	return b.graph.Distribution
}

// Split divides total into n jittered shares.
func (b *Builder) Split(total sol.Amount, n int) []sol.Amount {
	return Allocate(total, n, b.cfg.Jitter, b.cfg.Rand)
}

// At returns the offset at the given fraction of the plan duration.
func (b *Builder) At(frac float64) time.Duration {
	return time.Duration(math.Round(frac * float64(b.graph.Duration)))
}

// Within returns a random offset within [lo, hi) fractions of the plan
// duration.
func (b *Builder) Within(lo, hi float64) time.Duration {
	span := (hi - lo) * b.cfg.Rand.Float64()
	return b.At(lo + span)
}

// NewHop generates a fresh hop wallet with the given label.
func (b *Builder) NewHop(label string) (*WalletNode, error) {
	key, err := b.cfg.KeyGen()
	if err != nil {
		return nil, fmt.Errorf("generate key for %s: %w", label, err)
	}
	node := b.addNode(&WalletNode{
		ID:      fmt.Sprintf("hop-%d", b.hops),
		Label:   label,
		Role:    RoleHop,
		Address: key.PublicKey(),
		Key:     fn.Some(key),
	})
	b.hops++
	return node, nil
}

// Reserve records the rent a hop keeps after forwarding.
func (b *Builder) Reserve(n *WalletNode, amount sol.Amount) {
	b.graph.Reserves[n.ID] += amount
}

// AddStep appends a step to the graph.
func (b *Builder) AddStep(s Step) {
	log.Tracef("Step %v", newLogClosure(s.String))
	b.graph.Steps = append(b.graph.Steps, s)
}

func (b *Builder) addNode(n *WalletNode) *WalletNode {
	b.graph.Nodes = append(b.graph.Nodes, n)
	b.graph.index[n.ID] = n
	return n
}
