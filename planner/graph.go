// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package planner

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/internal/zero"
	"github.com/hopfund/hopfund/sol"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// NativeMint is the wrapped SOL mint used as the native side of a
// conversion.
var NativeMint = solana.MustPublicKeyFromBase58(
	"So11111111111111111111111111111111111111112",
)

// Role describes the position of a wallet in a funding graph.
type Role uint8

const (
	// RoleSource is the wallet funding the whole plan.
	RoleSource Role = iota

	// RoleHop is an intermediate wallet generated for a single run.
	RoleHop

	// RoleRecipient is a final recipient the plan does not control.
	RoleRecipient
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleHop:
		return "hop"
	case RoleRecipient:
		return "recipient"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// WalletNode is a wallet taking part in a funding graph.  Source and hop
// nodes hold their signing key, recipients only their address.
type WalletNode struct {
	ID      string
	Label   string
	Role    Role
	Address solana.PublicKey
	Key     fn.Option[solana.PrivateKey]
}

// Signer returns the signing key of the node, if the plan controls it.
func (n *WalletNode) Signer() (solana.PrivateKey, bool) {
	if n.Key.IsNone() {
		return nil, false
	}
	return n.Key.UnwrapOr(nil), true
}

// Controlled reports whether the node can sign for its address.
func (n *WalletNode) Controlled() bool {
	return n.Key.IsSome()
}

// String returns the label and short address of the node.
func (n *WalletNode) String() string {
	return fmt.Sprintf("%s (%s)", n.Label, ShortAddress(n.Address))
}

// ShortAddress abbreviates a base58 address to its first and last four
// characters.
func ShortAddress(addr solana.PublicKey) string {
	s := addr.String()
	if len(s) <= 11 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// StepKind selects the capability a step is dispatched to.
type StepKind uint8

const (
	// KindTransfer moves native SOL.
	KindTransfer StepKind = iota

	// KindSwap converts value held by a wallet from one asset into
	// another.  The From and To nodes of a swap are the same wallet.
	KindSwap

	// KindTokenTransfer moves the full balance of an SPL token.
	KindTokenTransfer
)

// String returns the kind name.
func (k StepKind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindSwap:
		return "swap"
	case KindTokenTransfer:
		return "token-transfer"
	default:
		return fmt.Sprintf("StepKind(%d)", uint8(k))
	}
}

// SwapParams describes a conversion step.
type SwapParams struct {
	Pool        solana.PublicKey
	InputMint   solana.PublicKey
	OutputMint  solana.PublicKey
	SlippageBps uint16

	// MinOut is the lamport-equivalent output guaranteed by the slippage
	// tolerance.
	MinOut sol.Amount
}

// TokenParams describes a token transfer step.
type TokenParams struct {
	Mint solana.PublicKey
}

// Step is a single planned edge of a funding graph.
type Step struct {
	Kind StepKind
	From string
	To   string

	// Amount is the planned amount in lamports, or the lamport-equivalent
	// value of the tokens moved.  For dynamic steps it is a lower bound.
	Amount sol.Amount

	// AmountIsDynamic marks steps whose real amount is read from the
	// chain when they run.
	AmountIsDynamic bool

	// Offset is the scheduled delay of the step from the start of the
	// run.
	Offset time.Duration

	// Stage is the generation stage that produced the step.
	Stage int

	// Fee is the cost borne by From for this step: the transaction fee,
	// any conversion fee and the rent of accounts the step creates.
	Fee sol.Amount

	// Terminal marks the final fan-out edges paying recipients.
	Terminal bool

	Swap  *SwapParams
	Token *TokenParams
}

// String returns a one line description of the step.
func (s *Step) String() string {
	amount := s.Amount.String()
	if s.AmountIsDynamic {
		amount = "dynamic (>= " + amount + ")"
	}
	return fmt.Sprintf("%s %s -> %s %s at +%v", s.Kind, s.From, s.To,
		amount, s.Offset.Round(time.Millisecond))
}

// Graph is a complete funding plan.  It is owned by a single caller and
// not modified after planning, except for Wipe.
type Graph struct {
	ID       uuid.UUID
	Strategy string

	Nodes []*WalletNode
	Steps []Step

	Source     *WalletNode
	Recipients []solana.PublicKey

	TotalAmount  sol.Amount
	TotalCost    sol.Amount
	Distribution sol.Amount
	Duration     time.Duration

	// Reserves is the rent kept by every funded hop, keyed by node ID.
	Reserves map[string]sol.Amount

	Model fees.Model

	index map[string]*WalletNode
}

// NewGraph assembles a graph from already planned nodes and steps.  Steps
// are kept in the given order and are not verified.
func NewGraph(strategy string, nodes []*WalletNode, steps []Step) *Graph {
	g := &Graph{
		ID:       uuid.New(),
		Strategy: strategy,
		Nodes:    nodes,
		Steps:    steps,
		Reserves: make(map[string]sol.Amount),
		index:    make(map[string]*WalletNode, len(nodes)),
	}
	for _, n := range nodes {
		g.index[n.ID] = n
		switch n.Role {
		case RoleSource:
			g.Source = n
		case RoleRecipient:
			g.Recipients = append(g.Recipients, n.Address)
		}
	}
	for _, s := range steps {
		if s.Terminal {
			g.Distribution += s.Amount
		}
	}
	return g
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*WalletNode, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Hops returns the intermediate wallets of the graph.
func (g *Graph) Hops() []*WalletNode {
	var hops []*WalletNode
	for _, n := range g.Nodes {
		if n.Role == RoleHop {
			hops = append(hops, n)
		}
	}
	return hops
}

// ControlledNodes returns every node the plan can sign for, source first.
func (g *Graph) ControlledNodes() []*WalletNode {
	var nodes []*WalletNode
	for _, n := range g.Nodes {
		if n.Controlled() {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Mints returns the token mints the graph's wallets may hold, in the order
// they first appear.  The native mint is never included.
func (g *Graph) Mints() []solana.PublicKey {
	var mints []solana.PublicKey
	add := func(m solana.PublicKey) {
		if m.IsZero() || m.Equals(NativeMint) {
			return
		}
		for _, seen := range mints {
			if seen.Equals(m) {
				return
			}
		}
		mints = append(mints, m)
	}
	for _, s := range g.Steps {
		if s.Swap != nil {
			add(s.Swap.InputMint)
			add(s.Swap.OutputMint)
		}
		if s.Token != nil {
			add(s.Token.Mint)
		}
	}
	return mints
}

// TerminalSteps returns the final fan-out steps in time order.
func (g *Graph) TerminalSteps() []Step {
	var steps []Step
	for _, s := range g.Steps {
		if s.Terminal {
			steps = append(steps, s)
		}
	}
	return steps
}

// Wipe clears the ephemeral hop keys held by the graph.  The source key is
// owned by the caller and left untouched.
func (g *Graph) Wipe() {
	var keys []solana.PrivateKey
	for _, n := range g.Hops() {
		n.Key.WhenSome(func(k solana.PrivateKey) {
			keys = append(keys, k)
		})
		n.Key = fn.None[solana.PrivateKey]()
	}
	zero.Keys(keys...)
}

// Summary aggregates a graph for reporting.
type Summary struct {
	Nodes     int
	Hops      int
	Steps     int
	Terminal  int
	ByKind    map[StepKind]int
	Dynamic   int
	TotalFees sol.Amount
	Reserved  sol.Amount
	Delivered sol.Amount
	FirstStep time.Duration
	LastStep  time.Duration
}

// Summary returns per-kind counts and totals of the graph.
func (g *Graph) Summary() Summary {
	s := Summary{
		Nodes:  len(g.Nodes),
		Hops:   len(g.Hops()),
		Steps:  len(g.Steps),
		ByKind: make(map[StepKind]int),
	}
	for _, step := range g.Steps {
		s.ByKind[step.Kind]++
		s.TotalFees += step.Fee
		if step.AmountIsDynamic {
			s.Dynamic++
		}
		if step.Terminal {
			s.Terminal++
			s.Delivered += step.Amount
		}
	}
	for _, r := range g.Reserves {
		s.Reserved += r
	}
	if len(g.Steps) > 0 {
		s.FirstStep = g.Steps[0].Offset
		s.LastStep = g.Steps[len(g.Steps)-1].Offset
	}
	return s
}
