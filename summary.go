// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hopfund/hopfund/planner"
)

// logSummary writes the shape and totals of a planned graph to the log.
func logSummary(g *planner.Graph) {
	s := g.Summary()

	log.Infof("Plan %v (%s): %d wallets, %d %s, %d %s", g.ID, g.Strategy,
		s.Nodes, s.Hops, pickNoun(s.Hops, "hop", "hops"), s.Steps,
		pickNoun(s.Steps, "step", "steps"))
	log.Infof("Total %v, cost %v, delivering %v to %d %s", g.TotalAmount,
		g.TotalCost, s.Delivered, s.Terminal,
		pickNoun(s.Terminal, "recipient", "recipients"))
	log.Infof("Transfers %d, swaps %d, token transfers %d, dynamic %d",
		s.ByKind[planner.KindTransfer], s.ByKind[planner.KindSwap],
		s.ByKind[planner.KindTokenTransfer], s.Dynamic)
	log.Infof("Fees %v, reserved rent %v, schedule +%v to +%v",
		s.TotalFees, s.Reserved, s.FirstStep.Round(time.Second),
		s.LastStep.Round(time.Second))
}

// printSteps writes the steps of a planned graph as a table to stdout.
func printSteps(g *planner.Graph) {
	writeSteps(os.Stdout, g)
}

func writeSteps(w io.Writer, g *planner.Graph) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tOFFSET\tKIND\tFROM\tTO\tAMOUNT\tFEE")
	for i := range g.Steps {
		step := &g.Steps[i]

		amount := step.Amount.String()
		if step.AmountIsDynamic {
			amount = ">= " + amount
		}

		fmt.Fprintf(tw, "%d\t+%v\t%v\t%s\t%s\t%s\t%v\n", i,
			step.Offset.Round(time.Second), step.Kind,
			nodeLabel(g, step.From), nodeLabel(g, step.To), amount,
			step.Fee)
	}
	tw.Flush()
}

// nodeLabel returns a printable name for the node with the given ID.
func nodeLabel(g *planner.Graph, id string) string {
	n, ok := g.Node(id)
	if !ok {
		return id
	}
	return n.String()
}
