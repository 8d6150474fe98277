// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hopfund/hopfund/chain"
	"github.com/hopfund/hopfund/executor"
	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/internal/cfgutil"
	"github.com/hopfund/hopfund/internal/zero"
	"github.com/hopfund/hopfund/keystore"
	"github.com/hopfund/hopfund/planner"
	"github.com/hopfund/hopfund/sol"
	"github.com/hopfund/hopfund/swap"
	"github.com/hopfund/hopfund/sweep"
	"golang.org/x/sync/errgroup"
)

// sweepTimeout bounds the recovery sweep, which runs even after an
// interrupt.
const sweepTimeout = 10 * time.Minute

func main() {
	// Work around defer not working after os.Exit.
	if err := hopfundMain(); err != nil {
		os.Exit(1)
	}
}

// hopfundMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func hopfundMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Show version at startup.
	log.Infof("Version %s", version())

	// Cancel the run when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addInterruptHandler(cancel)

	source, err := loadSourceKey(cfg)
	if err != nil {
		log.Errorf("Unable to load source key: %v", err)
		return err
	}
	defer zero.Bytes(source)

	client := chain.Dial(cfg.RPCEndpoint, chain.Config{
		Commitment:        rpc.CommitmentType(cfg.Commitment),
		RequestsPerSecond: cfg.RPCRateLimit,
		ConfirmTimeout:    cfg.ConfirmTimeout,
		TxFee:             cfg.TxFee.Amount,
	})

	balance, model, err := preflight(ctx, cfg, client, source.PublicKey())
	if err != nil {
		log.Errorf("Preflight failed: %v", err)
		return err
	}

	total := cfg.Amount.Amount
	if total == 0 {
		total = balance
	}
	if total > balance {
		err := fmt.Errorf("source %v holds %v, less than the requested "+
			"%v", source.PublicKey(), balance, total)
		log.Error(err)
		return err
	}

	p := planner.New(planner.Config{
		Strategy: strategy(cfg),
		Model:    model,
		Jitter:   planJitter(cfg),
		Rand:     planner.NewRand(cfg.Seed),
	})
	graph, err := p.Plan(planner.Request{
		Source:      source,
		Recipients:  cfg.recipients,
		TotalAmount: total,
		Duration:    cfg.Duration,
	})
	if err != nil {
		log.Errorf("Unable to plan: %v", err)
		return err
	}
	defer graph.Wipe()

	logSummary(graph)

	if cfg.DryRun {
		printSteps(graph)
		return nil
	}

	ex := executor.New(executor.Config{
		Transferer:      client,
		Converter:       swap.New(swap.Config{APIURL: cfg.SwapAPI}, client),
		TokenTransferer: client,
		Balances:        client,
	})
	report, runErr := ex.Run(ctx, graph, time.Now())
	if runErr == nil {
		log.Infof("Delivered %v to %d %s in %v", graph.Distribution,
			len(graph.Recipients), pickNoun(len(graph.Recipients),
				"recipient", "recipients"),
			report.Finished.Sub(report.Started).Round(time.Second))
		return nil
	}

	var dispatchErr *executor.DispatchError
	if errors.As(runErr, &dispatchErr) {
		log.Errorf("Plan %v halted after %d of %d steps: %v", graph.ID,
			len(report.Completed), len(graph.Steps), runErr)
	} else {
		log.Errorf("Plan %v stopped: %v", graph.ID, runErr)
	}

	if cfg.SweepOnFailure {
		dest := source.PublicKey()
		if cfg.SweepTo.ExplicitlySet() {
			dest = cfg.sweepTo
		}
		sweepGraph(client, graph, dest)
	} else {
		logStranded(graph)
	}

	return runErr
}

// loadSourceKey opens the key store and returns the source key, creating it
// on first use or when a reset is requested.
func loadSourceKey(cfg *config) (solana.PrivateKey, error) {
	dbPath := filepath.Join(cfg.DataDir, defaultKeystoreName)
	exists, err := cfgutil.FileExists(dbPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Infof("Creating key store %s", dbPath)
	}

	store, err := keystore.Open(dbPath, cfg.DBTimeout)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if cfg.ResetKey {
		if err := store.Clear(cfg.KeyName); err != nil {
			return nil, err
		}
		log.Infof("Discarded stored source key %q", cfg.KeyName)
	}

	key, created, err := keystore.LoadOrCreate(
		store, cfg.KeyName, solana.NewRandomPrivateKey,
	)
	if err != nil {
		return nil, err
	}
	if created {
		log.Infof("Generated new source wallet %v, fund it to run a plan",
			key.PublicKey())
	} else {
		log.Infof("Using source wallet %v", key.PublicKey())
	}

	return key, nil
}

// preflight concurrently reads the source balance and the cost model.
func preflight(ctx context.Context, cfg *config, client *chain.Client,
	source solana.PublicKey) (sol.Amount, fees.Model, error) {

	var (
		balance sol.Amount
		model   fees.Model
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = client.Balance(gctx, source)
		return err
	})
	g.Go(func() error {
		var err error
		model, err = fees.Query(gctx, client, fees.Params{
			TxFee:       cfg.TxFee.Amount,
			SwapFee:     cfg.SwapFee.Amount,
			SlippageBps: cfg.SlippageBps,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fees.Model{}, err
	}

	log.Infof("Source balance %v, rent-exempt minimum %v", balance,
		model.RentExempt)

	return balance, model, nil
}

// planJitter returns the planner jitter for cfg.  An explicit zero turns
// jitter off.
func planJitter(cfg *config) float64 {
	if cfg.Jitter == 0 {
		return planner.NoJitter
	}
	return cfg.Jitter
}

// strategy returns the topology selected by cfg.
func strategy(cfg *config) planner.TopologyStrategy {
	if cfg.Topology == topologyFanOut {
		return &planner.FanOutStrategy{
			Hubs:         cfg.Hubs,
			Distributors: cfg.Distributors,
		}
	}

	c := &planner.ChainStrategy{}
	if cfg.Swap {
		c.Conversion = &planner.Conversion{
			Mint: cfg.swapMint,
			Pool: cfg.swapPool,
		}
	}
	return c
}

// sweepGraph sweeps every controlled wallet of graph to dest.  It runs with
// its own deadline so an interrupted run can still be recovered.
func sweepGraph(client *chain.Client, graph *planner.Graph,
	dest solana.PublicKey) {

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	log.Infof("Sweeping %d %s to %v", len(graph.ControlledNodes()),
		pickNoun(len(graph.ControlledNodes()), "wallet", "wallets"), dest)

	summary := sweep.Sweep(
		ctx, graph.ControlledNodes(), dest, client, graph.Mints()...,
	)
	if err := summary.Err(); err != nil {
		log.Errorf("Sweep incomplete: %v", err)
	}
}

// logStranded lists the hop wallets that may still hold funds.  Their keys
// are discarded when the process exits.
func logStranded(graph *planner.Graph) {
	for _, n := range graph.Hops() {
		log.Warnf("Hop %v may still hold funds", n)
	}
}
