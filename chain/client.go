// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/sol"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/time/rate"
)

const (
	// DefaultConfirmInterval is the base interval between signature
	// status polls.
	DefaultConfirmInterval = 2 * time.Second

	// DefaultConfirmTimeout bounds the wait for a single transaction.
	DefaultConfirmTimeout = 90 * time.Second

	// DefaultRequestsPerSecond is the default RPC rate limit.
	DefaultRequestsPerSecond = 5

	// confirmJitter is the jitter scaler of the status poll ticker.
	confirmJitter = 0.2

	// tokenAccountSize is the data size of an SPL token account.
	tokenAccountSize = 165
)

// RPCClient is the subset of the Solana JSON-RPC API used by Client.
type RPCClient interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64,
		commitment rpc.CommitmentType) (uint64, error)

	GetBalance(ctx context.Context, account solana.PublicKey,
		commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)

	GetLatestBlockhash(ctx context.Context,
		commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult,
		error)

	GetAccountInfo(ctx context.Context,
		account solana.PublicKey) (*rpc.GetAccountInfoResult, error)

	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey,
		commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult,
		error)

	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction,
		opts rpc.TransactionOpts) (solana.Signature, error)

	GetSignatureStatuses(ctx context.Context, searchHistory bool,
		sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// A compile-time assertion to ensure the solana-go client satisfies
// RPCClient.
var _ RPCClient = (*rpc.Client)(nil)

// Config holds the parameters of a Client.
type Config struct {
	// Commitment is the commitment level used for reads and required
	// for confirmations.
	Commitment rpc.CommitmentType

	// RequestsPerSecond limits the RPC call rate.  A non-positive
	// value disables the limit.
	RequestsPerSecond float64

	// ConfirmInterval is the base interval between status polls.
	ConfirmInterval time.Duration

	// ConfirmTimeout bounds the wait for a single confirmation.
	ConfirmTimeout time.Duration

	// TxFee is the fee reserved for every transaction sent by the
	// client.  It is also the sweep fee floor.
	TxFee sol.Amount

	// NewTicker creates the status poll ticker.  It defaults to a
	// JitterTicker.
	NewTicker func(time.Duration) ticker.Ticker
}

// Receipt describes a confirmed transaction.
type Receipt struct {
	Signature solana.Signature

	// Amount is the amount moved: lamports for transfers, token base
	// units for token transfers.
	Amount sol.Amount
}

// String returns the signature of the receipt.
func (r Receipt) String() string {
	return r.Signature.String()
}

// Client is a Solana RPC adapter.  It implements the balance, transfer and
// rent capabilities consumed by the planner, the executor and the sweeper.
type Client struct {
	rpc     RPCClient
	cfg     Config
	limiter *rate.Limiter
}

// A compile-time assertion to ensure Client can serve as the rent source of
// the cost model.
var _ fees.RentQuerier = (*Client)(nil)

// New returns a Client over the given RPC client.  Zero config fields are
// replaced by defaults.
func New(client RPCClient, cfg Config) *Client {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = DefaultConfirmInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.TxFee <= 0 {
		cfg.TxFee = fees.DefaultTxFee
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = func(d time.Duration) ticker.Ticker {
			return NewJitterTicker(d, confirmJitter)
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		rpc:     client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Dial returns a Client talking to the JSON-RPC endpoint at url.
func Dial(url string, cfg Config) *Client {
	return New(rpc.New(url), cfg)
}

// throttle blocks until the rate limiter admits another call.
func (c *Client) throttle(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// MinimumRentExemption returns the rent-exempt minimum of a plain system
// account.
func (c *Client) MinimumRentExemption(ctx context.Context) (sol.Amount,
	error) {

	return c.rentExemption(ctx, 0)
}

// TokenAccountRentExemption returns the rent-exempt minimum of an SPL
// token account.
func (c *Client) TokenAccountRentExemption(ctx context.Context) (sol.Amount,
	error) {

	return c.rentExemption(ctx, tokenAccountSize)
}

func (c *Client) rentExemption(ctx context.Context,
	size uint64) (sol.Amount, error) {

	if err := c.throttle(ctx); err != nil {
		return 0, err
	}

	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(
		ctx, size, c.cfg.Commitment,
	)
	if err != nil {
		return 0, networkError("rent exemption", err)
	}

	return sol.Amount(lamports), nil
}

// Balance returns the lamport balance of addr.
func (c *Client) Balance(ctx context.Context,
	addr solana.PublicKey) (sol.Amount, error) {

	if err := c.throttle(ctx); err != nil {
		return 0, err
	}

	res, err := c.rpc.GetBalance(ctx, addr, c.cfg.Commitment)
	if err != nil {
		return 0, networkError("balance", err)
	}

	return sol.Amount(res.Value), nil
}

// TokenBalance returns the balance of the associated token account of
// owner for mint, in token base units.  A missing account has a zero
// balance.
func (c *Client) TokenBalance(ctx context.Context, owner,
	mint solana.PublicKey) (uint64, error) {

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, err
	}

	amount, _, err := c.tokenAccountBalance(ctx, ata)
	return amount, err
}

// tokenAccountBalance returns the balance and decimals of a token account,
// or zero if it does not exist.
func (c *Client) tokenAccountBalance(ctx context.Context,
	account solana.PublicKey) (uint64, uint8, error) {

	exists, err := c.accountExists(ctx, account)
	if err != nil || !exists {
		return 0, 0, err
	}

	if err := c.throttle(ctx); err != nil {
		return 0, 0, err
	}

	res, err := c.rpc.GetTokenAccountBalance(ctx, account, c.cfg.Commitment)
	if err != nil {
		return 0, 0, networkError("token balance", err)
	}
	if res.Value == nil {
		return 0, 0, nil
	}

	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid token amount %q: %w",
			res.Value.Amount, err)
	}

	return amount, res.Value.Decimals, nil
}

// accountExists reports whether an account is allocated on chain.
func (c *Client) accountExists(ctx context.Context,
	account solana.PublicKey) (bool, error) {

	if err := c.throttle(ctx); err != nil {
		return false, err
	}

	res, err := c.rpc.GetAccountInfo(ctx, account)
	switch {
	case errors.Is(err, rpc.ErrNotFound):
		return false, nil

	case err != nil:
		return false, networkError("account info", err)

	default:
		return res != nil && res.Value != nil, nil
	}
}

// Transfer sends amount lamports from the signer to to and waits for the
// transaction to reach the configured commitment.
func (c *Client) Transfer(ctx context.Context, signer solana.PrivateKey,
	to solana.PublicKey, amount sol.Amount) (Receipt, error) {

	from := signer.PublicKey()
	balance, err := c.Balance(ctx, from)
	if err != nil {
		return Receipt{}, err
	}
	if balance < amount+c.cfg.TxFee {
		return Receipt{}, fmt.Errorf("%w: %v holds %v, needs %v plus "+
			"fee %v", ErrInsufficientFunds, from, balance, amount,
			c.cfg.TxFee)
	}

	ix := system.NewTransferInstruction(
		amount.Lamports(), from, to,
	).Build()

	sig, err := c.sendAndConfirm(ctx, signer, ix)
	if err != nil {
		return Receipt{}, err
	}

	log.Debugf("Transferred %v from %v to %v (%v)", amount, from, to, sig)

	return Receipt{Signature: sig, Amount: amount}, nil
}

// SweepAll sends the whole balance of the signer minus the transaction fee
// to to.  ErrBelowFeeFloor is returned, and nothing sent, when the balance
// does not exceed the fee.
func (c *Client) SweepAll(ctx context.Context, signer solana.PrivateKey,
	to solana.PublicKey) (Receipt, error) {

	from := signer.PublicKey()
	balance, err := c.Balance(ctx, from)
	if err != nil {
		return Receipt{}, err
	}
	if balance <= c.cfg.TxFee {
		return Receipt{}, fmt.Errorf("%w: %v holds %v", ErrBelowFeeFloor,
			from, balance)
	}

	return c.Transfer(ctx, signer, to, balance-c.cfg.TxFee)
}

// TransferToken moves the full mint balance of the signer to the
// associated token account of to, creating that account when missing.
// The signer pays the fee and any rent.
func (c *Client) TransferToken(ctx context.Context, signer solana.PrivateKey,
	to, mint solana.PublicKey) (Receipt, error) {

	owner := signer.PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return Receipt{}, err
	}
	dest, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return Receipt{}, err
	}

	amount, decimals, err := c.tokenAccountBalance(ctx, source)
	if err != nil {
		return Receipt{}, err
	}
	if amount == 0 {
		return Receipt{}, fmt.Errorf("%w: %v has no %v", ErrNothingToSend,
			owner, mint)
	}

	exists, err := c.accountExists(ctx, dest)
	if err != nil {
		return Receipt{}, err
	}

	var ixs []solana.Instruction
	if !exists {
		ixs = append(ixs, associatedtokenaccount.NewCreateInstruction(
			owner, to, mint,
		).Build())
	}
	ixs = append(ixs, token.NewTransferCheckedInstruction(
		amount, decimals, source, mint, dest, owner, nil,
	).Build())

	sig, err := c.sendAndConfirm(ctx, signer, ixs...)
	if err != nil {
		return Receipt{}, err
	}

	log.Debugf("Transferred %d units of %v from %v to %v (%v)", amount,
		mint, owner, to, sig)

	return Receipt{Signature: sig, Amount: sol.Amount(amount)}, nil
}

// Submit sends an already signed transaction and waits for it to reach the
// configured commitment.
func (c *Client) Submit(ctx context.Context,
	tx *solana.Transaction) (solana.Signature, error) {

	if err := c.throttle(ctx); err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, networkError("send transaction", err)
	}

	log.Tracef("Submitted %v, waiting for %v commitment", sig,
		c.cfg.Commitment)

	if err := c.confirm(ctx, sig); err != nil {
		return sig, err
	}

	return sig, nil
}

// sendAndConfirm builds a transaction paid and signed by signer from the
// given instructions and submits it.
func (c *Client) sendAndConfirm(ctx context.Context, signer solana.PrivateKey,
	ixs ...solana.Instruction) (solana.Signature, error) {

	if err := c.throttle(ctx); err != nil {
		return solana.Signature{}, err
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, c.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, networkError("latest blockhash", err)
	}

	payer := signer.PublicKey()
	tx, err := solana.NewTransaction(
		ixs, recent.Value.Blockhash, solana.TransactionPayer(payer),
	)
	if err != nil {
		return solana.Signature{}, err
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, err
	}

	return c.Submit(ctx, tx)
}

// confirm polls the status of sig until it reaches the configured
// commitment, fails, or the confirmation timeout expires.
func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	t := c.cfg.NewTicker(c.cfg.ConfirmInterval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			done, err := c.status(ctx, sig)
			switch {
			case done:
				return nil

			case ctx.Err() != nil:
				return confirmError(ctx, sig)

			case err != nil:
				return err
			}

		case <-ctx.Done():
			return confirmError(ctx, sig)
		}
	}
}

// confirmError maps the end of a confirmation context to an error.
func confirmError(ctx context.Context, sig solana.Signature) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConfirmTimeout, sig)
	}
	return ctx.Err()
}

// status reports whether sig has reached the configured commitment.
func (c *Client) status(ctx context.Context,
	sig solana.Signature) (bool, error) {

	if err := c.throttle(ctx); err != nil {
		return false, err
	}

	res, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		// Status polls are retried until the deadline.
		log.Debugf("Status of %v unavailable: %v", sig, err)
		return false, nil
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}

	st := res.Value[0]
	if st.Err != nil {
		return false, fmt.Errorf("%w: %v: %v", ErrTransactionFailed,
			sig, st.Err)
	}

	return reached(st.ConfirmationStatus, c.cfg.Commitment), nil
}

// reached reports whether status is at least as strong as commitment.
func reached(status rpc.ConfirmationStatusType,
	commitment rpc.CommitmentType) bool {

	rank := func(s string) int {
		switch s {
		case string(rpc.CommitmentFinalized):
			return 3
		case string(rpc.CommitmentConfirmed):
			return 2
		case string(rpc.CommitmentProcessed):
			return 1
		default:
			return 0
		}
	}

	return rank(string(status)) > 0 &&
		rank(string(status)) >= rank(string(commitment))
}
