// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hopfund/hopfund/sol"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockRPC is a mock implementation of RPCClient.
type mockRPC struct {
	mock.Mock
}

var _ RPCClient = (*mockRPC)(nil)

func (m *mockRPC) GetMinimumBalanceForRentExemption(ctx context.Context,
	dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {

	args := m.Called(ctx, dataSize, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockRPC) GetBalance(ctx context.Context, account solana.PublicKey,
	commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {

	args := m.Called(ctx, account, commitment)
	res, _ := args.Get(0).(*rpc.GetBalanceResult)
	return res, args.Error(1)
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context,
	commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {

	args := m.Called(ctx, commitment)
	res, _ := args.Get(0).(*rpc.GetLatestBlockhashResult)
	return res, args.Error(1)
}

func (m *mockRPC) GetAccountInfo(ctx context.Context,
	account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {

	args := m.Called(ctx, account)
	res, _ := args.Get(0).(*rpc.GetAccountInfoResult)
	return res, args.Error(1)
}

func (m *mockRPC) GetTokenAccountBalance(ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult,
	error) {

	args := m.Called(ctx, account, commitment)
	res, _ := args.Get(0).(*rpc.GetTokenAccountBalanceResult)
	return res, args.Error(1)
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context,
	tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature,
	error) {

	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, searchHistory bool,
	sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {

	args := m.Called(ctx, searchHistory, sigs)
	res, _ := args.Get(0).(*rpc.GetSignatureStatusesResult)
	return res, args.Error(1)
}

// testKey returns a deterministic private key.
func testKey(seed byte) solana.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return solana.PrivateKey(ed25519.NewKeyFromSeed(s))
}

// forceTicker returns a ticker constructor whose ticks fire continuously
// until the test ends.
func forceTicker(t *testing.T) func(time.Duration) ticker.Ticker {
	return func(d time.Duration) ticker.Ticker {
		f := ticker.NewForce(d)
		quit := make(chan struct{})
		t.Cleanup(func() {
			close(quit)
		})

		go func() {
			for {
				select {
				case f.Force <- time.Now():
				case <-quit:
					return
				}
			}
		}()

		return f
	}
}

// newTestClient returns a client over a fresh mock with a confirmed
// commitment and forced status polls.
func newTestClient(t *testing.T) (*Client, *mockRPC) {
	m := &mockRPC{}
	c := New(m, Config{
		Commitment:     rpc.CommitmentConfirmed,
		TxFee:          5000,
		ConfirmTimeout: 5 * time.Second,
		NewTicker:      forceTicker(t),
	})
	return c, m
}

func balanceResult(lamports uint64) *rpc.GetBalanceResult {
	return &rpc.GetBalanceResult{Value: lamports}
}

func blockhashResult() *rpc.GetLatestBlockhashResult {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash: solana.Hash{1, 2, 3},
		},
	}
}

func statusResult(
	status rpc.ConfirmationStatusType) *rpc.GetSignatureStatusesResult {

	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: status},
		},
	}
}

// TestRentExemption checks the rent queries ask for the right data sizes.
func TestRentExemption(t *testing.T) {
	t.Parallel()

	c, m := newTestClient(t)
	m.On("GetMinimumBalanceForRentExemption", mock.Anything, uint64(0),
		rpc.CommitmentConfirmed).Return(uint64(890_880), nil)
	m.On("GetMinimumBalanceForRentExemption", mock.Anything,
		uint64(tokenAccountSize), rpc.CommitmentConfirmed).Return(
		uint64(2_039_280), nil)

	rent, err := c.MinimumRentExemption(context.Background())
	require.NoError(t, err)
	require.Equal(t, sol.Amount(890_880), rent)

	tokenRent, err := c.TokenAccountRentExemption(context.Background())
	require.NoError(t, err)
	require.Equal(t, sol.Amount(2_039_280), tokenRent)

	m.AssertExpectations(t)
}

// TestNetworkError checks RPC failures are wrapped with ErrNetwork.
func TestNetworkError(t *testing.T) {
	t.Parallel()

	c, m := newTestClient(t)
	addr := testKey(1).PublicKey()
	rpcErr := errors.New("connection refused")
	m.On("GetBalance", mock.Anything, addr, rpc.CommitmentConfirmed).Return(
		nil, rpcErr)

	_, err := c.Balance(context.Background(), addr)
	require.ErrorIs(t, err, ErrNetwork)
	require.ErrorIs(t, err, rpcErr)
}

// TestTransfer checks a transfer is signed, sent and confirmed.
func TestTransfer(t *testing.T) {
	t.Parallel()

	// Arrange: the sender can cover the amount and the fee.
	c, m := newTestClient(t)
	signer := testKey(1)
	to := testKey(2).PublicKey()
	sig := solana.Signature{9}

	m.On("GetBalance", mock.Anything, signer.PublicKey(),
		rpc.CommitmentConfirmed).Return(balanceResult(1_005_000), nil)
	m.On("GetLatestBlockhash", mock.Anything, rpc.CommitmentConfirmed).Return(
		blockhashResult(), nil)
	m.On("SendTransactionWithOpts", mock.Anything, mock.MatchedBy(
		func(tx *solana.Transaction) bool {
			return len(tx.Signatures) == 1 &&
				tx.Message.AccountKeys[0].Equals(
					signer.PublicKey(),
				)
		}), mock.Anything).Return(sig, nil)
	m.On("GetSignatureStatuses", mock.Anything, false,
		[]solana.Signature{sig}).Return(
		statusResult(rpc.ConfirmationStatusProcessed), nil).Once()
	m.On("GetSignatureStatuses", mock.Anything, false,
		[]solana.Signature{sig}).Return(
		statusResult(rpc.ConfirmationStatusConfirmed), nil).Once()

	// Act.
	receipt, err := c.Transfer(context.Background(), signer, to, 1_000_000)

	// Assert: the second poll reached the commitment.
	require.NoError(t, err)
	require.Equal(t, sig, receipt.Signature)
	require.Equal(t, sol.Amount(1_000_000), receipt.Amount)
	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "GetSignatureStatuses", 2)
}

// TestTransferInsufficientFunds checks a transfer the sender cannot afford
// is never sent.
func TestTransferInsufficientFunds(t *testing.T) {
	t.Parallel()

	c, m := newTestClient(t)
	signer := testKey(1)
	m.On("GetBalance", mock.Anything, signer.PublicKey(),
		rpc.CommitmentConfirmed).Return(balanceResult(1_000_000), nil)

	_, err := c.Transfer(
		context.Background(), signer, testKey(2).PublicKey(), 1_000_000,
	)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	m.AssertNotCalled(t, "SendTransactionWithOpts", mock.Anything,
		mock.Anything, mock.Anything)
}

// TestTransferFailed checks an on-chain error is reported.
func TestTransferFailed(t *testing.T) {
	t.Parallel()

	c, m := newTestClient(t)
	signer := testKey(1)
	sig := solana.Signature{7}

	m.On("GetBalance", mock.Anything, signer.PublicKey(),
		rpc.CommitmentConfirmed).Return(balanceResult(2_000_000), nil)
	m.On("GetLatestBlockhash", mock.Anything, rpc.CommitmentConfirmed).Return(
		blockhashResult(), nil)
	m.On("SendTransactionWithOpts", mock.Anything, mock.Anything,
		mock.Anything).Return(sig, nil)
	m.On("GetSignatureStatuses", mock.Anything, false,
		[]solana.Signature{sig}).Return(
		&rpc.GetSignatureStatusesResult{
			Value: []*rpc.SignatureStatusesResult{{
				Err: map[string]interface{}{
					"InstructionError": "custom",
				},
			}},
		}, nil)

	_, err := c.Transfer(
		context.Background(), signer, testKey(2).PublicKey(), 1_000,
	)
	require.ErrorIs(t, err, ErrTransactionFailed)
}

// TestConfirmTimeout checks a transaction that never confirms times out.
func TestConfirmTimeout(t *testing.T) {
	t.Parallel()

	m := &mockRPC{}
	c := New(m, Config{
		ConfirmTimeout: 50 * time.Millisecond,
		NewTicker:      forceTicker(t),
	})
	sig := solana.Signature{3}

	m.On("SendTransactionWithOpts", mock.Anything, mock.Anything,
		mock.Anything).Return(sig, nil)
	m.On("GetSignatureStatuses", mock.Anything, false,
		[]solana.Signature{sig}).Return(
		&rpc.GetSignatureStatusesResult{
			Value: []*rpc.SignatureStatusesResult{nil},
		}, nil)

	_, err := c.Submit(context.Background(), &solana.Transaction{})
	require.ErrorIs(t, err, ErrConfirmTimeout)
}

// TestSweepAll checks the sweep amount and the fee floor.
func TestSweepAll(t *testing.T) {
	t.Parallel()

	t.Run("below floor", func(t *testing.T) {
		t.Parallel()

		c, m := newTestClient(t)
		signer := testKey(1)
		m.On("GetBalance", mock.Anything, signer.PublicKey(),
			rpc.CommitmentConfirmed).Return(balanceResult(5000), nil)

		_, err := c.SweepAll(
			context.Background(), signer, testKey(2).PublicKey(),
		)
		require.ErrorIs(t, err, ErrBelowFeeFloor)
		m.AssertNotCalled(t, "GetLatestBlockhash", mock.Anything,
			mock.Anything)
	})

	t.Run("whole balance minus fee", func(t *testing.T) {
		t.Parallel()

		c, m := newTestClient(t)
		signer := testKey(1)
		sig := solana.Signature{4}
		m.On("GetBalance", mock.Anything, signer.PublicKey(),
			rpc.CommitmentConfirmed).Return(balanceResult(25_000), nil)
		m.On("GetLatestBlockhash", mock.Anything,
			rpc.CommitmentConfirmed).Return(blockhashResult(), nil)
		m.On("SendTransactionWithOpts", mock.Anything, mock.Anything,
			mock.Anything).Return(sig, nil)
		m.On("GetSignatureStatuses", mock.Anything, false,
			[]solana.Signature{sig}).Return(
			statusResult(rpc.ConfirmationStatusFinalized), nil)

		receipt, err := c.SweepAll(
			context.Background(), signer, testKey(2).PublicKey(),
		)
		require.NoError(t, err)
		require.Equal(t, sol.Amount(20_000), receipt.Amount)
	})
}

// TestTokenBalance checks a missing token account reads as zero.
func TestTokenBalance(t *testing.T) {
	t.Parallel()

	owner := testKey(1).PublicKey()
	mint := testKey(5).PublicKey()
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		c, m := newTestClient(t)
		m.On("GetAccountInfo", mock.Anything, ata).Return(
			nil, rpc.ErrNotFound)

		amount, err := c.TokenBalance(context.Background(), owner, mint)
		require.NoError(t, err)
		require.Zero(t, amount)
	})

	t.Run("funded", func(t *testing.T) {
		t.Parallel()

		c, m := newTestClient(t)
		m.On("GetAccountInfo", mock.Anything, ata).Return(
			&rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil)
		m.On("GetTokenAccountBalance", mock.Anything, ata,
			rpc.CommitmentConfirmed).Return(
			&rpc.GetTokenAccountBalanceResult{
				Value: &rpc.UiTokenAmount{
					Amount:   "123456",
					Decimals: 6,
				},
			}, nil)

		amount, err := c.TokenBalance(context.Background(), owner, mint)
		require.NoError(t, err)
		require.Equal(t, uint64(123456), amount)
	})
}

// TestTransferToken checks the destination token account is created when
// missing and the full balance is moved.
func TestTransferToken(t *testing.T) {
	t.Parallel()

	// Arrange.
	c, m := newTestClient(t)
	signer := testKey(1)
	to := testKey(2).PublicKey()
	mint := testKey(5).PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(
		signer.PublicKey(), mint,
	)
	require.NoError(t, err)
	dest, _, err := solana.FindAssociatedTokenAddress(to, mint)
	require.NoError(t, err)
	sig := solana.Signature{8}

	m.On("GetAccountInfo", mock.Anything, source).Return(
		&rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil)
	m.On("GetTokenAccountBalance", mock.Anything, source,
		rpc.CommitmentConfirmed).Return(&rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: "42", Decimals: 6},
	}, nil)
	m.On("GetAccountInfo", mock.Anything, dest).Return(nil, rpc.ErrNotFound)
	m.On("GetLatestBlockhash", mock.Anything, rpc.CommitmentConfirmed).Return(
		blockhashResult(), nil)
	m.On("SendTransactionWithOpts", mock.Anything, mock.MatchedBy(
		func(tx *solana.Transaction) bool {
			return len(tx.Message.Instructions) == 2
		}), mock.Anything).Return(sig, nil)
	m.On("GetSignatureStatuses", mock.Anything, false,
		[]solana.Signature{sig}).Return(
		statusResult(rpc.ConfirmationStatusConfirmed), nil)

	// Act.
	receipt, err := c.TransferToken(context.Background(), signer, to, mint)

	// Assert.
	require.NoError(t, err)
	require.Equal(t, sol.Amount(42), receipt.Amount)
	m.AssertExpectations(t)
}

// TestTransferTokenEmpty checks an empty token account is not sent.
func TestTransferTokenEmpty(t *testing.T) {
	t.Parallel()

	c, m := newTestClient(t)
	signer := testKey(1)
	mint := testKey(5).PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(
		signer.PublicKey(), mint,
	)
	require.NoError(t, err)
	m.On("GetAccountInfo", mock.Anything, source).Return(
		nil, rpc.ErrNotFound)

	_, err = c.TransferToken(
		context.Background(), signer, testKey(2).PublicKey(), mint,
	)
	require.ErrorIs(t, err, ErrNothingToSend)
}

// TestReached checks the commitment ordering.
func TestReached(t *testing.T) {
	t.Parallel()

	require.True(t, reached(
		rpc.ConfirmationStatusFinalized, rpc.CommitmentConfirmed,
	))
	require.True(t, reached(
		rpc.ConfirmationStatusConfirmed, rpc.CommitmentConfirmed,
	))
	require.False(t, reached(
		rpc.ConfirmationStatusProcessed, rpc.CommitmentConfirmed,
	))
	require.False(t, reached(
		rpc.ConfirmationStatusConfirmed, rpc.CommitmentFinalized,
	))
	require.False(t, reached("", rpc.CommitmentProcessed))
}
