// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testMint = solana.MustPublicKeyFromBase58(
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	)
	testNative = solana.MustPublicKeyFromBase58(
		"So11111111111111111111111111111111111111112",
	)
	testPool = solana.MustPublicKeyFromBase58(
		"58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2",
	)
)

// mockSubmitter is a mock implementation of Submitter.
type mockSubmitter struct {
	mock.Mock
}

var _ Submitter = (*mockSubmitter)(nil)

func (m *mockSubmitter) Submit(ctx context.Context,
	tx *solana.Transaction) (solana.Signature, error) {

	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func testKey(seed byte) solana.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return solana.PrivateKey(ed25519.NewKeyFromSeed(s))
}

// unsignedTx returns a base64 transaction paid by payer.
func unsignedTx(t *testing.T, payer solana.PublicKey) string {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(
				1, payer, testKey(9).PublicKey(),
			).Build(),
		},
		solana.Hash{1},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(raw)
}

// quoteServer serves a fixed quote and a swap transaction for payer.  The
// returned counter tracks /swap calls.
func quoteServer(t *testing.T, payer solana.PublicKey, ammKey string,
	outAmount, threshold uint64) (*httptest.Server, *int32) {

	var swaps int32
	txB64 := unsignedTx(t, payer)

	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("inputMint") != testNative.String() ||
			q.Get("outputMint") != testMint.String() ||
			q.Get("amount") != "1000000" ||
			q.Get("slippageBps") != "100" {

			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}

		fmt.Fprintf(w, `{
			"inputMint": %q,
			"inAmount": "1000000",
			"outputMint": %q,
			"outAmount": "%d",
			"otherAmountThreshold": "%d",
			"slippageBps": 100,
			"routePlan": [{
				"swapInfo": {
					"ammKey": %q,
					"label": "Raydium",
					"inputMint": %q,
					"outputMint": %q
				},
				"percent": 100
			}]
		}`, testNative, testMint, outAmount, threshold, ammKey,
			testNative, testMint)
	})
	mux.HandleFunc("/swap", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&swaps, 1)

		var req swapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.UserPublicKey != payer.String() ||
			len(req.QuoteResponse) == 0 {

			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(swapResponse{
			SwapTransaction: txB64,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, &swaps
}

func testRequest() Request {
	return Request{
		Pool:        testPool,
		InputMint:   testNative,
		OutputMint:  testMint,
		AmountIn:    1_000_000,
		SlippageBps: 100,
		MinOut:      140_000,
	}
}

// TestConvert checks a successful conversion is signed by the wallet and
// submitted.
func TestConvert(t *testing.T) {
	t.Parallel()

	// Arrange.
	signer := testKey(1)
	srv, swaps := quoteServer(
		t, signer.PublicKey(), testPool.String(), 150_000, 148_500,
	)
	sub := &mockSubmitter{}
	sig := solana.Signature{5}
	sub.On("Submit", mock.Anything, mock.MatchedBy(
		func(tx *solana.Transaction) bool {
			return len(tx.Signatures) == 1 &&
				tx.VerifySignatures() == nil
		})).Return(sig, nil)

	c := New(Config{APIURL: srv.URL + "/"}, sub)

	// Act.
	receipt, err := c.Convert(context.Background(), signer, testRequest())

	// Assert.
	require.NoError(t, err)
	require.Equal(t, sig, receipt.Signature)
	require.EqualValues(t, 150_000, receipt.Amount)
	require.EqualValues(t, 1, atomic.LoadInt32(swaps))
	sub.AssertExpectations(t)
}

// TestConvertRejected checks quotes violating the request are never
// executed.
func TestConvertRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ammKey    string
		threshold uint64
		err       error
	}{
		{
			name:      "route avoids pool",
			ammKey:    testKey(3).PublicKey().String(),
			threshold: 148_500,
			err:       ErrPool,
		},
		{
			name:      "guaranteed output too low",
			ammKey:    testPool.String(),
			threshold: 139_999,
			err:       ErrSlippageExceeded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			signer := testKey(1)
			srv, swaps := quoteServer(
				t, signer.PublicKey(), tc.ammKey, 150_000,
				tc.threshold,
			)
			sub := &mockSubmitter{}
			c := New(Config{APIURL: srv.URL}, sub)

			_, err := c.Convert(
				context.Background(), signer, testRequest(),
			)
			require.ErrorIs(t, err, tc.err)
			require.Zero(t, atomic.LoadInt32(swaps))
			sub.AssertNotCalled(t, "Submit", mock.Anything,
				mock.Anything)
		})
	}
}

// TestConvertAPIError checks error bodies of the service map to ErrPool.
func TestConvertAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"No routes found",`+
				`"errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`)
		},
	))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL}, &mockSubmitter{})
	_, err := c.Convert(context.Background(), testKey(1), testRequest())
	require.ErrorIs(t, err, ErrPool)
	require.Contains(t, err.Error(), "COULD_NOT_FIND_ANY_ROUTE")
}

// TestConvertSubmitFailure checks submission errors are returned as is.
func TestConvertSubmitFailure(t *testing.T) {
	t.Parallel()

	signer := testKey(1)
	srv, _ := quoteServer(
		t, signer.PublicKey(), testPool.String(), 150_000, 148_500,
	)
	submitErr := errors.New("blockhash expired")
	sub := &mockSubmitter{}
	sub.On("Submit", mock.Anything, mock.Anything).Return(
		solana.Signature{}, submitErr)

	c := New(Config{APIURL: srv.URL}, sub)
	_, err := c.Convert(context.Background(), signer, testRequest())
	require.ErrorIs(t, err, submitErr)
}

// TestConvertZeroAmount checks an empty conversion fails before any
// request.
func TestConvertZeroAmount(t *testing.T) {
	t.Parallel()

	req := testRequest()
	req.AmountIn = 0

	c := New(Config{APIURL: "http://127.0.0.1:1"}, &mockSubmitter{})
	_, err := c.Convert(context.Background(), testKey(1), req)
	require.ErrorIs(t, err, ErrPool)
}

// TestQuoteLabels checks the route accessors.
func TestQuoteLabels(t *testing.T) {
	t.Parallel()

	signer := testKey(1)
	srv, _ := quoteServer(
		t, signer.PublicKey(), testPool.String(), 150_000, 148_500,
	)
	c := New(Config{APIURL: srv.URL}, &mockSubmitter{})

	quote, err := c.Quote(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, []string{"Raydium"}, quote.Labels())
	require.True(t, quote.Uses(testPool))

	minOut, err := quote.MinOut()
	require.NoError(t, err)
	require.EqualValues(t, 148_500, minOut)
}
