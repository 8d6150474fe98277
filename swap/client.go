// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hopfund/hopfund/chain"
	"github.com/hopfund/hopfund/sol"
)

const (
	// DefaultAPIURL is the public Jupiter v6 endpoint.
	DefaultAPIURL = "https://quote-api.jup.ag/v6"

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody limits how much of an error response is read.
	maxErrorBody = 4096
)

var (
	// ErrSlippageExceeded is returned when the guaranteed output of a
	// quote is below the requested minimum.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrPool is returned when the service can not route a conversion
	// through the requested pool or fails to build the swap.
	ErrPool = errors.New("pool unavailable")
)

// Submitter submits a signed transaction and waits for its confirmation.
type Submitter interface {
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature,
		error)
}

// A compile-time assertion to ensure the chain adapter can submit swaps.
var _ Submitter = (*chain.Client)(nil)

// Request describes a single conversion.
type Request struct {
	// Pool is the AMM the route must use.  A zero key accepts any
	// route.
	Pool solana.PublicKey

	InputMint  solana.PublicKey
	OutputMint solana.PublicKey

	// AmountIn is the input amount in base units of InputMint.
	AmountIn uint64

	SlippageBps uint16

	// MinOut is the smallest acceptable guaranteed output, in base units
	// of OutputMint.  Zero disables the check.
	MinOut uint64
}

// Config holds the parameters of a Client.
type Config struct {
	// APIURL is the base URL of the quote/swap service.
	APIURL string

	// HTTPClient is used for all requests.  It defaults to a client with
	// DefaultTimeout.
	HTTPClient *http.Client
}

// Client is a quote/swap service client.
type Client struct {
	base      string
	http      *http.Client
	submitter Submitter
}

// New returns a Client submitting transactions through submitter.
func New(cfg Config, submitter Submitter) *Client {
	base := cfg.APIURL
	if base == "" {
		base = DefaultAPIURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		base:      strings.TrimSuffix(base, "/"),
		http:      httpClient,
		submitter: submitter,
	}
}

// Quote asks the service for the best route of req.
func (c *Client) Quote(ctx context.Context, req Request) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint.String())
	q.Set("outputMint", req.OutputMint.String())
	q.Set("amount", strconv.FormatUint(req.AmountIn, 10))
	q.Set("slippageBps", strconv.Itoa(int(req.SlippageBps)))
	if !req.Pool.IsZero() {
		q.Set("onlyDirectRoutes", "true")
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.base+"/quote?"+q.Encode(), nil,
	)
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := c.do(httpReq, &quote.raw); err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	if err := json.Unmarshal(quote.raw, &quote.quoteFields); err != nil {
		return nil, fmt.Errorf("%w: malformed quote: %w", ErrPool, err)
	}

	return &quote, nil
}

// Convert quotes, builds, signs and submits the conversion described by
// req.  The receipt amount is the quoted output in base units of
// OutputMint.
func (c *Client) Convert(ctx context.Context, signer solana.PrivateKey,
	req Request) (chain.Receipt, error) {

	if req.AmountIn == 0 {
		return chain.Receipt{}, fmt.Errorf("%w: nothing to convert",
			ErrPool)
	}

	quote, err := c.Quote(ctx, req)
	if err != nil {
		return chain.Receipt{}, err
	}

	log.Tracef("Quoted %s %v -> %s %v via %v", quote.InAmount,
		req.InputMint, quote.quoteFields.OutAmount, req.OutputMint,
		quote.Labels())

	if !req.Pool.IsZero() && !quote.Uses(req.Pool) {
		return chain.Receipt{}, fmt.Errorf("%w: route avoids pool %v",
			ErrPool, req.Pool)
	}

	minOut, err := quote.MinOut()
	if err != nil {
		return chain.Receipt{}, err
	}
	if minOut < req.MinOut {
		return chain.Receipt{}, fmt.Errorf("%w: guaranteed %d, "+
			"required %d", ErrSlippageExceeded, minOut, req.MinOut)
	}

	tx, err := c.swapTransaction(ctx, signer.PublicKey(), quote)
	if err != nil {
		return chain.Receipt{}, err
	}

	// The service returns placeholder signatures.
	owner := signer.PublicKey()
	tx.Signatures = nil
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return chain.Receipt{}, fmt.Errorf("sign swap: %w", err)
	}

	sig, err := c.submitter.Submit(ctx, tx)
	if err != nil {
		return chain.Receipt{}, err
	}

	out, _ := quote.OutAmount()
	log.Debugf("Converted %d %v into %d %v for %v (%v)", req.AmountIn,
		req.InputMint, out, req.OutputMint, owner, sig)

	return chain.Receipt{Signature: sig, Amount: sol.Amount(out)}, nil
}

// swapRequest is the body of a /swap call.
type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

// swapResponse is the result of a /swap call.
type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// swapTransaction asks the service to build the transaction executing
// quote for user.
func (c *Client) swapTransaction(ctx context.Context, user solana.PublicKey,
	quote *Quote) (*solana.Transaction, error) {

	body, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.raw,
		UserPublicKey:    user.String(),
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.base+"/swap", bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp swapResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: empty swap transaction", ErrPool)
	}

	tx, err := solana.TransactionFromBase64(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable swap transaction: %w",
			ErrPool, err)
	}

	return tx, nil
}

// apiError is the error body returned by the service.
type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// do performs req and decodes a successful JSON response into out.  Error
// responses are mapped to ErrPool.
func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: %s (%s)", ErrPool, apiErr.Error,
				apiErr.ErrorCode)
		}
		return fmt.Errorf("%w: %s", ErrPool, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
