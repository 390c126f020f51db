// Package facilitator talks to the external service that cryptographically
// verifies and settles submitted transfer proofs. The engine never inspects
// proofs itself.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	verifyPath = "/verify"
	settlePath = "/settle"
)

// Requirement describes what a proof must satisfy: the price in base units
// (decimal string), the settlement network, and the receiving wallet.
type Requirement struct {
	Amount  string `json:"maxAmountRequired"`
	Network string `json:"network"`
	PayTo   string `json:"payTo"`
	Asset   string `json:"asset,omitempty"`
}

// VerifyResult is the facilitator's judgement on a submitted proof.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResult confirms an on-chain settlement.
type SettleResult struct {
	Success     bool   `json:"success"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// Verifier is the narrow interface the admission guard depends on.
type Verifier interface {
	Verify(ctx context.Context, proof json.RawMessage, req Requirement) (VerifyResult, error)
	Settle(ctx context.Context, proof json.RawMessage, req Requirement) (SettleResult, error)
}

// Options parameterise the HTTP client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client calls a facilitator over HTTP.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// New constructs a facilitator client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "facilitator").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Verify asks the facilitator whether the proof satisfies the requirement.
// A transport or decoding failure is an error; an invalid proof is a
// well-formed VerifyResult with IsValid false.
func (c *Client) Verify(ctx context.Context, proof json.RawMessage, req Requirement) (VerifyResult, error) {
	var out VerifyResult
	if err := c.post(ctx, verifyPath, proof, req, &out); err != nil {
		return VerifyResult{}, err
	}
	return out, nil
}

// Settle instructs the facilitator to execute the verified transfer.
func (c *Client) Settle(ctx context.Context, proof json.RawMessage, req Requirement) (SettleResult, error) {
	var out SettleResult
	if err := c.post(ctx, settlePath, proof, req, &out); err != nil {
		return SettleResult{}, err
	}
	return out, nil
}

type facilitatorRequest struct {
	PaymentPayload      json.RawMessage `json:"paymentPayload"`
	PaymentRequirements Requirement     `json:"paymentRequirements"`
}

func (c *Client) post(ctx context.Context, path string, proof json.RawMessage, requirement Requirement, out any) error {
	if c.baseURL == "" {
		return errors.New("facilitator base url not configured")
	}
	if len(proof) == 0 {
		return errors.New("payment proof is empty")
	}

	body, err := json.Marshal(facilitatorRequest{
		PaymentPayload:      proof,
		PaymentRequirements: requirement,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode facilitator response: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("facilitator error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("facilitator error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("facilitator error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("facilitator error (%d)", status)
}

var _ Verifier = (*Client)(nil)
