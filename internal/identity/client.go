// Package identity calls the external signer-verification service.
// Signature checking itself is not this system's job; the API layer hands an
// attestation to this client and trusts its verdict.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
)

// ErrVerificationFailed indicates the identity service rejected the attestation.
var ErrVerificationFailed = errors.New("signer verification failed")

// Client is an HTTP client for the identity service with retry on 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new identity service client.
func NewClient(baseURL string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

type verifyRequest struct {
	Signer      domain.Address `json:"signer"`
	Attestation string         `json:"attestation"`
}

// VerifySigner asks the identity service whether the attestation proves
// control of the signer address. Returns ErrVerificationFailed on rejection.
func (c *Client) VerifySigner(ctx context.Context, signer domain.Address, attestation string) error {
	payload, err := json.Marshal(verifyRequest{Signer: signer, Attestation: attestation})
	if err != nil {
		return fmt.Errorf("encoding verify request: %w", err)
	}
	url := c.baseURL + "/api/v1/verify"

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusNoContent:
			return nil
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrVerificationFailed, signer)
		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", url, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return lastErr
		default:
			return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
		}
	}

	return lastErr
}
