package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable marks transport-level failures (network errors, timeouts,
// provider 5xx). Callers may retry; no funds were moved.
var ErrUnavailable = errors.New("escrow provider unavailable")

// RejectionError means the provider processed the request and refused the
// one-time code. User-retryable with a fresh code.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "escrow release rejected: " + e.Reason
}

// Client wraps the escrow provider's release API.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type releaseRequest struct {
	OTP string `json:"otp"`
}

type releaseResponse struct {
	Released bool   `json:"released"`
	Error    string `json:"error"`
}

// Release asks the provider to release the funds held under escrowRef. The
// call is bounded by ctx and the client timeout; a timeout is a failure, the
// local state must not advance.
func (c *Client) Release(ctx context.Context, escrowRef, otp string) error {
	payload, err := json.Marshal(releaseRequest{OTP: otp})
	if err != nil {
		return fmt.Errorf("marshal release request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/escrows/%s/release", c.baseURL, escrowRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create release request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result releaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode release response (status %d): %w", resp.StatusCode, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if result.Released {
			return nil
		}
		return &RejectionError{Reason: reasonOrDefault(result.Error)}
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return &RejectionError{Reason: reasonOrDefault(result.Error)}
	default:
		return fmt.Errorf("escrow release: unexpected status %d", resp.StatusCode)
	}
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "code rejected"
	}
	return reason
}
