// Package gateway implements the remote backend boundary over HTTP.
//
// Every request carries the entity's client-generated id so the backend can
// deduplicate redeliveries. Responses are classified into the engine's
// tri-state outcome: only a definitive rejection the backend articulated is
// terminal; anything ambiguous stays retryable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/roach88/tillsync/internal/engine"
	"github.com/roach88/tillsync/internal/pos"
)

// DefaultTimeout bounds each dispatch attempt. A register on a flaky uplink
// must fail fast and lean on the retry schedule, not hang a drain pass.
const DefaultTimeout = 10 * time.Second

// Remote is the production engine.Gateway: JSON over HTTP against the POS
// backend's sync API.
type Remote struct {
	base   string
	apiKey string
	client *http.Client
}

// Option configures a Remote.
type Option func(*Remote)

// WithHTTPClient overrides the HTTP client. Tests inject httptest clients.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Remote) { r.client = c }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Remote) { r.client.Timeout = d }
}

// NewRemote creates a gateway against baseURL, authenticating with apiKey.
func NewRemote(baseURL, apiKey string, opts ...Option) *Remote {
	r := &Remote{
		base:   baseURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ack is the backend's acknowledgment envelope.
type ack struct {
	ID string `json:"id"`
}

// rejection is the backend's structured error envelope.
type rejection struct {
	Error string `json:"error"`
}

// OpenBatch registers a batch open with the backend.
func (r *Remote) OpenBatch(ctx context.Context, b pos.Batch) engine.Result {
	return r.post(ctx, "/v1/batches", b)
}

// CloseBatch reports a batch close. The batch is addressed by its client id;
// the backend resolves it to the server-side record created by the open.
func (r *Remote) CloseBatch(ctx context.Context, b pos.Batch) engine.Result {
	return r.post(ctx, fmt.Sprintf("/v1/batches/%s/close", b.ID), b)
}

// CreateOrder uploads a completed sale.
func (r *Remote) CreateOrder(ctx context.Context, o pos.Order) engine.Result {
	return r.post(ctx, "/v1/orders", o)
}

// CreateRefund uploads a refund.
func (r *Remote) CreateRefund(ctx context.Context, ref pos.Refund) engine.Result {
	return r.post(ctx, "/v1/refunds", ref)
}

func (r *Remote) post(ctx context.Context, path string, payload any) engine.Result {
	body, err := json.Marshal(payload)
	if err != nil {
		// Local marshalling bugs will not heal on retry, but they are also
		// not the backend refusing anything. Surface loudly as transient so
		// the command stays visible in the queue.
		return engine.TransientFailure(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+path, bytes.NewReader(body))
	if err != nil {
		return engine.TransientFailure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return engine.TransientFailure(fmt.Errorf("post %s: %w", path, err))
	}
	defer resp.Body.Close()

	return classify(resp, path)
}

// classify maps an HTTP response to a tri-state outcome.
//
//	2xx                     success, server id from the body
//	408, 429, 5xx           transient (retryable)
//	remaining 4xx           business rejection (terminal)
//
// A 4xx whose body cannot be parsed is still terminal: the backend spoke,
// even if unclearly.
func classify(resp *http.Response, path string) engine.Result {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return engine.TransientFailure(fmt.Errorf("read response from %s: %w", path, err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var a ack
		if err := json.Unmarshal(raw, &a); err != nil || a.ID == "" {
			// Acknowledged but unidentified. The command is applied
			// remotely; record success without a server id rather than
			// redeliver.
			return engine.Success("")
		}
		return engine.Success(a.ID)

	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return engine.TransientFailure(fmt.Errorf("post %s: backend returned %d", path, resp.StatusCode))

	default:
		var rej rejection
		if err := json.Unmarshal(raw, &rej); err == nil && rej.Error != "" {
			return engine.BusinessFailure(rej.Error)
		}
		return engine.BusinessFailure(fmt.Sprintf("backend returned %d", resp.StatusCode))
	}
}
