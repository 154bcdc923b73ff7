package gateway

import (
	"context"
	"net/http"
	"time"
)

// PingProbe reports backend reachability by hitting its health endpoint.
// Implements engine.Probe. Any HTTP response counts as online, including
// errors; only a transport failure means the network is down.
type PingProbe struct {
	url    string
	client *http.Client
}

// NewPingProbe creates a probe against the backend's /v1/ping endpoint.
func NewPingProbe(baseURL string) *PingProbe {
	return &PingProbe{
		url:    baseURL + "/v1/ping",
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

// Online reports whether the backend answered at all.
func (p *PingProbe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
