package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPingProbeOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ping", r.URL.Path)
	}))
	defer srv.Close()

	p := NewPingProbe(srv.URL)
	assert.True(t, p.Online(context.Background()))
}

func TestPingProbeAnyResponseCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewPingProbe(srv.URL)
	assert.True(t, p.Online(context.Background()),
		"a 503 still proves the network path works; dispatch outcomes handle the rest")
}

func TestPingProbeOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewPingProbe(srv.URL)
	assert.False(t, p.Online(context.Background()))
}
