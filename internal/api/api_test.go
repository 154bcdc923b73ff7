package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/engine"
	"github.com/roach88/tillsync/internal/pos"
	"github.com/roach88/tillsync/internal/store"
	"github.com/roach88/tillsync/internal/testutil"
)

// okGateway acknowledges everything. API tests exercise HTTP semantics, not
// dispatch outcomes; those live in the engine tests.
type okGateway struct{}

func (okGateway) OpenBatch(_ context.Context, b pos.Batch) engine.Result {
	return engine.Success("srv-" + b.ID)
}
func (okGateway) CloseBatch(_ context.Context, b pos.Batch) engine.Result {
	return engine.Success("srv-" + b.ID)
}
func (okGateway) CreateOrder(_ context.Context, o pos.Order) engine.Result {
	return engine.Success("srv-" + o.ID)
}
func (okGateway) CreateRefund(_ context.Context, r pos.Refund) engine.Result {
	return engine.Success("srv-" + r.ID)
}

func newTestServer(t *testing.T, ids ...string) *httptest.Server {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "till.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clk := testutil.NewClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	e := engine.New(s, okGateway{},
		engine.WithClock(clk.Now),
		engine.WithIDGenerator(pos.NewFixedGenerator(ids...)),
		engine.WithHolderID("api-test"),
	)

	srv := httptest.NewServer(NewRouter(e))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func startBatchReq() map[string]any {
	return map[string]any{
		"user_id":       "cashier-1",
		"store_id":      "store-1",
		"register_id":   "reg-1",
		"starting_cash": 10000,
	}
}

func TestStartBatchEndpoint(t *testing.T) {
	srv := newTestServer(t, "batch-1")

	resp := postJSON(t, srv.URL+"/api/v1/batches", startBatchReq())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	b := decode[pos.Batch](t, resp)
	assert.Equal(t, "batch-1", b.ID)
	assert.Equal(t, pos.BatchOpen, b.State)
	assert.Equal(t, pos.BatchLocalOpen, b.SyncState)
}

func TestStartBatchValidation(t *testing.T) {
	srv := newTestServer(t, "batch-1")

	resp := postJSON(t, srv.URL+"/api/v1/batches", map[string]any{"user_id": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Contains(t, body["error"], "register id is required")
}

func TestCloseBatchEndpoint(t *testing.T) {
	srv := newTestServer(t, "batch-1")
	postJSON(t, srv.URL+"/api/v1/batches", startBatchReq())

	resp := postJSON(t, srv.URL+"/api/v1/batches/batch-1/close",
		map[string]any{"closing_cash": 12500})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b := decode[pos.Batch](t, resp)
	assert.Equal(t, pos.BatchClosed, b.State)
	require.NotNil(t, b.ClosingCash)
	assert.Equal(t, pos.Cents(12500), *b.ClosingCash)

	// Closing again conflicts.
	resp = postJSON(t, srv.URL+"/api/v1/batches/batch-1/close",
		map[string]any{"closing_cash": 12500})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCloseUnknownBatch(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/v1/batches/nope/close", map[string]any{"closing_cash": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	srv := newTestServer(t, "batch-1", "order-1")
	postJSON(t, srv.URL+"/api/v1/batches", startBatchReq())

	resp := postJSON(t, srv.URL+"/api/v1/orders", map[string]any{
		"batch_id": "batch-1",
		"lines": []map[string]any{
			{"sku": "latte", "name": "Latte", "quantity": 2, "unit_price": 450},
		},
		"tax": 90,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	o := decode[pos.Order](t, resp)
	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, pos.Cents(990), o.Total)
	assert.Equal(t, pos.RecordLocalOnly, o.SyncState)
}

func TestPlaceOrderRejectsEmpty(t *testing.T) {
	srv := newTestServer(t, "batch-1")
	postJSON(t, srv.URL+"/api/v1/batches", startBatchReq())

	resp := postJSON(t, srv.URL+"/api/v1/orders", map[string]any{"batch_id": "batch-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefundEndpoint(t *testing.T) {
	srv := newTestServer(t, "batch-1", "order-1", "refund-1")
	postJSON(t, srv.URL+"/api/v1/batches", startBatchReq())
	postJSON(t, srv.URL+"/api/v1/orders", map[string]any{
		"batch_id": "batch-1",
		"lines":    []map[string]any{{"sku": "latte", "quantity": 1, "unit_price": 450}},
	})

	resp := postJSON(t, srv.URL+"/api/v1/orders/order-1/refunds",
		map[string]any{"type": "FULL", "reason": "damaged"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	r := decode[pos.Refund](t, resp)
	assert.Equal(t, "refund-1", r.ID)
	assert.Equal(t, pos.Cents(450), r.Amount)
}

func TestSyncAndStatusEndpoints(t *testing.T) {
	srv := newTestServer(t, "batch-1", "order-1")
	postJSON(t, srv.URL+"/api/v1/batches", startBatchReq())
	postJSON(t, srv.URL+"/api/v1/orders", map[string]any{
		"batch_id": "batch-1",
		"lines":    []map[string]any{{"sku": "latte", "quantity": 1, "unit_price": 450}},
	})

	resp := postJSON(t, srv.URL+"/api/v1/sync", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[engine.DrainStats](t, resp)
	assert.Equal(t, 2, stats.Dispatched)

	got, err := http.Get(srv.URL + "/api/v1/status/order-1")
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	es := decode[entityStatusResponse](t, got)
	assert.Equal(t, "SYNCED", es.SyncState)

	overall, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer overall.Body.Close()
	st := decode[engine.Status](t, overall)
	assert.Equal(t, 2, st.Commands[pos.CommandDone])
	assert.Equal(t, uint64(2), st.LastSeq)
}

func TestEntityStatusUnknown(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/status/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetBatchAndOrders(t *testing.T) {
	srv := newTestServer(t, "batch-1", "order-1")
	postJSON(t, srv.URL+"/api/v1/batches", startBatchReq())
	postJSON(t, srv.URL+"/api/v1/orders", map[string]any{
		"batch_id": "batch-1",
		"lines":    []map[string]any{{"sku": "latte", "quantity": 1, "unit_price": 450}},
	})

	resp, err := http.Get(srv.URL + "/api/v1/batches/batch-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/batches/batch-1/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	orders := decode[[]pos.Order](t, resp)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-1", orders[0].ID)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/batches/%s", srv.URL, "ghost"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
