// Package api serves the localhost HTTP API the register UI talks to.
//
// Every mutation commits locally and returns immediately; the response never
// waits on the backend. Clients learn about sync progress by polling the
// status endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/tillsync/internal/engine"
	"github.com/roach88/tillsync/internal/ledger"
	"github.com/roach88/tillsync/internal/pos"
)

// Handler exposes the sync engine over HTTP.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a handler around an engine.
func NewHandler(e *engine.Engine) *Handler { return &Handler{engine: e} }

// NewRouter builds the full route tree.
func NewRouter(e *engine.Engine) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	NewHandler(e).RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts all endpoints under /api/v1.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/batches", h.startBatch)                // POST /api/v1/batches
		r.Post("/batches/{id}/close", h.closeBatch)     // POST /api/v1/batches/{id}/close
		r.Get("/batches/{id}", h.getBatch)              // GET  /api/v1/batches/{id}
		r.Get("/batches/{id}/orders", h.listOrders)     // GET  /api/v1/batches/{id}/orders
		r.Post("/orders", h.placeOrder)                 // POST /api/v1/orders
		r.Get("/orders/{id}", h.getOrder)               // GET  /api/v1/orders/{id}
		r.Post("/orders/{id}/refunds", h.createRefund)  // POST /api/v1/orders/{id}/refunds
		r.Get("/status", h.status)                      // GET  /api/v1/status
		r.Get("/status/{id}", h.entityStatus)           // GET  /api/v1/status/{id}
		r.Post("/sync", h.syncNow)                      // POST /api/v1/sync
	})
}

func (h *Handler) startBatch(w http.ResponseWriter, r *http.Request) {
	var p ledger.StartParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond(w, http.StatusBadRequest, errBody(err.Error()))
		return
	}
	b, err := h.engine.StartBatch(r.Context(), p)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, b)
}

type closeBatchRequest struct {
	ClosingCash pos.Cents `json:"closing_cash"`
}

func (h *Handler) closeBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req closeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, errBody(err.Error()))
		return
	}
	if _, err := h.engine.CloseBatch(r.Context(), id, req.ClosingCash); err != nil {
		respondErr(w, err)
		return
	}
	b, err := h.engine.Batches().Get(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, b)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Batches().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if b == nil {
		respond(w, http.StatusNotFound, errBody("batch not found"))
		return
	}
	respond(w, http.StatusOK, b)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.Orders().ListByBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if orders == nil {
		orders = []pos.Order{}
	}
	respond(w, http.StatusOK, orders)
}

type placeOrderRequest struct {
	BatchID string `json:"batch_id"`
	ledger.OrderPayload
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, errBody(err.Error()))
		return
	}
	o, err := h.engine.PlaceOrder(r.Context(), req.BatchID, req.OrderPayload)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.engine.Orders().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if o == nil {
		respond(w, http.StatusNotFound, errBody("order not found"))
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) createRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req pos.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, errBody(err.Error()))
		return
	}
	ref, err := h.engine.CreateRefund(r.Context(), id, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, ref)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Status(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, st)
}

type entityStatusResponse struct {
	ID        string `json:"id"`
	SyncState string `json:"sync_state"`
}

func (h *Handler) entityStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.engine.SyncStatus(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if state == "" {
		respond(w, http.StatusNotFound, errBody("unknown entity id"))
		return
	}
	respond(w, http.StatusOK, entityStatusResponse{ID: id, SyncState: state})
}

func (h *Handler) syncNow(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.SyncNow(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

// respondErr maps ledger sentinels to HTTP statuses. Unrecognized errors are
// 500s; validation failures from the ledgers read as 400s.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrBatchNotFound), errors.Is(err, ledger.ErrOrderNotFound):
		respond(w, http.StatusNotFound, errBody(err.Error()))
	case errors.Is(err, ledger.ErrBatchClosed):
		respond(w, http.StatusConflict, errBody(err.Error()))
	case errors.Is(err, ledger.ErrEmptyOrder), errors.Is(err, ledger.ErrValidation):
		respond(w, http.StatusBadRequest, errBody(err.Error()))
	default:
		respond(w, http.StatusInternalServerError, errBody(err.Error()))
	}
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
