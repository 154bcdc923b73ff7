package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tillsync/internal/pos"
)

// openTestStore opens a fresh store in a per-test temp directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "till.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testBatch returns a minimal OPEN batch for register r.
func testBatch(id, register string) *pos.Batch {
	return &pos.Batch{
		ID:           id,
		RegisterID:   register,
		StoreID:      "store-1",
		LocationID:   "loc-1",
		UserID:       "cashier-1",
		StartingCash: 10000,
		OpenedAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		State:        pos.BatchOpen,
		SyncState:    pos.BatchLocalOpen,
	}
}

// testOrder returns a one-line order owned by batchID.
func testOrder(id, batchID string) *pos.Order {
	return &pos.Order{
		ID:      id,
		BatchID: batchID,
		Lines: []pos.OrderLine{
			{SKU: "latte", Name: "Latte", Quantity: 1, UnitPrice: 450},
		},
		Subtotal:  450,
		Total:     450,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		SyncState: pos.RecordLocalOnly,
	}
}

// mustStartBatch seeds a batch plus its OPEN_BATCH command.
func mustStartBatch(t *testing.T, s *Store, id, register string) *pos.Batch {
	t.Helper()
	b := testBatch(id, register)
	if err := s.StartBatch(context.Background(), nil, b); err != nil {
		t.Fatalf("StartBatch(%s) failed: %v", id, err)
	}
	return b
}

// mustCreateOrder seeds an order plus its CREATE_ORDER command.
func mustCreateOrder(t *testing.T, s *Store, id, batchID string) *pos.Order {
	t.Helper()
	o := testOrder(id, batchID)
	if err := s.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("CreateOrder(%s) failed: %v", id, err)
	}
	return o
}

// mustComplete drives a command through RUNNING to DONE.
func mustComplete(t *testing.T, s *Store, seq uint64) {
	t.Helper()
	ctx := context.Background()
	if err := s.MarkRunning(ctx, seq); err != nil {
		t.Fatalf("MarkRunning(%d) failed: %v", seq, err)
	}
	if err := s.MarkDone(ctx, seq); err != nil {
		t.Fatalf("MarkDone(%d) failed: %v", seq, err)
	}
}

// commandFor returns the single command of the given type for an entity.
func commandFor(t *testing.T, s *Store, entityID string, typ pos.CommandType) *pos.Command {
	t.Helper()
	cmds, err := s.CommandsForEntity(context.Background(), entityID)
	if err != nil {
		t.Fatalf("CommandsForEntity(%s) failed: %v", entityID, err)
	}
	for i := range cmds {
		if cmds[i].Type == typ && cmds[i].EntityID == entityID {
			return &cmds[i]
		}
	}
	t.Fatalf("no %s command for entity %s", typ, entityID)
	return nil
}
