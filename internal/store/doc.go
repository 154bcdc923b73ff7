// Package store is the durable layer under the sync engine: the three
// entity ledgers (batch, sale_order, refund), the append-only sync_command
// log, and the single-row sync_lock and sync_sequence coordination tables.
//
// SQLite is the store because the engine lives on the device: every ledger
// mutation must succeed with no network, survive a crash, and be readable
// by the UI while a drain pass runs. WAL mode gives concurrent reads; the
// connection pool is capped at one writer.
//
// ATOMICITY:
//
// A ledger mutation and its queued command are one fact. Every mutation
// method (StartBatch, CloseBatch, CreateOrder, CreateRefund) writes the
// entity row, claims a sequence number, and inserts the PENDING command in
// a single transaction. There is no crash window where an order exists but
// its CREATE_ORDER command does not, or vice versa.
//
// IDEMPOTENCY:
//
// Commands are deduplicated at enqueue by UNIQUE(cmd_type, idempotency_key),
// where the key is the entity's client-generated id. Duplicate enqueues are
// silent no-ops, so the backend sees at most one command per fact.
//
// ORDERING:
//
// NextEligible evaluates the cross-entity ordering precondition in SQL
// against the log itself: a dependent command is eligible only once its
// dependency's command is DONE. Sequence numbers give the total order;
// eligibility decides which prefix of that order may dispatch now.
package store
