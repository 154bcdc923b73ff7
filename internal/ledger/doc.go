// Package ledger implements the engine-facing business mutations: start and
// close cash-drawer batches, place orders, issue refunds.
//
// Every mutation follows the same shape: validate against local state,
// persist the record, and enqueue the matching sync command - all in one
// store transaction, all without touching the network. Offline is the
// default successful path; connectivity failures are a concern of the drain
// pass, never of these calls.
//
// Ledger calls may run concurrently with an in-progress drain pass. They
// only append records and commands; they never mutate commands the drain is
// processing.
package ledger
