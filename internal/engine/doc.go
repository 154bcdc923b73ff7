// Package engine drains the durable command log to the remote backend.
//
// The engine never sits between the register and its local data: ledger
// writes commit to SQLite and return immediately, leaving a PENDING command
// behind. Draining is a separate concern that runs opportunistically - on a
// timer, on a connectivity transition, or when a mutation kicks it - and is
// serialized by a single-writer lock so concurrent triggers coalesce instead
// of racing.
//
// A drain pass walks eligible commands in sequence order, batch lifecycle
// commands first, and dispatches each through the Gateway. Outcomes are
// classified three ways: success advances the entity's sync state and marks
// the command DONE; a transient failure reschedules it with exponential
// backoff; a business rejection fails it terminally, because retrying a
// request the backend understood and refused would never converge.
package engine
