// Package pos defines the domain records the sync engine moves between the
// local store and the remote backend: cash-drawer batches, orders, refunds,
// and the queued commands derived from them.
//
// Every record carries a client-generated identifier assigned at creation
// time. That identifier doubles as the idempotency key for the record's
// remote command, so a retried dispatch can never apply twice on the server.
//
// Lifecycle state (is the drawer open?) and sync state (has the backend seen
// it?) are deliberately separate enumerations. A batch can be CLOSED locally
// while its open has never reached the server.
//
// Types in this package are plain values with no behavior beyond validation
// and the refund amount computation, which is a pure function so it can be
// exercised without a store or a network.
package pos
