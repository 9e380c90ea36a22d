// Package session is the coordinator side of the moment session protocol.
//
// A Coordinator drives one gathering through
//
//	Discovering → Proposed → Agreeing → Established → Closed
//
// with Failed reachable from every non-terminal state. Each step is a set of
// bounded request/response calls to the participating tokens; per-token
// rounds run in parallel and the group master secret is derived only after
// every round has completed.
//
// # Re-establishment
//
// Reestablish replays a recorded session id, timestamp, proximity hash and
// context tag through the same state machine. With the same participants
// present the replay derives the same MomentKey; anything else derives a
// different key and artifacts fail to open.
//
// # Secrets
//
// Ephemeral keys, pair secrets, transport keys, the GMS and the seed live in
// one material set that is wiped on every exit path. On success only the
// MomentKey survives, inside the returned Handle, until Close.
//
// Concurrency: a Coordinator may run independent sessions concurrently. The
// discovery registry is the only shared mutable state.
package session
