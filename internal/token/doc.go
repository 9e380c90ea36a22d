// Package token implements the presence token side of the protocol.
//
// A Device owns one long-term X25519 key behind a crypto.KeyHandle and never
// exposes it. It announces fresh ephemeral keys, answers agreement rounds,
// stores its Shamir share encrypted under a handle-derived key and releases it
// sealed to a requester's ephemeral key.
//
// Concurrency: Device is safe for concurrent use. It keeps at most one
// announced ephemeral key and one pending state per session; both are wiped
// on finalize, abort or replacement.
package token
