// Package moment derives the public MomentID and the secret MomentSeed and
// MomentKey of an established session, and binds artifacts to a moment.
//
// Both decryption policies funnel through one step: the seed is derived from
// the group master secret, and the key is always derived from the seed. A
// threshold reconstruction of the seed therefore yields the same key as an
// N-of-N replay.
//
// Concurrency: every function is pure.
package moment
