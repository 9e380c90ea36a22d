// Package groupdh implements the star-shaped group key agreement used to
// establish a moment session between one coordinator and N presence tokens.
//
// # Overview
//
// The coordinator holds a long-term X25519 identity and a fresh ephemeral
// key per session. Each token holds a long-term key inside a key handle and
// announces a fresh ephemeral key during discovery.
//
// For participant i:
//   - s_i = HKDF(DH(coord_lt, token_lt_i), "PairSecret", session_id ‖ token_id)
//   - k_i = HKDF(DH(coord_eph, token_eph_i) ‖ s_i, "Transport", TH)
//
// where TH is the transcript hash over the session id, both coordinator keys,
// the coarse timestamp, the proximity hash and every participant's
// (token_id, identity key, ephemeral key) in token id order.
//
// # Flows
//
//  1. Coordinator sends the Proposal to every token.
//  2. Each token recomputes TH, derives k_i and answers TH plus a confirm tag.
//  3. Coordinator checks every TH in constant time and every tag.
//  4. Barrier: GMS = HKDF(Hash("GMS-AGG", s_1..s_n), "GMS", session_id).
//  5. Coordinator wraps GMS under each k_i; tokens answer a key-confirm ack.
//
// Pair secrets depend only on long-term keys and the session id, so replaying
// a recorded session id with the same participants yields the same GMS.
// Ephemeral keys protect everything sent over the link and bind the transcript.
//
// # Errors
//
// ErrBadProposal reports a malformed proposal. Transcript and tag mismatches
// wrap domain.ErrTranscriptMismatch.
package groupdh
