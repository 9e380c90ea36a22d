// Package main runs the development ledger used by momentkey during
// development and tests. It accepts privacy-checked moment commitments and
// hands back receipts.
//
// HTTP API
//
//	POST /commitments
//	    Validate a LedgerCommitment against the privacy policy and record it.
//	    201 with a Receipt; 422 when the policy rejects it or the body carries
//	    fields the commitment format does not know.
//
//	GET /commitments/{moment_id}
//	    Return every commitment recorded for the moment, oldest first.
//
//	GET /health
//	GET /metrics
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Responses are JSON. Non-2xx statuses carry a short error message.
//   - An access log records method, path, status, bytes and duration for each
//     request.
//   - The default listen address is :8090.
//
// The ledger never sees plaintext, keys or exact coordinates; it only stores
// hashes and coarse, redacted metadata.
package main
