// Package ledger provides implementations of domain.Ledger.
//
// The ledger is an external collaborator that accepts commitments only: a
// content hash plus coarse, redacted metadata. Every implementation here
// validates with privacy.Policy before anything is stored or sent, so a
// record carrying raw fields fails closed with domain.ErrPolicyViolation.
//
//   - Memory: in-process, append-only per moment.
//   - HTTPClient: JSON over HTTP to a ledger server, context-aware.
//   - NewHandler: the gorilla/mux server side over any domain.Ledger, with
//     /metrics for prometheus.
//
// Non-2xx statuses are returned as errors with the method, path and status
// text. A 422 maps back to domain.ErrPolicyViolation.
package ledger
