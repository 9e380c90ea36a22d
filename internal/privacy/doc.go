// Package privacy enforces the boundary between local moment data and
// anything published to a ledger.
//
// Redactor turns a raw Observation into a LedgerCommitment: coarse
// timestamp, grid region bucket, pseudonyms for participants who did not opt
// into disclosure. Policy.Check validates a commitment and fails closed with
// a *Violation wrapping domain.ErrPolicyViolation; it never repairs a record.
package privacy
