// Package moment orchestrates the life of a moment on the coordinator host.
//
// Create establishes a session and persists the public MomentRecord.
// EncryptArtifact and DecryptArtifact bind media and notes to the moment.
// Reopen recovers the MomentKey later, either by replaying the session with
// every original participant (N-of-N) or by collecting at least K shares over
// sealed, token-authenticated transport (K-of-N). Commit hands the ledger a
// redacted, policy-checked commitment.
//
// Decryption failures are reported as a bare domain.ErrDecryptionFailed so
// a wrong participant set, tampering and context mismatch look the same.
// Plaintext is never written to disk.
package moment
