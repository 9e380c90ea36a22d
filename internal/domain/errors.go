package domain

import "errors"

// Protocol error taxonomy. Callers match with errors.Is.
var (
	// ErrDiscoveryTimeout: fewer than two tokens answered within the discovery
	// window. Recoverable, the user retries.
	ErrDiscoveryTimeout = errors.New("discovery timeout: not enough presence tokens responded")

	// ErrTranscriptMismatch: a participant saw a different transcript or key
	// confirmation failed. Fatal to the session; never retried with the same
	// parameters.
	ErrTranscriptMismatch = errors.New("transcript mismatch")

	// ErrKeyAgreement: a public key was malformed or of low order.
	ErrKeyAgreement = errors.New("key agreement failed")

	// ErrAuthentication: AEAD open failed.
	ErrAuthentication = errors.New("authentication failed")

	// ErrDecryptionFailed is the only error the decryption API reports for
	// key, context or ciphertext problems.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInsufficientShares: fewer than K distinct shares were available.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInconsistentShares: shares do not originate from the same split.
	ErrInconsistentShares = errors.New("inconsistent shares")

	// ErrPolicyViolation: a record crossing to public storage carries data that
	// the privacy policy forbids. Always fatal, never auto-corrected.
	ErrPolicyViolation = errors.New("privacy policy violation")

	ErrInvalidCertificate = errors.New("invalid token certificate")
	ErrSessionClosed      = errors.New("session closed")
	ErrMomentNotOpen      = errors.New("moment is not open")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
)
