package types

import "time"

// SessionState is a step of the moment session protocol.
type SessionState int

const (
	StateDiscovering SessionState = iota
	StateProposed
	StateAgreeing
	StateEstablished
	StateClosed
	StateFailed
)

// String returns the lowercase state name.
func (s SessionState) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateProposed:
		return "proposed"
	case StateAgreeing:
		return "agreeing"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool { return s == StateClosed || s == StateFailed }

// Session describes one real-world gathering. Immutable once proposed.
type Session struct {
	SessionID       SessionID `json:"session_id"`
	Participants    []TokenID `json:"participants"` // sorted
	CoarseTimestamp time.Time `json:"coarse_timestamp"`
	ProximityHash   [32]byte  `json:"proximity_hash"`
	ContextTag      string    `json:"context_tag"`
}

// Announcement is what a token broadcasts while the coordinator discovers.
type Announcement struct {
	TokenID      TokenID      `json:"token_id"`
	IdentityKey  X25519Public `json:"identity_key"`
	Certificate  []byte       `json:"certificate"`
	EphemeralKey X25519Public `json:"ephemeral_key"`
}

// ParticipantKeys is one entry of the proposal's ordered participant list.
type ParticipantKeys struct {
	TokenID      TokenID      `json:"token_id"`
	IdentityKey  X25519Public `json:"identity_key"`
	EphemeralKey X25519Public `json:"ephemeral_key"`
}

// Proposal is sent by the coordinator to every participant in Agreeing.
type Proposal struct {
	SessionID            SessionID         `json:"session_id"`
	CoordinatorKey       X25519Public      `json:"coordinator_key"`
	CoordinatorEphemeral X25519Public      `json:"coordinator_ephemeral"`
	CoarseTimestamp      time.Time         `json:"coarse_timestamp"`
	ProximityHash        [32]byte          `json:"proximity_hash"`
	Participants         []ParticipantKeys `json:"participants"`
}

// AgreeResponse carries the token's view of the transcript and a key
// confirmation tag over it.
type AgreeResponse struct {
	TokenID    TokenID  `json:"token_id"`
	Transcript [32]byte `json:"transcript"`
	Confirm    []byte   `json:"confirm"`
}

// Sealed is an AEAD ciphertext with its nonce.
type Sealed struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Finalize delivers the group secret, and in threshold mode the token's share,
// wrapped under the per-pair transport key.
type Finalize struct {
	SessionID    SessionID `json:"session_id"`
	MomentID     MomentID  `json:"moment_id"`
	WrappedGMS   Sealed    `json:"wrapped_gms"`
	WrappedShare *Sealed   `json:"wrapped_share,omitempty"`
}

// FinalizeAck proves the token unwrapped the same group secret.
type FinalizeAck struct {
	TokenID TokenID `json:"token_id"`
	Ack     []byte  `json:"ack"`
}
