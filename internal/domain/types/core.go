package types

import (
	"encoding/hex"
	"fmt"
)

// TokenID is the 128-bit random identifier assigned to a presence token.
type TokenID [16]byte

// String returns the lowercase hex form of the identifier.
func (id TokenID) String() string { return hex.EncodeToString(id[:]) }

// Slice returns the identifier as a []byte.
func (id TokenID) Slice() []byte { return id[:] }

// MarshalText encodes the identifier as hex, which also makes it usable as a JSON map key.
func (id TokenID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText decodes a hex identifier.
func (id *TokenID) UnmarshalText(b []byte) error { return decodeHex(id[:], b, "token id") }

// ParseTokenID parses the hex form produced by String.
func ParseTokenID(s string) (TokenID, error) {
	var id TokenID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// SessionID identifies one run of the session protocol.
type SessionID [32]byte

// String returns the lowercase hex form of the identifier.
func (id SessionID) String() string { return hex.EncodeToString(id[:]) }

// Slice returns the identifier as a []byte.
func (id SessionID) Slice() []byte { return id[:] }

// MarshalText encodes the identifier as hex.
func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText decodes a hex identifier.
func (id *SessionID) UnmarshalText(b []byte) error { return decodeHex(id[:], b, "session id") }

// MomentID is the public pointer to a moment. It carries no secret.
type MomentID [32]byte

// String returns the lowercase hex form of the identifier.
func (id MomentID) String() string { return hex.EncodeToString(id[:]) }

// Slice returns the identifier as a []byte.
func (id MomentID) Slice() []byte { return id[:] }

// MarshalText encodes the identifier as hex.
func (id MomentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText decodes a hex identifier.
func (id *MomentID) UnmarshalText(b []byte) error { return decodeHex(id[:], b, "moment id") }

// ParseMomentID parses the hex form produced by String.
func ParseMomentID(s string) (MomentID, error) {
	var id MomentID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// ArtifactType distinguishes captured media from text notes.
type ArtifactType string

const (
	ArtifactMedia ArtifactType = "media"
	ArtifactNote  ArtifactType = "note"
)

// Valid reports whether t is a known artifact type.
func (t ArtifactType) Valid() bool { return t == ArtifactMedia || t == ArtifactNote }

// PolicyMode selects how a moment can later be decrypted.
type PolicyMode string

const (
	// PolicyAll requires every original participant to be present again.
	PolicyAll PolicyMode = "n-of-n"
	// PolicyThreshold requires any K of the N participants.
	PolicyThreshold PolicyMode = "threshold"
)

func decodeHex(dst, src []byte, what string) error {
	if hex.DecodedLen(len(src)) != len(dst) {
		return fmt.Errorf("%s: want %d hex chars, got %d", what, hex.EncodedLen(len(dst)), len(src))
	}
	if _, err := hex.Decode(dst, src); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
