package moment

import (
	"crypto/subtle"
	"encoding/json"
	"time"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/protocol/groupdh"
)

// DefaultGranularity rounds moment timestamps to the nearest minute.
const DefaultGranularity = time.Minute

// CoarseTime rounds t to the nearest multiple of g, in UTC.
func CoarseTime(t time.Time, g time.Duration) time.Time {
	if g <= 0 {
		g = DefaultGranularity
	}
	return t.UTC().Round(g)
}

// ProximityHash commits to a local ranging sample.
func ProximityHash(sample []byte) [32]byte {
	return crypto.Hash("PROXIMITY", sample)
}

// ID computes the MomentID from public session fields only.
func ID(sid domain.SessionID, t time.Time, ph [32]byte, ids []domain.TokenID) domain.MomentID {
	parts := [][]byte{sid.Slice(), groupdh.TimeBytes(t), ph[:]}
	for _, id := range groupdh.SortTokenIDs(ids) {
		parts = append(parts, id.Slice())
	}
	return domain.MomentID(crypto.Hash("MOMENT", parts...))
}

// SessionMomentID is ID over a Session.
func SessionMomentID(s domain.Session) domain.MomentID {
	return ID(s.SessionID, s.CoarseTimestamp, s.ProximityHash, s.Participants)
}

// Seed derives the MomentSeed from the group master secret.
func Seed(gms []byte, id domain.MomentID) []byte {
	return crypto.Derive(gms, "MomentSeed", id.Slice())
}

// Key derives the MomentKey from the seed and the session context.
func Key(seed []byte, s domain.Session) []byte {
	extra := crypto.Concat(
		s.SessionID.Slice(),
		groupdh.TimeBytes(s.CoarseTimestamp),
		s.ProximityHash[:],
		[]byte(s.ContextTag),
	)
	return crypto.Derive(seed, "MomentKey", extra)
}

type artifactAD struct {
	Version  int                 `json:"v"`
	MomentID domain.MomentID     `json:"moment_id"`
	Type     domain.ArtifactType `json:"type"`
	Sequence uint64              `json:"seq"`
}

// AssociatedData is the cleartext, authenticated header of an artifact.
func AssociatedData(id domain.MomentID, typ domain.ArtifactType, seq uint64) []byte {
	b, _ := json.Marshal(artifactAD{Version: 1, MomentID: id, Type: typ, Sequence: seq})
	return b
}

// SealArtifact encrypts plaintext under key for the given slot.
func SealArtifact(key []byte, id domain.MomentID, artifactID string, typ domain.ArtifactType, seq uint64, plaintext []byte) (domain.EncryptedArtifact, error) {
	ad := AssociatedData(id, typ, seq)
	ct, nonce, err := crypto.Seal(key, plaintext, ad)
	if err != nil {
		return domain.EncryptedArtifact{}, err
	}
	return domain.EncryptedArtifact{
		MomentID:       id,
		ArtifactID:     artifactID,
		Type:           typ,
		Sequence:       seq,
		Ciphertext:     ct,
		Nonce:          nonce,
		AssociatedData: ad,
	}, nil
}

// OpenArtifact decrypts a. The stored associated data must match the
// artifact's own header fields; any mismatch or AEAD failure returns
// domain.ErrAuthentication.
func OpenArtifact(key []byte, a domain.EncryptedArtifact) ([]byte, error) {
	want := AssociatedData(a.MomentID, a.Type, a.Sequence)
	if subtle.ConstantTimeCompare(want, a.AssociatedData) != 1 {
		return nil, domain.ErrAuthentication
	}
	return crypto.Open(key, a.Ciphertext, a.Nonce, a.AssociatedData)
}
