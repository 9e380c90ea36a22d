package groupdh

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"time"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

// MinParticipants is the smallest group a session may have.
const MinParticipants = 2

// ErrBadProposal is returned for proposals with too few, unsorted or
// duplicate participants.
var ErrBadProposal = errors.New("malformed proposal")

// SortTokenIDs returns a sorted copy of ids.
func SortTokenIDs(ids []domain.TokenID) []domain.TokenID {
	out := append([]domain.TokenID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// TimeBytes is the canonical encoding of a coarse timestamp.
func TimeBytes(t time.Time) []byte { return crypto.Uint64(uint64(t.Unix())) }

// NewSessionID hashes a random nonce, the timestamp and the sorted
// participant ids.
func NewSessionID(nonce []byte, t time.Time, ids []domain.TokenID) domain.SessionID {
	parts := [][]byte{nonce, TimeBytes(t)}
	for _, id := range SortTokenIDs(ids) {
		parts = append(parts, id.Slice())
	}
	return domain.SessionID(crypto.Hash("SESSION", parts...))
}

// ValidateProposal checks participant count and strict token id order.
func ValidateProposal(p domain.Proposal) error {
	if len(p.Participants) < MinParticipants {
		return fmt.Errorf("%w: %d participants", ErrBadProposal, len(p.Participants))
	}
	for i := 1; i < len(p.Participants); i++ {
		if bytes.Compare(p.Participants[i-1].TokenID[:], p.Participants[i].TokenID[:]) >= 0 {
			return fmt.Errorf("%w: participants not strictly ordered", ErrBadProposal)
		}
	}
	return nil
}

// Transcript hashes every public input of the agreement.
func Transcript(p domain.Proposal) [32]byte {
	parts := [][]byte{
		p.SessionID.Slice(),
		p.CoordinatorKey.Slice(),
		p.CoordinatorEphemeral.Slice(),
		TimeBytes(p.CoarseTimestamp),
		p.ProximityHash[:],
	}
	for _, pk := range p.Participants {
		parts = append(parts, pk.TokenID.Slice(), pk.IdentityKey.Slice(), pk.EphemeralKey.Slice())
	}
	return crypto.Hash("TRANSCRIPT", parts...)
}

// SameTranscript compares two transcript hashes in constant time.
func SameTranscript(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// PairSecret derives s_i from the long-term DH output. dh is wiped.
func PairSecret(dh []byte, sid domain.SessionID, id domain.TokenID) []byte {
	defer memzero.Zero(dh)
	return crypto.Derive(dh, "PairSecret", crypto.Concat(sid.Slice(), id.Slice()))
}

// TransportKey derives k_i from the ephemeral DH output and s_i. ephDH is wiped.
func TransportKey(ephDH, pair []byte, th [32]byte) []byte {
	ikm := crypto.Concat(ephDH, pair)
	defer memzero.ZeroAll(ikm, ephDH)
	return crypto.Derive(ikm, "Transport", th[:])
}

// Confirm is the token's proof that it derived k_i over th.
func Confirm(k []byte, th [32]byte) []byte {
	return crypto.MAC(k, "token-confirm", th[:])
}

// CheckResponse verifies a token's agreement response against the
// coordinator's transcript and transport key.
func CheckResponse(k []byte, th [32]byte, resp domain.AgreeResponse) error {
	if !SameTranscript(th, resp.Transcript) {
		return fmt.Errorf("%w: token %s", domain.ErrTranscriptMismatch, resp.TokenID)
	}
	if !crypto.VerifyMAC(k, resp.Confirm, "token-confirm", th[:]) {
		return fmt.Errorf("%w: bad confirm from %s", domain.ErrTranscriptMismatch, resp.TokenID)
	}
	return nil
}

// AggregateGMS hashes the pair secrets in participant order and derives the
// group master secret. It needs every s_i.
func AggregateGMS(sid domain.SessionID, secrets [][]byte) []byte {
	agg := crypto.Hash("GMS-AGG", secrets...)
	defer memzero.Zero(agg[:])
	return crypto.Derive(agg[:], "GMS", sid.Slice())
}

// FinalizeAD binds wrapped finalize payloads to the transcript and moment.
func FinalizeAD(th [32]byte, id domain.MomentID) []byte {
	return crypto.Concat(th[:], id.Slice())
}

// KeyConfirm is the token's ack proving it unwrapped the same GMS.
func KeyConfirm(gms []byte, sid domain.SessionID, th [32]byte) []byte {
	k := crypto.Derive(gms, "KeyConfirm", sid.Slice())
	defer memzero.Zero(k)
	return crypto.MAC(k, "key-confirm", th[:])
}

// CheckKeyConfirm verifies an ack in constant time.
func CheckKeyConfirm(gms []byte, sid domain.SessionID, th [32]byte, ack []byte) bool {
	return subtle.ConstantTimeCompare(KeyConfirm(gms, sid, th), ack) == 1
}
