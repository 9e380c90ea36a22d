package types

import "time"

// GeoPoint is an exact coordinate. It must never reach the ledger.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is the place attached to a commitment. Only Region and
// RadiusMeters are allowed past the privacy boundary.
type Location struct {
	Region       string    `json:"region"`
	RadiusMeters float64   `json:"radius_m"`
	Exact        *GeoPoint `json:"exact,omitempty"`
}

// ParticipantRef names a participant in a commitment. DisplayName is only
// allowed when Disclosed is set.
type ParticipantRef struct {
	Pseudonym   string `json:"pseudonym"`
	DisplayName string `json:"display_name,omitempty"`
	Disclosed   bool   `json:"disclosed,omitempty"`
}

// LedgerCommitment is the only record handed to the ledger.
type LedgerCommitment struct {
	MomentID         MomentID         `json:"moment_id"`
	ContentHash      []byte           `json:"content_hash"`
	ParticipantCount int              `json:"participant_count"`
	HighTrust        bool             `json:"high_trust"`
	CoarseTimestamp  time.Time        `json:"coarse_timestamp"`
	Location         Location         `json:"location"`
	Participants     []ParticipantRef `json:"participants,omitempty"`
}

// Receipt acknowledges an accepted commitment.
type Receipt struct {
	ReceiptID      string    `json:"receipt_id"`
	MomentID       MomentID  `json:"moment_id"`
	CommitmentHash [32]byte  `json:"commitment_hash"`
	AcceptedAt     time.Time `json:"accepted_at"`
}

// Observation is the raw, unredacted context of a moment as captured on the
// coordinator. It never leaves the process; the redactor turns it into a
// LedgerCommitment.
type Observation struct {
	At          time.Time          `json:"-"`
	Point       *GeoPoint          `json:"-"`
	HighTrust   bool               `json:"-"`
	Disclosures map[TokenID]string `json:"-"` // opted-in display names
}
