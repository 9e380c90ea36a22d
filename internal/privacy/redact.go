package privacy

import (
	"fmt"
	"math"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
)

const metersPerDegree = 111_320.0

// Redactor builds policy-conformant commitments from raw observations.
type Redactor struct {
	Policy Policy
}

// Redact coarsens obs into a commitment for moment id and validates it.
func (r Redactor) Redact(
	id domain.MomentID,
	contentHash []byte,
	participants []domain.TokenIdentity,
	obs domain.Observation,
) (domain.LedgerCommitment, error) {
	p := r.Policy.withDefaults()
	c := domain.LedgerCommitment{
		MomentID:         id,
		ContentHash:      append([]byte(nil), contentHash...),
		ParticipantCount: len(participants),
		HighTrust:        obs.HighTrust,
		CoarseTimestamp:  obs.At.UTC().Truncate(p.TimestampGranularity),
	}
	if obs.Point != nil {
		c.Location = Bucket(*obs.Point, p.MinRegionRadiusMeters)
	}
	for _, t := range participants {
		ref := domain.ParticipantRef{Pseudonym: crypto.Pseudonym(t.TokenID, t.PublicKey)}
		if name, ok := obs.Disclosures[t.TokenID]; ok && name != "" {
			ref.DisplayName, ref.Disclosed = name, true
		}
		c.Participants = append(c.Participants, ref)
	}
	if err := p.Check(c); err != nil {
		return domain.LedgerCommitment{}, err
	}
	return c, nil
}

// Bucket maps a point to a square grid cell whose edge is twice minRadius.
// The region name carries only cell indices and the reported radius is half
// the edge.
func Bucket(pt domain.GeoPoint, minRadius float64) domain.Location {
	edge := 2 * math.Ceil(minRadius)
	latIdx := int64(math.Floor(pt.Latitude * metersPerDegree / edge))
	centerLat := (float64(latIdx) + 0.5) * edge / metersPerDegree
	scale := math.Cos(centerLat * math.Pi / 180)
	if scale < 0.01 {
		scale = 0.01
	}
	lonIdx := int64(math.Floor(pt.Longitude * metersPerDegree * scale / edge))
	return domain.Location{
		Region:       fmt.Sprintf("region/%dm/%d/%d", int64(edge), latIdx, lonIdx),
		RadiusMeters: edge / 2,
	}
}
