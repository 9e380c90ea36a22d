package privacy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"momentkey/internal/domain"
)

// Defaults used when Policy fields are zero.
const (
	DefaultTimestampGranularity = time.Hour
	DefaultMinRegionRadius      = 1000.0
)

// coordinateLike matches decimal coordinates or a lat,lon pair.
var coordinateLike = regexp.MustCompile(`-?\d+\.\d{3,}|-?\d+(\.\d+)?\s*[,;]\s*-?\d+(\.\d+)?`)

// Violation names the field that broke the policy.
type Violation struct {
	Field  string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%v: %s: %s", domain.ErrPolicyViolation, v.Field, v.Reason)
}

func (v *Violation) Unwrap() error { return domain.ErrPolicyViolation }

func violation(field, format string, args ...any) error {
	return &Violation{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Policy is the published-metadata precision floor.
type Policy struct {
	TimestampGranularity  time.Duration
	MinRegionRadiusMeters float64
}

func (p Policy) withDefaults() Policy {
	if p.TimestampGranularity <= 0 {
		p.TimestampGranularity = DefaultTimestampGranularity
	}
	if p.MinRegionRadiusMeters <= 0 {
		p.MinRegionRadiusMeters = DefaultMinRegionRadius
	}
	return p
}

// Check validates c. The first violation found is returned.
func (p Policy) Check(c domain.LedgerCommitment) error {
	p = p.withDefaults()

	if c.MomentID == (domain.MomentID{}) {
		return violation("moment_id", "missing")
	}
	if len(c.ContentHash) != 32 {
		return violation("content_hash", "want 32 bytes, got %d", len(c.ContentHash))
	}
	if c.ParticipantCount < 2 {
		return violation("participant_count", "at least 2 required, got %d", c.ParticipantCount)
	}

	ts := c.CoarseTimestamp
	if ts.IsZero() {
		return violation("coarse_timestamp", "missing")
	}
	if !ts.Truncate(p.TimestampGranularity).Equal(ts) {
		return violation("coarse_timestamp", "finer than %s", p.TimestampGranularity)
	}

	loc := c.Location
	if loc.Exact != nil {
		return violation("location.exact", "raw coordinates present")
	}
	if loc.Region != "" || loc.RadiusMeters != 0 {
		if strings.TrimSpace(loc.Region) == "" {
			return violation("location.region", "radius without region")
		}
		if coordinateLike.MatchString(loc.Region) {
			return violation("location.region", "looks like coordinates")
		}
		if loc.RadiusMeters < p.MinRegionRadiusMeters {
			return violation("location.radius_m", "%.0f below minimum %.0f", loc.RadiusMeters, p.MinRegionRadiusMeters)
		}
	}

	if n := len(c.Participants); n > 0 && n != c.ParticipantCount {
		return violation("participants", "%d refs for count %d", n, c.ParticipantCount)
	}
	for i, ref := range c.Participants {
		if ref.Pseudonym == "" {
			return violation(fmt.Sprintf("participants[%d].pseudonym", i), "missing")
		}
		if ref.DisplayName != "" && !ref.Disclosed {
			return violation(fmt.Sprintf("participants[%d].display_name", i), "not disclosed by participant")
		}
	}
	return nil
}
