// Package discovery keeps the coordinator's short-lived view of nearby
// presence tokens. Records expire after a bounded lifetime; nothing here is
// persisted.
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/logging"
)

// ErrRateLimited is returned when a token announces faster than allowed.
var ErrRateLimited = errors.New("announcement rate limited")

// Defaults used when Config fields are zero.
const (
	DefaultTTL   = 30 * time.Second
	DefaultRate  = 2.0
	DefaultBurst = 4
)

// Config bounds the registry.
type Config struct {
	TTL           time.Duration
	AnnounceRate  float64 // per token, per second
	AnnounceBurst int
	// Issuer certifies token identities. Announcements that fail
	// verification are dropped.
	Issuer domain.Ed25519Public
}

type record struct {
	ann  domain.Announcement
	seen time.Time
}

// Registry holds discovered candidates.
type Registry struct {
	cfg     Config
	now     func() time.Time
	log     *slog.Logger
	mu      sync.Mutex
	records map[domain.TokenID]record
	limiter *announceLimiter
}

// New returns an empty registry.
func New(cfg Config, log *slog.Logger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.AnnounceRate == 0 {
		cfg.AnnounceRate = DefaultRate
	}
	if cfg.AnnounceBurst == 0 {
		cfg.AnnounceBurst = DefaultBurst
	}
	return &Registry{
		cfg:     cfg,
		now:     time.Now,
		log:     logging.OrDiscard(log),
		records: make(map[domain.TokenID]record),
		limiter: newAnnounceLimiter(cfg.AnnounceRate, cfg.AnnounceBurst, 2*cfg.TTL),
	}
}

// SetClock replaces the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Observe records an announcement, replacing any earlier one from the same
// token.
func (r *Registry) Observe(a domain.Announcement) error {
	if !crypto.VerifyCertificate(r.cfg.Issuer, a.TokenID, a.IdentityKey, a.Certificate) {
		r.log.Warn("announcement dropped", "token_id", a.TokenID, "reason", "certificate")
		return domain.ErrInvalidCertificate
	}
	if a.EphemeralKey.IsZero() {
		return fmt.Errorf("%w: empty ephemeral key", domain.ErrKeyAgreement)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if !r.limiter.allow(a.TokenID, now) {
		return ErrRateLimited
	}
	r.records[a.TokenID] = record{ann: a, seen: now}
	return nil
}

// Candidates returns the live announcements for ids, in the order given.
// Unknown and expired ids are skipped.
func (r *Registry) Candidates(ids []domain.TokenID) []domain.Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	out := make([]domain.Announcement, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok {
			out = append(out, rec.ann)
		}
	}
	return out
}

// Forget removes a candidate once its ephemeral key is bound to a session.
func (r *Registry) Forget(id domain.TokenID) {
	r.mu.Lock()
	delete(r.records, id)
	r.mu.Unlock()
}

// Len reports the number of live candidates.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.records)
}

func (r *Registry) sweepLocked() {
	cutoff := r.now().Add(-r.cfg.TTL)
	for id, rec := range r.records {
		if rec.seen.Before(cutoff) {
			delete(r.records, id)
		}
	}
}
