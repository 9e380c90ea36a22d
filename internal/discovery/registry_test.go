package discovery_test

import (
	"errors"
	"testing"
	"time"

	"momentkey/internal/crypto"
	"momentkey/internal/discovery"
	"momentkey/internal/domain"
)

type fixture struct {
	issuer domain.Ed25519Private
	cfg    discovery.Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return fixture{issuer: priv, cfg: discovery.Config{TTL: 10 * time.Second, AnnounceRate: 1, AnnounceBurst: 2, Issuer: pub}}
}

func (f fixture) announcement(t *testing.T, b byte) domain.Announcement {
	t.Helper()
	_, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	_, eph, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	id := domain.TokenID{b}
	return domain.Announcement{
		TokenID:      id,
		IdentityKey:  pub,
		Certificate:  crypto.IssueCertificate(f.issuer, id, pub),
		EphemeralKey: eph,
	}
}

func TestRegistry_ExpiresCandidates(t *testing.T) {
	f := newFixture(t)
	r := discovery.New(f.cfg, nil)
	now := time.Unix(1000, 0)
	r.SetClock(func() time.Time { return now })

	a := f.announcement(t, 1)
	if err := r.Observe(a); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if got := r.Candidates([]domain.TokenID{a.TokenID, {9}}); len(got) != 1 {
		t.Fatalf("want 1 candidate, got %d", len(got))
	}
	now = now.Add(11 * time.Second)
	if got := r.Candidates([]domain.TokenID{a.TokenID}); len(got) != 0 {
		t.Fatalf("expired candidate still returned")
	}
}

func TestRegistry_RejectsBadCertificate(t *testing.T) {
	f := newFixture(t)
	r := discovery.New(f.cfg, nil)
	a := f.announcement(t, 1)
	a.Certificate[0] ^= 1
	if err := r.Observe(a); !errors.Is(err, domain.ErrInvalidCertificate) {
		t.Fatalf("want ErrInvalidCertificate, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("bad announcement recorded")
	}
}

func TestRegistry_RateLimitsPerToken(t *testing.T) {
	f := newFixture(t)
	r := discovery.New(f.cfg, nil)
	now := time.Unix(1000, 0)
	r.SetClock(func() time.Time { return now })

	a := f.announcement(t, 1)
	b := f.announcement(t, 2)
	for i := 0; i < 2; i++ {
		if err := r.Observe(a); err != nil {
			t.Fatalf("Observe %d: %v", i, err)
		}
	}
	if err := r.Observe(a); !errors.Is(err, discovery.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if err := r.Observe(b); err != nil {
		t.Fatalf("other token limited: %v", err)
	}
	now = now.Add(time.Second)
	if err := r.Observe(a); err != nil {
		t.Fatalf("bucket did not refill: %v", err)
	}
}

func TestRegistry_Forget(t *testing.T) {
	f := newFixture(t)
	r := discovery.New(f.cfg, nil)
	a := f.announcement(t, 1)
	_ = r.Observe(a)
	r.Forget(a.TokenID)
	if r.Len() != 0 {
		t.Fatalf("Forget kept the record")
	}
}
