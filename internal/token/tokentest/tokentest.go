// Package tokentest provides in-process presence tokens for tests.
package tokentest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/token"
)

// MemoryShares is an in-memory domain.ShareStore.
type MemoryShares struct {
	mu sync.Mutex
	m  map[domain.MomentID]domain.ShareRecord
}

// NewMemoryShares returns an empty store.
func NewMemoryShares() *MemoryShares {
	return &MemoryShares{m: make(map[domain.MomentID]domain.ShareRecord)}
}

func (s *MemoryShares) PutShare(rec domain.ShareRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[rec.MomentID]; ok {
		return fmt.Errorf("share %s: %w", rec.MomentID, domain.ErrAlreadyExists)
	}
	s.m[rec.MomentID] = rec
	return nil
}

func (s *MemoryShares) GetShare(id domain.MomentID) (domain.ShareRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[id]
	return rec, ok, nil
}

// Len reports the number of stored shares.
func (s *MemoryShares) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Ranging returns a fixed sample.
type Ranging []byte

func (r Ranging) Sample(context.Context) ([]byte, error) { return r, nil }

// Fleet is a set of provisioned devices sharing one issuer.
type Fleet struct {
	Issuer  domain.IssuerKey
	Devices []*token.Device
	Shares  []*MemoryShares
}

// NewFleet provisions n devices.
func NewFleet(t testing.TB, n int) *Fleet {
	t.Helper()
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	f := &Fleet{Issuer: domain.IssuerKey{Public: edPub, Private: edPriv}}
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("GenerateX25519: %v", err)
		}
		var id domain.TokenID
		id[0] = byte(i + 1)
		id[15] = 0x5a
		secret := domain.TokenSecret{
			Identity: domain.TokenIdentity{
				TokenID:     id,
				PublicKey:   pub,
				Certificate: crypto.IssueCertificate(edPriv, id, pub),
			},
			Private: priv,
		}
		shares := NewMemoryShares()
		d, err := token.New(&secret, shares, nil)
		if err != nil {
			t.Fatalf("token.New: %v", err)
		}
		f.Devices = append(f.Devices, d)
		f.Shares = append(f.Shares, shares)
	}
	return f
}

// Links returns the devices at idx as links; no idx means all.
func (f *Fleet) Links(idx ...int) []domain.TokenLink {
	if len(idx) == 0 {
		for i := range f.Devices {
			idx = append(idx, i)
		}
	}
	out := make([]domain.TokenLink, 0, len(idx))
	for _, i := range idx {
		out = append(out, f.Devices[i])
	}
	return out
}

// Pending sums pending sessions over all devices.
func (f *Fleet) Pending() int {
	n := 0
	for _, d := range f.Devices {
		n += d.PendingSessions()
	}
	return n
}

// Silent is a link whose token never answers before the deadline.
type Silent struct {
	domain.TokenLink
}

func (s Silent) Announce(ctx context.Context) (domain.Announcement, error) {
	<-ctx.Done()
	return domain.Announcement{}, ctx.Err()
}

func (s Silent) ReleaseShare(ctx context.Context, _ domain.ShareRequest) (domain.SealedShare, error) {
	<-ctx.Done()
	return domain.SealedShare{}, ctx.Err()
}
