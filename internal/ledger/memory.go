package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/metrics"
	"momentkey/internal/privacy"
)

// CommitmentHash is the digest a receipt acknowledges.
func CommitmentHash(c domain.LedgerCommitment) ([32]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Hash("LEDGER-COMMIT", b), nil
}

// Memory is an append-only in-process ledger.
type Memory struct {
	policy  privacy.Policy
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	byMoment map[domain.MomentID][]domain.LedgerCommitment
}

// NewMemory returns an empty ledger enforcing p.
func NewMemory(p privacy.Policy, m *metrics.Metrics) *Memory {
	return &Memory{
		policy:   p,
		metrics:  m,
		now:      time.Now,
		byMoment: make(map[domain.MomentID][]domain.LedgerCommitment),
	}
}

// Commit validates and records c.
func (l *Memory) Commit(ctx context.Context, c domain.LedgerCommitment) (rc domain.Receipt, err error) {
	defer func() { l.metrics.Commitment(err) }()
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}
	if err := l.policy.Check(c); err != nil {
		return domain.Receipt{}, err
	}
	h, err := CommitmentHash(c)
	if err != nil {
		return domain.Receipt{}, err
	}
	c.ContentHash = append([]byte(nil), c.ContentHash...)
	c.Participants = append([]domain.ParticipantRef(nil), c.Participants...)

	l.mu.Lock()
	l.byMoment[c.MomentID] = append(l.byMoment[c.MomentID], c)
	l.mu.Unlock()

	return domain.Receipt{
		ReceiptID:      uuid.NewString(),
		MomentID:       c.MomentID,
		CommitmentHash: h,
		AcceptedAt:     l.now().UTC(),
	}, nil
}

// Commitments returns the commitments recorded for id, oldest first.
func (l *Memory) Commitments(ctx context.Context, id domain.MomentID) ([]domain.LedgerCommitment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.LedgerCommitment{}, l.byMoment[id]...), nil
}

var _ domain.Ledger = (*Memory)(nil)
