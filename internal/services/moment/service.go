package moment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/logging"
	"momentkey/internal/metrics"
	"momentkey/internal/privacy"
	"momentkey/internal/protocol/moment"
	"momentkey/internal/services/session"
)

// DefaultReconstructionTimeout bounds share collection.
const DefaultReconstructionTimeout = 10 * time.Second

// Config tunes the service.
type Config struct {
	ReconstructionTimeout time.Duration
}

// CreateRequest describes a new moment.
type CreateRequest struct {
	Links      []domain.TokenLink
	ContextTag string
	Ranging    domain.RangingSource
	// Threshold is K for a K-of-N policy; zero means every participant is
	// needed to reopen the moment.
	Threshold int
}

// Service manages moments on the coordinator.
type Service struct {
	cfg       Config
	coord     *session.Coordinator
	moments   domain.MomentStore
	artifacts domain.ArtifactStore
	ledger    domain.Ledger
	redactor  privacy.Redactor
	metrics   *metrics.Metrics
	log       *slog.Logger

	mu   sync.Mutex
	open map[domain.MomentID]*session.Handle
}

// New wires a moment service.
func New(
	cfg Config,
	coord *session.Coordinator,
	moments domain.MomentStore,
	artifacts domain.ArtifactStore,
	ledger domain.Ledger,
	redactor privacy.Redactor,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	if cfg.ReconstructionTimeout <= 0 {
		cfg.ReconstructionTimeout = DefaultReconstructionTimeout
	}
	return &Service{
		cfg:       cfg,
		coord:     coord,
		moments:   moments,
		artifacts: artifacts,
		ledger:    ledger,
		redactor:  redactor,
		metrics:   m,
		log:       logging.OrDiscard(log),
		open:      make(map[domain.MomentID]*session.Handle),
	}
}

// Create establishes a session and records the moment. The moment stays open
// for encryption until Close.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.MomentRecord, error) {
	h, err := s.coord.StartSession(ctx, session.Request{
		Links:      req.Links,
		ContextTag: req.ContextTag,
		Ranging:    req.Ranging,
		Threshold:  req.Threshold,
	})
	if err != nil {
		return domain.MomentRecord{}, err
	}
	rec := h.Record()
	if err := s.moments.SaveMoment(rec); err != nil {
		h.Close()
		return domain.MomentRecord{}, err
	}
	s.keep(h)
	s.log.Info("moment created", "moment_id", rec.MomentID, "policy", string(rec.Policy.Mode),
		"participants", len(rec.Session.Participants))
	return rec, nil
}

// EncryptArtifact seals plaintext under an open moment and appends it to
// the artifact store. Sequence numbers increase per moment.
func (s *Service) EncryptArtifact(id domain.MomentID, typ domain.ArtifactType, plaintext []byte) (a domain.EncryptedArtifact, err error) {
	defer func() { s.metrics.Artifact("encrypt", err) }()
	if !typ.Valid() {
		return domain.EncryptedArtifact{}, fmt.Errorf("unknown artifact type %q", typ)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.open[id]
	if !ok {
		return domain.EncryptedArtifact{}, fmt.Errorf("moment %s: %w", id, domain.ErrMomentNotOpen)
	}
	existing, err := s.artifacts.ListArtifacts(id)
	if err != nil {
		return domain.EncryptedArtifact{}, err
	}
	var seq uint64 = 1
	for _, e := range existing {
		if e.Sequence >= seq {
			seq = e.Sequence + 1
		}
	}
	err = h.WithKey(func(key []byte) error {
		var err error
		a, err = moment.SealArtifact(key, id, uuid.NewString(), typ, seq, plaintext)
		return err
	})
	if err != nil {
		return domain.EncryptedArtifact{}, err
	}
	if err := s.artifacts.AppendArtifact(a); err != nil {
		return domain.EncryptedArtifact{}, err
	}
	return a, nil
}

// DecryptArtifact opens a for moment id. A closed moment is reopened for the
// call with links and closed again afterwards. A threshold moment that cannot
// reach quorum reports domain.ErrInsufficientShares. Every other failure,
// including an N-of-N replay with the wrong tokens, is a bare
// domain.ErrDecryptionFailed. Cancellation is returned as is.
func (s *Service) DecryptArtifact(ctx context.Context, id domain.MomentID, a domain.EncryptedArtifact, links []domain.TokenLink) (pt []byte, err error) {
	defer func() { s.metrics.Artifact("decrypt", err) }()
	if a.MomentID != id {
		return nil, domain.ErrDecryptionFailed
	}
	s.mu.Lock()
	h, ok := s.open[id]
	s.mu.Unlock()
	if !ok {
		rec, err := s.record(id)
		if err != nil {
			return nil, err
		}
		h, err = s.reopen(ctx, rec, links)
		if err != nil {
			return nil, decryptError(ctx, rec.Policy, err)
		}
		defer h.Close()
	}
	err = h.WithKey(func(key []byte) error {
		var err error
		pt, err = moment.OpenArtifact(key, a)
		return err
	})
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return pt, nil
}

func decryptError(ctx context.Context, p domain.Policy, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	if p.Mode == domain.PolicyThreshold && errors.Is(err, domain.ErrInsufficientShares) {
		return domain.ErrInsufficientShares
	}
	return domain.ErrDecryptionFailed
}

// Reopen recovers the MomentKey and keeps the moment open.
func (s *Service) Reopen(ctx context.Context, id domain.MomentID, links []domain.TokenLink) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	h, err := s.reopen(ctx, rec, links)
	if err != nil {
		return err
	}
	s.keep(h)
	return nil
}

// Close purges the MomentKey of an open moment. Closing a closed moment is
// a no-op.
func (s *Service) Close(id domain.MomentID) {
	s.mu.Lock()
	h, ok := s.open[id]
	delete(s.open, id)
	s.mu.Unlock()
	if ok {
		h.Close()
	}
}

// CloseAll purges every open moment.
func (s *Service) CloseAll() {
	s.mu.Lock()
	open := s.open
	s.open = make(map[domain.MomentID]*session.Handle)
	s.mu.Unlock()
	for _, h := range open {
		h.Close()
	}
}

// IsOpen reports whether the moment's key is in memory.
func (s *Service) IsOpen(id domain.MomentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[id]
	return ok
}

// SafetyWords returns the words of an open moment's agreement transcript.
func (s *Service) SafetyWords(id domain.MomentID) (string, error) {
	s.mu.Lock()
	h, ok := s.open[id]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("moment %s: %w", id, domain.ErrMomentNotOpen)
	}
	return h.SafetyWords()
}

// Artifacts lists a moment's encrypted artifacts.
func (s *Service) Artifacts(id domain.MomentID) ([]domain.EncryptedArtifact, error) {
	return s.artifacts.ListArtifacts(id)
}

// Moments lists every recorded moment.
func (s *Service) Moments() ([]domain.MomentRecord, error) { return s.moments.ListMoments() }

// Commit publishes the hash of note with redacted context to the ledger.
func (s *Service) Commit(ctx context.Context, id domain.MomentID, note []byte, obs domain.Observation) (domain.Receipt, error) {
	rec, err := s.record(id)
	if err != nil {
		return domain.Receipt{}, err
	}
	if s.ledger == nil {
		return domain.Receipt{}, errors.New("no ledger configured")
	}
	h := ContentHash(note)
	c, err := s.redactor.Redact(id, h[:], rec.Identities, obs)
	if err != nil {
		return domain.Receipt{}, err
	}
	rc, err := s.ledger.Commit(ctx, c)
	if err != nil {
		return domain.Receipt{}, err
	}
	s.log.Info("moment committed", "moment_id", id, "receipt", rc.ReceiptID)
	return rc, nil
}

// ContentHash is the commitment to a note's plaintext.
func ContentHash(note []byte) [32]byte { return crypto.Hash("CONTENT", note) }

func (s *Service) keep(h *session.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.open[h.MomentID()]; ok {
		old.Close()
	}
	s.open[h.MomentID()] = h
}

func (s *Service) record(id domain.MomentID) (domain.MomentRecord, error) {
	rec, ok, err := s.moments.LoadMoment(id)
	if err != nil {
		return domain.MomentRecord{}, err
	}
	if !ok {
		return domain.MomentRecord{}, fmt.Errorf("moment %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

func (s *Service) reopen(ctx context.Context, rec domain.MomentRecord, links []domain.TokenLink) (*session.Handle, error) {
	switch rec.Policy.Mode {
	case domain.PolicyThreshold:
		return s.reconstruct(ctx, rec, links)
	case domain.PolicyAll:
		return s.coord.Reestablish(ctx, session.Replay{Record: rec, Links: links})
	default:
		return nil, fmt.Errorf("moment %s: unknown policy %q", rec.MomentID, rec.Policy.Mode)
	}
}
