package session

import (
	"log/slog"
	"sync"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

// Handle is an established session. It owns the only copy of the MomentKey.
type Handle struct {
	session        domain.Session
	momentID       domain.MomentID
	transcript     [32]byte
	policy         domain.Policy
	coordinatorKey domain.X25519Public
	identities     []domain.TokenIdentity
	log            *slog.Logger

	mu    sync.RWMutex
	state domain.SessionState
	key   []byte
}

func newHandle(
	s domain.Session,
	id domain.MomentID,
	th [32]byte,
	policy domain.Policy,
	coordinatorKey domain.X25519Public,
	identities []domain.TokenIdentity,
	key []byte,
	log *slog.Logger,
) *Handle {
	return &Handle{
		session:        s,
		momentID:       id,
		transcript:     th,
		policy:         policy,
		coordinatorKey: coordinatorKey,
		identities:     identities,
		log:            log,
		state:          domain.StateEstablished,
		key:            append([]byte(nil), key...),
	}
}

// NewKeyHandle wraps a MomentKey recovered outside the agreement protocol,
// for example by threshold reconstruction. The key is copied.
func NewKeyHandle(rec domain.MomentRecord, key []byte, log *slog.Logger) *Handle {
	return newHandle(rec.Session, rec.MomentID, [32]byte{}, rec.Policy, rec.CoordinatorKey, rec.Identities, key, log)
}

// State returns the current state.
func (h *Handle) State() domain.SessionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Session returns the immutable session parameters.
func (h *Handle) Session() domain.Session { return h.session }

// MomentID returns the public moment identifier.
func (h *Handle) MomentID() domain.MomentID { return h.momentID }

// Policy returns the decryption policy the session was established with.
func (h *Handle) Policy() domain.Policy { return h.policy }

// Record returns the public metadata needed to reopen the moment later.
func (h *Handle) Record() domain.MomentRecord {
	return domain.MomentRecord{
		MomentID:       h.momentID,
		Session:        h.session,
		Policy:         h.policy,
		CoordinatorKey: h.coordinatorKey,
		Identities:     append([]domain.TokenIdentity(nil), h.identities...),
	}
}

// SafetyWords renders the transcript for out-of-band comparison.
func (h *Handle) SafetyWords() (string, error) { return crypto.SafetyWords(h.transcript) }

// WithKey calls fn with the MomentKey. fn must not retain the slice.
func (h *Handle) WithKey(fn func(key []byte) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != domain.StateEstablished {
		return domain.ErrSessionClosed
	}
	return fn(h.key)
}

// Close purges the MomentKey. It is safe to call more than once.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == domain.StateClosed {
		return
	}
	memzero.Zero(h.key)
	h.key = nil
	h.state = domain.StateClosed
	if h.log != nil {
		h.log.Info("session state", "session_id", h.session.SessionID, "state", domain.StateClosed.String())
	}
}
