package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/logging"
	"momentkey/internal/protocol/groupdh"
	"momentkey/internal/protocol/moment"
	"momentkey/internal/util/memzero"
)

var (
	// ErrNotAnnounced is returned when a proposal arrives before Announce.
	ErrNotAnnounced = errors.New("token has no announced ephemeral key")
	// ErrNotParticipant is returned for proposals that do not list this token.
	ErrNotParticipant = errors.New("token not in proposal")
)

type ephemeral struct {
	priv domain.X25519Private
	pub  domain.X25519Public
}

func (e *ephemeral) wipe() { memzero.Zero32((*[32]byte)(&e.priv)) }

type pending struct {
	proposal   domain.Proposal
	transcript [32]byte
	transport  []byte
}

func (p *pending) wipe() { memzero.Zero(p.transport) }

// Device is a presence token.
type Device struct {
	identity domain.TokenIdentity
	handle   crypto.KeyHandle
	shares   domain.ShareStore
	log      *slog.Logger

	mu        sync.Mutex
	announced *ephemeral
	sessions  map[domain.SessionID]*pending
}

// New builds a device from its provisioned secret. The private key moves into
// a key handle and secret.Private is wiped.
func New(secret *domain.TokenSecret, shares domain.ShareStore, log *slog.Logger) (*Device, error) {
	h, err := crypto.NewSoftwareKeyHandle(secret.Private)
	memzero.Zero32((*[32]byte)(&secret.Private))
	if err != nil {
		return nil, err
	}
	if h.Public() != secret.Identity.PublicKey {
		h.Destroy()
		return nil, fmt.Errorf("token %s: private key does not match identity", secret.Identity.TokenID)
	}
	return NewWithHandle(secret.Identity, h, shares, log), nil
}

// NewWithHandle builds a device over an existing key handle.
func NewWithHandle(id domain.TokenIdentity, h crypto.KeyHandle, shares domain.ShareStore, log *slog.Logger) *Device {
	return &Device{
		identity: id,
		handle:   h,
		shares:   shares,
		log:      logging.OrDiscard(log).With("token_id", id.TokenID),
		sessions: make(map[domain.SessionID]*pending),
	}
}

// Identity returns the public identity.
func (d *Device) Identity() domain.TokenIdentity { return d.identity }

// Announce generates a fresh ephemeral key, replacing any earlier one.
func (d *Device) Announce(ctx context.Context) (domain.Announcement, error) {
	if err := ctx.Err(); err != nil {
		return domain.Announcement{}, err
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Announcement{}, err
	}
	d.mu.Lock()
	if d.announced != nil {
		d.announced.wipe()
	}
	d.announced = &ephemeral{priv: priv, pub: pub}
	d.mu.Unlock()
	memzero.Zero32((*[32]byte)(&priv))

	return domain.Announcement{
		TokenID:      d.identity.TokenID,
		IdentityKey:  d.identity.PublicKey,
		Certificate:  d.identity.Certificate,
		EphemeralKey: pub,
	}, nil
}

// Agree checks that the proposal lists this token with its announced
// ephemeral key, derives the pair transport key and returns its transcript
// view with a confirm tag. The announced key is consumed either way.
func (d *Device) Agree(ctx context.Context, p domain.Proposal) (domain.AgreeResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.AgreeResponse{}, err
	}
	if err := groupdh.ValidateProposal(p); err != nil {
		return domain.AgreeResponse{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	eph := d.announced
	d.announced = nil
	if eph == nil {
		return domain.AgreeResponse{}, ErrNotAnnounced
	}
	defer eph.wipe()

	self, ok := d.findSelf(p)
	if !ok {
		return domain.AgreeResponse{}, ErrNotParticipant
	}
	if self.IdentityKey != d.identity.PublicKey || self.EphemeralKey != eph.pub {
		return domain.AgreeResponse{}, fmt.Errorf("%w: own keys altered in proposal", domain.ErrTranscriptMismatch)
	}

	th := groupdh.Transcript(p)
	ltDH, err := d.handle.Agree(p.CoordinatorKey)
	if err != nil {
		return domain.AgreeResponse{}, err
	}
	pair := groupdh.PairSecret(ltDH, p.SessionID, d.identity.TokenID)
	defer memzero.Zero(pair)
	ephDH, err := crypto.Agree(eph.priv, p.CoordinatorEphemeral)
	if err != nil {
		return domain.AgreeResponse{}, err
	}
	k := groupdh.TransportKey(ephDH, pair, th)

	if old, ok := d.sessions[p.SessionID]; ok {
		old.wipe()
	}
	d.sessions[p.SessionID] = &pending{proposal: p, transcript: th, transport: k}
	d.log.Debug("agreement round answered", "session_id", p.SessionID)

	return domain.AgreeResponse{
		TokenID:    d.identity.TokenID,
		Transcript: th,
		Confirm:    groupdh.Confirm(k, th),
	}, nil
}

// Finalize unwraps the group secret, stores the share if one is included, and
// returns a key confirmation. Pending state is wiped on every path.
func (d *Device) Finalize(ctx context.Context, f domain.Finalize) (domain.FinalizeAck, error) {
	if err := ctx.Err(); err != nil {
		return domain.FinalizeAck{}, err
	}
	d.mu.Lock()
	st, ok := d.sessions[f.SessionID]
	delete(d.sessions, f.SessionID)
	d.mu.Unlock()
	if !ok {
		return domain.FinalizeAck{}, fmt.Errorf("finalize %s: %w", f.SessionID, domain.ErrNotFound)
	}
	defer st.wipe()

	p := st.proposal
	ids := make([]domain.TokenID, len(p.Participants))
	for i, pk := range p.Participants {
		ids[i] = pk.TokenID
	}
	if moment.ID(p.SessionID, p.CoarseTimestamp, p.ProximityHash, ids) != f.MomentID {
		return domain.FinalizeAck{}, fmt.Errorf("%w: moment id", domain.ErrTranscriptMismatch)
	}

	ad := groupdh.FinalizeAD(st.transcript, f.MomentID)
	gms, err := crypto.OpenBox(st.transport, f.WrappedGMS, ad)
	if err != nil {
		return domain.FinalizeAck{}, err
	}
	defer memzero.Zero(gms)

	if f.WrappedShare != nil {
		share, err := crypto.OpenBox(st.transport, *f.WrappedShare, ad)
		if err != nil {
			return domain.FinalizeAck{}, err
		}
		err = d.storeShare(f.MomentID, share)
		memzero.Zero(share)
		if err != nil {
			return domain.FinalizeAck{}, err
		}
	}

	d.log.Info("session finalized", "moment_id", f.MomentID, "threshold", f.WrappedShare != nil)
	return domain.FinalizeAck{
		TokenID: d.identity.TokenID,
		Ack:     groupdh.KeyConfirm(gms, p.SessionID, st.transcript),
	}, nil
}

// Abort wipes pending material for the session and any announced key.
func (d *Device) Abort(_ context.Context, id domain.SessionID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.sessions[id]; ok {
		st.wipe()
		delete(d.sessions, id)
	}
	if d.announced != nil {
		d.announced.wipe()
		d.announced = nil
	}
	d.log.Debug("session aborted", "session_id", id)
	return nil
}

// ReleaseShare decrypts the stored share locally and seals it to the
// requester's ephemeral key. The seal mixes the token's long-term key, so only
// the genuine token can produce it.
func (d *Device) ReleaseShare(ctx context.Context, req domain.ShareRequest) (domain.SealedShare, error) {
	if err := ctx.Err(); err != nil {
		return domain.SealedShare{}, err
	}
	if d.shares == nil {
		return domain.SealedShare{}, fmt.Errorf("share %s: %w", req.MomentID, domain.ErrNotFound)
	}
	rec, ok, err := d.shares.GetShare(req.MomentID)
	if err != nil {
		return domain.SealedShare{}, err
	}
	if !ok {
		return domain.SealedShare{}, fmt.Errorf("share %s: %w", req.MomentID, domain.ErrNotFound)
	}

	storeKey, err := d.handle.DeriveKey(moment.ShareStorageLabel, req.MomentID.Slice())
	if err != nil {
		return domain.SealedShare{}, err
	}
	share, err := crypto.OpenBox(storeKey, rec.Sealed, moment.ShareStorageAD(req.MomentID, d.identity.TokenID))
	memzero.Zero(storeKey)
	if err != nil {
		return domain.SealedShare{}, err
	}
	defer memzero.Zero(share)

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.SealedShare{}, err
	}
	defer memzero.Zero32((*[32]byte)(&priv))
	ephDH, err := crypto.Agree(priv, req.RequesterEphemeral)
	if err != nil {
		return domain.SealedShare{}, err
	}
	ltDH, err := d.handle.Agree(req.RequesterEphemeral)
	if err != nil {
		memzero.Zero(ephDH)
		return domain.SealedShare{}, err
	}
	k := moment.ShareTransportKey(ephDH, ltDH, req.MomentID, d.identity.TokenID, req.RequesterEphemeral)
	defer memzero.Zero(k)

	box, err := crypto.SealBox(k, share, moment.ShareReleaseAD(req.MomentID, d.identity.TokenID, pub))
	if err != nil {
		return domain.SealedShare{}, err
	}
	d.log.Info("share released", "moment_id", req.MomentID)
	return domain.SealedShare{
		TokenID:      d.identity.TokenID,
		MomentID:     req.MomentID,
		EphemeralKey: pub,
		Sealed:       box,
	}, nil
}

// Close destroys the key handle and wipes all pending state.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, st := range d.sessions {
		st.wipe()
		delete(d.sessions, id)
	}
	if d.announced != nil {
		d.announced.wipe()
		d.announced = nil
	}
	d.handle.Destroy()
}

// PendingSessions reports how many sessions hold transport keys.
func (d *Device) PendingSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Device) storeShare(id domain.MomentID, share []byte) error {
	if d.shares == nil {
		return errors.New("token has no share store")
	}
	k, err := d.handle.DeriveKey(moment.ShareStorageLabel, id.Slice())
	if err != nil {
		return err
	}
	defer memzero.Zero(k)
	box, err := crypto.SealBox(k, share, moment.ShareStorageAD(id, d.identity.TokenID))
	if err != nil {
		return err
	}
	return d.shares.PutShare(domain.ShareRecord{MomentID: id, TokenID: d.identity.TokenID, Sealed: box})
}

func (d *Device) findSelf(p domain.Proposal) (domain.ParticipantKeys, bool) {
	for _, pk := range p.Participants {
		if pk.TokenID == d.identity.TokenID {
			return pk, true
		}
	}
	return domain.ParticipantKeys{}, false
}

var _ domain.TokenLink = (*Device)(nil)
