package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"momentkey/internal/crypto"
	"momentkey/internal/discovery"
	"momentkey/internal/domain"
	"momentkey/internal/logging"
	"momentkey/internal/metrics"
	"momentkey/internal/protocol/groupdh"
	"momentkey/internal/protocol/moment"
	"momentkey/internal/util/memzero"
)

// Defaults applied to zero Config fields.
const (
	DefaultDiscoveryWindow = 5 * time.Second
	DefaultStepTimeout     = 3 * time.Second
)

// ErrBadThreshold is returned for a threshold outside 2..N.
var ErrBadThreshold = errors.New("threshold must be between 2 and the participant count")

// Config bounds every protocol step.
type Config struct {
	DiscoveryWindow time.Duration
	StepTimeout     time.Duration
	// Granularity rounds the moment timestamp. Zero means one minute.
	Granularity time.Duration
	// OnTransition, when set, observes every state change.
	OnTransition func(domain.SessionID, domain.SessionState)
}

// Request starts a fresh session.
type Request struct {
	Links      []domain.TokenLink
	ContextTag string
	Ranging    domain.RangingSource
	// Threshold is K for a K-of-N moment; zero selects N-of-N.
	Threshold int
}

// Replay re-establishes a recorded session with its original participants.
type Replay struct {
	Record domain.MomentRecord
	Links  []domain.TokenLink
}

// Coordinator runs moment sessions.
type Coordinator struct {
	cfg      Config
	identity crypto.KeyHandle
	registry *discovery.Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// New builds a coordinator around its long-term key handle.
func New(
	cfg Config,
	identity crypto.KeyHandle,
	registry *discovery.Registry,
	m *metrics.Metrics,
	log *slog.Logger,
) *Coordinator {
	if cfg.DiscoveryWindow <= 0 {
		cfg.DiscoveryWindow = DefaultDiscoveryWindow
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = moment.DefaultGranularity
	}
	return &Coordinator{
		cfg:      cfg,
		identity: identity,
		registry: registry,
		metrics:  m,
		log:      logging.OrDiscard(log),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for fresh session timestamps.
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

// PublicKey is the coordinator's long-term X25519 key.
func (c *Coordinator) PublicKey() domain.X25519Public { return c.identity.Public() }

// StartSession discovers the given tokens and establishes a new moment with
// a fresh session id.
func (c *Coordinator) StartSession(ctx context.Context, req Request) (*Handle, error) {
	if req.Threshold != 0 && (req.Threshold < groupdh.MinParticipants || req.Threshold > len(req.Links)) {
		return nil, ErrBadThreshold
	}
	if req.Ranging == nil {
		return nil, errors.New("session: no ranging source")
	}
	return c.run(ctx, runPlan{
		links:      req.Links,
		contextTag: req.ContextTag,
		ranging:    req.Ranging,
		threshold:  req.Threshold,
	})
}

// Reestablish replays a recorded session. Every recorded participant must
// be discovered; other links are ignored.
func (c *Coordinator) Reestablish(ctx context.Context, rp Replay) (*Handle, error) {
	s := rp.Record.Session
	return c.run(ctx, runPlan{
		links:      rp.Links,
		contextTag: s.ContextTag,
		replay:     &s,
		policy:     &rp.Record.Policy,
	})
}

type runPlan struct {
	links      []domain.TokenLink
	contextTag string
	ranging    domain.RangingSource
	threshold  int
	replay     *domain.Session
	policy     *domain.Policy
}

// material is every secret a run produces. wipe is idempotent.
type material struct {
	ephPriv    domain.X25519Private
	pairs      [][]byte
	transports [][]byte
	gms        []byte
	seed       []byte
	key        []byte
	shares     [][]byte
}

func (m *material) wipe() {
	memzero.Zero32((*[32]byte)(&m.ephPriv))
	memzero.ZeroAll(m.pairs...)
	memzero.ZeroAll(m.transports...)
	memzero.ZeroAll(m.shares...)
	memzero.ZeroAll(m.gms, m.seed, m.key)
}

type run struct {
	c        *Coordinator
	plan     runPlan
	links    map[domain.TokenID]domain.TokenLink
	sid      domain.SessionID
	state    domain.SessionState
	proposal domain.Proposal
	anns     []domain.Announcement
	mat      material
	log      *slog.Logger
}

func (c *Coordinator) run(ctx context.Context, plan runPlan) (h *Handle, err error) {
	r := &run{
		c:     c,
		plan:  plan,
		links: make(map[domain.TokenID]domain.TokenLink, len(plan.links)),
		log:   c.log,
	}
	for _, l := range plan.links {
		r.links[l.Identity().TokenID] = l
	}
	defer r.mat.wipe()
	defer func() {
		if err != nil {
			r.fail(ctx, err)
		}
	}()

	r.transition(domain.StateDiscovering)
	anns, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.propose(ctx, anns); err != nil {
		return nil, err
	}
	if err := r.agree(ctx); err != nil {
		return nil, err
	}
	return r.establish(ctx)
}

func (r *run) transition(s domain.SessionState) {
	r.state = s
	r.log.Info("session state", "session_id", r.sid, "state", s.String())
	if r.c.cfg.OnTransition != nil {
		r.c.cfg.OnTransition(r.sid, s)
	}
}

// discover collects fresh announcements within the discovery window.
func (r *run) discover(ctx context.Context) ([]domain.Announcement, error) {
	started := time.Now()
	defer r.c.metrics.ObserveStep("discover", started)

	dctx, cancel := context.WithTimeout(ctx, r.c.cfg.DiscoveryWindow)
	defer cancel()

	var g errgroup.Group
	for id, l := range r.links {
		g.Go(func() error {
			a, err := l.Announce(dctx)
			if err != nil {
				r.log.Debug("token silent", "token_id", id, "err", err)
				return nil
			}
			if a.TokenID != id {
				r.log.Warn("announcement for wrong token", "token_id", id)
				return nil
			}
			if err := r.c.registry.Observe(a); err != nil {
				r.log.Debug("announcement rejected", "token_id", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		for id := range r.links {
			r.c.registry.Forget(id)
		}
		return nil, err
	}

	want := make([]domain.TokenID, 0, len(r.links))
	if r.plan.replay != nil {
		want = append(want, r.plan.replay.Participants...)
	} else {
		for id := range r.links {
			want = append(want, id)
		}
	}
	want = groupdh.SortTokenIDs(want)
	var anns []domain.Announcement
	for _, a := range r.c.registry.Candidates(want) {
		r.c.registry.Forget(a.TokenID)
		if _, ok := r.links[a.TokenID]; ok {
			anns = append(anns, a)
		}
	}

	if r.plan.replay != nil && len(anns) != len(want) {
		return nil, fmt.Errorf("%w: %d of %d recorded participants present",
			domain.ErrDiscoveryTimeout, len(anns), len(want))
	}
	if len(anns) < groupdh.MinParticipants {
		return nil, fmt.Errorf("%w: %d tokens responded", domain.ErrDiscoveryTimeout, len(anns))
	}
	if r.plan.threshold > len(anns) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadThreshold, r.plan.threshold, len(anns))
	}
	return anns, nil
}

// propose fixes the participant set, the coordinator ephemeral key and the
// public session parameters.
func (r *run) propose(ctx context.Context, anns []domain.Announcement) error {
	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	r.mat.ephPriv = ephPriv
	memzero.Zero32((*[32]byte)(&ephPriv))
	r.anns = anns

	ids := make([]domain.TokenID, len(anns))
	parts := make([]domain.ParticipantKeys, len(anns))
	for i, a := range anns {
		ids[i] = a.TokenID
		parts[i] = domain.ParticipantKeys{TokenID: a.TokenID, IdentityKey: a.IdentityKey, EphemeralKey: a.EphemeralKey}
	}

	var (
		ts time.Time
		ph [32]byte
	)
	if rp := r.plan.replay; rp != nil {
		r.sid, ts, ph = rp.SessionID, rp.CoarseTimestamp, rp.ProximityHash
	} else {
		ts = moment.CoarseTime(r.c.now(), r.c.cfg.Granularity)
		sctx, cancel := context.WithTimeout(ctx, r.c.cfg.StepTimeout)
		sample, err := r.plan.ranging.Sample(sctx)
		cancel()
		if err != nil {
			return fmt.Errorf("ranging: %w", err)
		}
		ph = moment.ProximityHash(sample)
		nonce, err := crypto.RandomBytes(32)
		if err != nil {
			return err
		}
		r.sid = groupdh.NewSessionID(nonce, ts, ids)
	}
	r.log = r.c.log.With("session_id", r.sid)

	r.proposal = domain.Proposal{
		SessionID:            r.sid,
		CoordinatorKey:       r.c.identity.Public(),
		CoordinatorEphemeral: ephPub,
		CoarseTimestamp:      ts,
		ProximityHash:        ph,
		Participants:         parts,
	}
	r.transition(domain.StateProposed)
	return nil
}

// agree runs every per-token round in parallel and derives the GMS once all
// of them succeeded.
func (r *run) agree(ctx context.Context) error {
	r.transition(domain.StateAgreeing)
	started := time.Now()
	defer r.c.metrics.ObserveStep("agree", started)

	p := r.proposal
	th := groupdh.Transcript(p)
	n := len(p.Participants)
	r.mat.pairs = make([][]byte, n)
	r.mat.transports = make([][]byte, n)

	sctx, cancel := context.WithTimeout(ctx, r.c.cfg.StepTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(sctx)
	var mu sync.Mutex
	for i, pk := range p.Participants {
		g.Go(func() error {
			ltDH, err := r.c.identity.Agree(pk.IdentityKey)
			if err != nil {
				return tokenFailure(pk.TokenID, "identity key", err)
			}
			pair := groupdh.PairSecret(ltDH, p.SessionID, pk.TokenID)
			ephDH, err := crypto.Agree(r.mat.ephPriv, pk.EphemeralKey)
			if err != nil {
				memzero.Zero(pair)
				return tokenFailure(pk.TokenID, "ephemeral key", err)
			}
			k := groupdh.TransportKey(ephDH, pair, th)
			mu.Lock()
			r.mat.pairs[i], r.mat.transports[i] = pair, k
			mu.Unlock()

			resp, err := r.links[pk.TokenID].Agree(gctx, p)
			if err != nil {
				return tokenFailure(pk.TokenID, "agree", err)
			}
			if resp.TokenID != pk.TokenID {
				return tokenFailure(pk.TokenID, "agree", fmt.Errorf("%w: response from wrong token", domain.ErrTranscriptMismatch))
			}
			if err := groupdh.CheckResponse(k, th, resp); err != nil {
				return tokenFailure(pk.TokenID, "agree", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	memzero.Zero32((*[32]byte)(&r.mat.ephPriv))
	r.mat.gms = groupdh.AggregateGMS(p.SessionID, r.mat.pairs)
	return nil
}

// establish derives the moment secrets, hands each token the wrapped GMS
// (and its share) and checks every key confirmation.
func (r *run) establish(ctx context.Context) (*Handle, error) {
	started := time.Now()
	defer r.c.metrics.ObserveStep("finalize", started)

	p := r.proposal
	ids := make([]domain.TokenID, len(p.Participants))
	for i, pk := range p.Participants {
		ids[i] = pk.TokenID
	}
	sess := domain.Session{
		SessionID:       p.SessionID,
		Participants:    ids,
		CoarseTimestamp: p.CoarseTimestamp,
		ProximityHash:   p.ProximityHash,
		ContextTag:      r.plan.contextTag,
	}
	mid := moment.SessionMomentID(sess)
	if rp := r.plan.replay; rp != nil && mid != moment.SessionMomentID(*rp) {
		return nil, fmt.Errorf("%w: replay participants differ", domain.ErrTranscriptMismatch)
	}
	r.mat.seed = moment.Seed(r.mat.gms, mid)
	r.mat.key = moment.Key(r.mat.seed, sess)

	if k := r.plan.threshold; k > 0 {
		shares, err := crypto.Split(r.mat.seed, k, len(ids))
		if err != nil {
			return nil, err
		}
		r.mat.shares = make([][]byte, len(shares))
		for i, s := range shares {
			b, err := s.MarshalBinary()
			if err != nil {
				return nil, err
			}
			r.mat.shares[i] = b
			memzero.Zero(s.Value)
		}
	}

	th := groupdh.Transcript(p)
	ad := groupdh.FinalizeAD(th, mid)
	sctx, cancel := context.WithTimeout(ctx, r.c.cfg.StepTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(sctx)
	for i, pk := range p.Participants {
		g.Go(func() error {
			k := r.mat.transports[i]
			f := domain.Finalize{SessionID: p.SessionID, MomentID: mid}
			box, err := crypto.SealBox(k, r.mat.gms, ad)
			if err != nil {
				return err
			}
			f.WrappedGMS = box
			if r.mat.shares != nil {
				sb, err := crypto.SealBox(k, r.mat.shares[i], ad)
				if err != nil {
					return err
				}
				f.WrappedShare = &sb
			}
			ack, err := r.links[pk.TokenID].Finalize(gctx, f)
			if err != nil {
				return tokenFailure(pk.TokenID, "finalize", err)
			}
			if ack.TokenID != pk.TokenID || !groupdh.CheckKeyConfirm(r.mat.gms, p.SessionID, th, ack.Ack) {
				return tokenFailure(pk.TokenID, "finalize", fmt.Errorf("%w: key confirmation", domain.ErrTranscriptMismatch))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	policy := domain.Policy{Mode: domain.PolicyAll, Total: len(ids), Threshold: len(ids)}
	switch {
	case r.plan.policy != nil:
		policy = *r.plan.policy
	case r.plan.threshold > 0:
		policy = domain.Policy{Mode: domain.PolicyThreshold, Total: len(ids), Threshold: r.plan.threshold}
	}
	idents := make([]domain.TokenIdentity, len(r.anns))
	for i, a := range r.anns {
		idents[i] = domain.TokenIdentity{TokenID: a.TokenID, PublicKey: a.IdentityKey, Certificate: a.Certificate}
	}
	h := newHandle(sess, mid, th, policy, r.c.identity.Public(), idents, r.mat.key, r.c.log)
	r.transition(domain.StateEstablished)
	r.c.metrics.SessionFinished("established")
	return h, nil
}

// fail moves to Failed and tells every participant to drop its pending state.
// Secrets are wiped by the caller's deferred material wipe.
func (r *run) fail(ctx context.Context, cause error) {
	r.transition(domain.StateFailed)
	r.c.metrics.SessionFinished("failed")
	var te *tokenError
	if errors.As(cause, &te) {
		r.log.Warn("session failed", "token_id", te.id, "err", cause)
	} else {
		r.log.Warn("session failed", "err", cause)
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.c.cfg.StepTimeout)
	defer cancel()
	var wg sync.WaitGroup
	for id, l := range r.links {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Abort(actx, r.sid); err != nil {
				r.log.Debug("abort not delivered", "token_id", id, "err", err)
			}
		}()
	}
	wg.Wait()
}

// tokenError attributes a round failure to one participant. The token id is
// kept out of the message so it is only logged under token_id.
type tokenError struct {
	id  domain.TokenID
	op  string
	err error
}

func tokenFailure(id domain.TokenID, op string, err error) error {
	return &tokenError{id: id, op: op, err: err}
}

func (e *tokenError) Error() string { return e.op + ": " + e.err.Error() }

func (e *tokenError) Unwrap() error { return e.err }
