package session_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"momentkey/internal/crypto"
	"momentkey/internal/discovery"
	"momentkey/internal/domain"
	"momentkey/internal/logging"
	"momentkey/internal/services/session"
	"momentkey/internal/token/tokentest"
)

type transitions struct {
	mu  sync.Mutex
	all []domain.SessionState
}

func (tr *transitions) record(_ domain.SessionID, s domain.SessionState) {
	tr.mu.Lock()
	tr.all = append(tr.all, s)
	tr.mu.Unlock()
}

func (tr *transitions) last() domain.SessionState {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.all[len(tr.all)-1]
}

func newCoordinator(t *testing.T, f *tokentest.Fleet, tr *transitions) *session.Coordinator {
	t.Helper()
	c, _ := newCoordinatorWith(t, f, tr, nil)
	return c
}

func newCoordinatorWith(t *testing.T, f *tokentest.Fleet, tr *transitions, log *slog.Logger) (*session.Coordinator, *discovery.Registry) {
	t.Helper()
	priv, _, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	h, err := crypto.NewSoftwareKeyHandle(priv)
	if err != nil {
		t.Fatalf("NewSoftwareKeyHandle: %v", err)
	}
	reg := discovery.New(discovery.Config{Issuer: f.Issuer.Public, AnnounceRate: 100, AnnounceBurst: 100}, nil)
	cfg := session.Config{DiscoveryWindow: 200 * time.Millisecond, StepTimeout: time.Second}
	if tr != nil {
		cfg.OnTransition = tr.record
	}
	return session.New(cfg, h, reg, nil, log), reg
}

func keyOf(t *testing.T, h *session.Handle) []byte {
	t.Helper()
	var out []byte
	if err := h.WithKey(func(k []byte) error {
		out = append([]byte(nil), k...)
		return nil
	}); err != nil {
		t.Fatalf("WithKey: %v", err)
	}
	return out
}

var sample = tokentest.Ranging("uwb:1.2m,0.8m,1.5m")

func TestStartSession_EstablishesAndReplays(t *testing.T) {
	f := tokentest.NewFleet(t, 3)
	tr := &transitions{}
	c := newCoordinator(t, f, tr)
	ctx := context.Background()

	h, err := c.StartSession(ctx, session.Request{Links: f.Links(), ContextTag: "picnic", Ranging: sample})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if h.State() != domain.StateEstablished {
		t.Fatalf("want established, got %v", h.State())
	}
	want := []domain.SessionState{domain.StateDiscovering, domain.StateProposed, domain.StateAgreeing, domain.StateEstablished}
	if len(tr.all) != len(want) {
		t.Fatalf("transitions %v", tr.all)
	}
	for i := range want {
		if tr.all[i] != want[i] {
			t.Fatalf("transition %d: want %v, got %v", i, want[i], tr.all[i])
		}
	}
	if len(h.Session().Participants) != 3 {
		t.Fatalf("want 3 participants")
	}
	if f.Pending() != 0 {
		t.Fatalf("tokens kept pending state")
	}
	words, err := h.SafetyWords()
	if err != nil || words == "" {
		t.Fatalf("SafetyWords: %q %v", words, err)
	}
	key := keyOf(t, h)

	again, err := c.Reestablish(ctx, session.Replay{Record: h.Record(), Links: f.Links()})
	if err != nil {
		t.Fatalf("Reestablish: %v", err)
	}
	if again.MomentID() != h.MomentID() {
		t.Fatalf("replay changed the moment id")
	}
	if !bytes.Equal(keyOf(t, again), key) {
		t.Fatalf("replay derived a different key")
	}

	fresh, err := c.StartSession(ctx, session.Request{Links: f.Links(), ContextTag: "picnic", Ranging: sample})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if fresh.MomentID() == h.MomentID() || bytes.Equal(keyOf(t, fresh), key) {
		t.Fatalf("fresh session reused moment material")
	}
}

func TestStartSession_DiscoveryTimeout(t *testing.T) {
	f := tokentest.NewFleet(t, 2)
	tr := &transitions{}
	c := newCoordinator(t, f, tr)
	links := []domain.TokenLink{f.Devices[0], tokentest.Silent{TokenLink: f.Devices[1]}}

	_, err := c.StartSession(context.Background(), session.Request{Links: links, Ranging: sample})
	if !errors.Is(err, domain.ErrDiscoveryTimeout) {
		t.Fatalf("want ErrDiscoveryTimeout, got %v", err)
	}
	if tr.last() != domain.StateFailed {
		t.Fatalf("want failed, got %v", tr.last())
	}
}

// mitm swaps another participant's ephemeral key in the proposal it forwards.
type mitm struct {
	domain.TokenLink
}

func (m mitm) Agree(ctx context.Context, p domain.Proposal) (domain.AgreeResponse, error) {
	_, fake, _ := crypto.GenerateX25519()
	q := p
	q.Participants = append([]domain.ParticipantKeys(nil), p.Participants...)
	for i := range q.Participants {
		if q.Participants[i].TokenID != m.Identity().TokenID {
			q.Participants[i].EphemeralKey = fake
			break
		}
	}
	return m.TokenLink.Agree(ctx, q)
}

func TestStartSession_TranscriptMismatchFailsAndAborts(t *testing.T) {
	f := tokentest.NewFleet(t, 3)
	tr := &transitions{}
	c := newCoordinator(t, f, tr)
	links := f.Links()
	links[1] = mitm{TokenLink: links[1]}

	_, err := c.StartSession(context.Background(), session.Request{Links: links, Ranging: sample})
	if !errors.Is(err, domain.ErrTranscriptMismatch) {
		t.Fatalf("want ErrTranscriptMismatch, got %v", err)
	}
	if tr.last() != domain.StateFailed {
		t.Fatalf("want failed, got %v", tr.last())
	}
	if f.Pending() != 0 {
		t.Fatalf("abort did not reach every token")
	}

	// A retry runs with fresh ephemerals and a fresh session id.
	h, err := c.StartSession(context.Background(), session.Request{Links: f.Links(), Ranging: sample})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	h.Close()
}

func TestReestablish_RequiresEveryParticipant(t *testing.T) {
	f := tokentest.NewFleet(t, 3)
	c := newCoordinator(t, f, nil)
	h, err := c.StartSession(context.Background(), session.Request{Links: f.Links(), Ranging: sample})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	_, err = c.Reestablish(context.Background(), session.Replay{Record: h.Record(), Links: f.Links(0, 1)})
	if !errors.Is(err, domain.ErrDiscoveryTimeout) {
		t.Fatalf("want ErrDiscoveryTimeout, got %v", err)
	}
}

func TestStartSession_ThresholdPushesShares(t *testing.T) {
	f := tokentest.NewFleet(t, 3)
	c := newCoordinator(t, f, nil)
	h, err := c.StartSession(context.Background(), session.Request{Links: f.Links(), Ranging: sample, Threshold: 2})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if p := h.Policy(); p.Mode != domain.PolicyThreshold || p.Threshold != 2 || p.Total != 3 {
		t.Fatalf("unexpected policy %+v", p)
	}
	for i, s := range f.Shares {
		if s.Len() != 1 {
			t.Fatalf("token %d holds %d shares", i, s.Len())
		}
	}
}

func TestStartSession_RejectsBadThreshold(t *testing.T) {
	f := tokentest.NewFleet(t, 2)
	c := newCoordinator(t, f, nil)
	for _, k := range []int{1, 3} {
		_, err := c.StartSession(context.Background(), session.Request{Links: f.Links(), Ranging: sample, Threshold: k})
		if !errors.Is(err, session.ErrBadThreshold) {
			t.Fatalf("k=%d: want ErrBadThreshold, got %v", k, err)
		}
	}
}

func TestHandle_CloseIsIdempotent(t *testing.T) {
	f := tokentest.NewFleet(t, 2)
	c := newCoordinator(t, f, nil)
	h, err := c.StartSession(context.Background(), session.Request{Links: f.Links(), Ranging: sample})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	h.Close()
	h.Close()
	if h.State() != domain.StateClosed {
		t.Fatalf("want closed, got %v", h.State())
	}
	if err := h.WithKey(func([]byte) error { return nil }); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("want ErrSessionClosed, got %v", err)
	}
}

func TestStartSession_Cancelled(t *testing.T) {
	f := tokentest.NewFleet(t, 2)
	c := newCoordinator(t, f, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.StartSession(ctx, session.Request{Links: f.Links(), Ranging: sample}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

// lowOrder announces a small-subgroup point as its ephemeral key.
type lowOrder struct {
	domain.TokenLink
	mu     sync.Mutex
	aborts int
}

func (l *lowOrder) Announce(ctx context.Context) (domain.Announcement, error) {
	a, err := l.TokenLink.Announce(ctx)
	a.EphemeralKey = domain.X25519Public{1}
	return a, err
}

func (l *lowOrder) Abort(ctx context.Context, id domain.SessionID) error {
	l.mu.Lock()
	l.aborts++
	l.mu.Unlock()
	return l.TokenLink.Abort(ctx, id)
}

func TestStartSession_LowOrderEphemeralFailsAndAborts(t *testing.T) {
	f := tokentest.NewFleet(t, 3)
	tr := &transitions{}
	var buf bytes.Buffer
	log, err := logging.New(&buf, logging.Options{Level: "debug"})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	c, _ := newCoordinatorWith(t, f, tr, log)
	bad := &lowOrder{TokenLink: f.Devices[1]}
	links := []domain.TokenLink{f.Devices[0], bad, f.Devices[2]}

	_, err = c.StartSession(context.Background(), session.Request{Links: links, Ranging: sample})
	if !errors.Is(err, domain.ErrKeyAgreement) {
		t.Fatalf("want ErrKeyAgreement, got %v", err)
	}
	if tr.last() != domain.StateFailed {
		t.Fatalf("want failed, got %v", tr.last())
	}
	if bad.aborts != 1 {
		t.Fatalf("want one abort, got %d", bad.aborts)
	}
	if f.Pending() != 0 {
		t.Fatalf("abort did not reach every token")
	}

	raw := f.Devices[1].Identity().TokenID.String()
	if strings.Contains(err.Error(), raw) {
		t.Fatalf("error names the token: %v", err)
	}
	if strings.Contains(buf.String(), raw) {
		t.Fatalf("log carries a raw token id")
	}
	if !strings.Contains(buf.String(), "token_id_fp") {
		t.Fatalf("failing token not attributed in logs")
	}
}

// cancelOnAnnounce cancels the caller's run right after announcing.
type cancelOnAnnounce struct {
	domain.TokenLink
	cancel context.CancelFunc
}

func (l cancelOnAnnounce) Announce(ctx context.Context) (domain.Announcement, error) {
	a, err := l.TokenLink.Announce(ctx)
	l.cancel()
	return a, err
}

func TestStartSession_CancelledDiscoveryForgetsCandidates(t *testing.T) {
	f := tokentest.NewFleet(t, 2)
	c, reg := newCoordinatorWith(t, f, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	links := []domain.TokenLink{f.Devices[0], cancelOnAnnounce{TokenLink: f.Devices[1], cancel: cancel}}

	if _, err := c.StartSession(ctx, session.Request{Links: links, Ranging: sample}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if n := reg.Len(); n != 0 {
		t.Fatalf("%d stale candidates left", n)
	}
}
