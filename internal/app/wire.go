package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"momentkey/internal/discovery"
	"momentkey/internal/domain"
	"momentkey/internal/ledger"
	"momentkey/internal/logging"
	"momentkey/internal/metrics"
	"momentkey/internal/privacy"
	identitysvc "momentkey/internal/services/identity"
	momentsvc "momentkey/internal/services/moment"
	"momentkey/internal/services/session"
	"momentkey/internal/store"
	"momentkey/internal/token"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config   Config
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Identity *identitysvc.Service
	Tokens   *store.TokenFileStore
	Moments  *store.MomentFileStore
	Ledger   domain.Ledger
	HTTP     *http.Client
}

// NewWire constructs the dependency graph from cfg. Logs go to logOut.
func NewWire(cfg Config, logOut io.Writer) (*Wire, error) {
	log, err := logging.New(logOut, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	// File-based stores
	identityStore := store.NewIdentityFileStore(cfg.Home)
	tokenStore := store.NewTokenFileStore(cfg.Home)
	momentStore := store.NewMomentFileStore(cfg.Home)

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	m := metrics.New()
	var l domain.Ledger
	if cfg.LedgerURL != "" {
		hc := ledger.NewHTTP(cfg.LedgerURL, cfg.PrivacyPolicy())
		hc.HTTP = httpClient
		l = hc
	} else {
		l = ledger.NewMemory(cfg.PrivacyPolicy(), m)
	}

	return &Wire{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		Identity: identitysvc.New(identityStore, tokenStore),
		Tokens:   tokenStore,
		Moments:  momentStore,
		Ledger:   l,
		HTTP:     httpClient,
	}, nil
}

// MomentService unlocks the coordinator identity and builds a moment service
// around a fresh discovery registry trusting the provisioning issuer.
func (w *Wire) MomentService(passphrase string) (*momentsvc.Service, error) {
	handle, err := w.Identity.KeyHandle(passphrase)
	if err != nil {
		return nil, err
	}
	issuer, err := w.Identity.IssuerPublic()
	if err != nil {
		return nil, err
	}

	c := w.Config
	reg := discovery.New(discovery.Config{
		TTL:           c.Discovery.CandidateTTL,
		AnnounceRate:  c.Discovery.AnnounceRate,
		AnnounceBurst: c.Discovery.AnnounceBurst,
		Issuer:        issuer,
	}, w.Log)
	coord := session.New(session.Config{
		DiscoveryWindow: c.Discovery.Window,
		StepTimeout:     c.Agreement.StepTimeout,
		Granularity:     c.Moment.TimestampGranularity,
		OnTransition: func(sid domain.SessionID, s domain.SessionState) {
			w.Log.Debug("session transition", "session_id", sid, "state", s)
		},
	}, handle, reg, w.Metrics, w.Log)

	return momentsvc.New(
		momentsvc.Config{ReconstructionTimeout: c.Reconstruction.Timeout},
		coord, w.Moments, w.Moments, w.Ledger,
		privacy.Redactor{Policy: w.Config.PrivacyPolicy()},
		w.Metrics, w.Log,
	), nil
}

// SimulatedTokens unlocks the stored tokens named by ids and returns them as
// in-process links with their share stores under the home directory. No ids
// means every provisioned token. The returned close func wipes their keys.
func (w *Wire) SimulatedTokens(passphrase string, ids []domain.TokenID) ([]domain.TokenLink, func(), error) {
	if len(ids) == 0 {
		all, err := w.Tokens.ListTokens()
		if err != nil {
			return nil, nil, err
		}
		for _, t := range all {
			ids = append(ids, t.TokenID)
		}
	}
	var devices []*token.Device
	closeAll := func() {
		for _, d := range devices {
			d.Close()
		}
	}
	links := make([]domain.TokenLink, 0, len(ids))
	for _, id := range ids {
		secret, err := w.Tokens.LoadToken(passphrase, id)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("token %s: %w", id, err)
		}
		d, err := token.New(&secret, store.NewShareFileStore(w.Config.Home, id), w.Log)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("token %s: %w", id, err)
		}
		devices = append(devices, d)
		links = append(links, d)
	}
	return links, closeAll, nil
}
