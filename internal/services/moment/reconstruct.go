package moment

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/protocol/moment"
	"momentkey/internal/services/session"
	"momentkey/internal/util/memzero"
)

type released struct {
	token domain.TokenID
	share crypto.Share
}

// reconstruct collects shares from at least K distinct recorded participants
// within the reconstruction timeout and rebuilds the MomentKey.
func (s *Service) reconstruct(ctx context.Context, rec domain.MomentRecord, links []domain.TokenLink) (*session.Handle, error) {
	started := time.Now()
	k := rec.Policy.Threshold

	known := make(map[domain.TokenID]domain.X25519Public, len(rec.Identities))
	for _, id := range rec.Identities {
		known[id.TokenID] = id.PublicKey
	}

	reqPriv, reqPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	defer memzero.Zero32((*[32]byte)(&reqPriv))

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ReconstructionTimeout)
	defer cancel()

	results := make(chan released, len(links))
	var g errgroup.Group
	asked := make(map[domain.TokenID]bool, len(links))
	for _, l := range links {
		tid := l.Identity().TokenID
		lt, ok := known[tid]
		if !ok || asked[tid] {
			continue
		}
		asked[tid] = true
		g.Go(func() error {
			sh, err := s.requestShare(cctx, l, tid, lt, rec.MomentID, &reqPriv, reqPub)
			if err != nil {
				s.log.Debug("share unavailable", "token_id", tid, "err", err)
				return nil
			}
			results <- released{token: tid, share: sh}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	got := make(map[domain.TokenID]crypto.Share, k)
	for r := range results {
		got[r.token] = r.share
		if len(got) >= k {
			break
		}
	}
	// Late replies are dropped; reqPriv is wiped only after every request
	// has returned.
	cancel()
	for r := range results {
		memzero.Zero(r.share.Value)
	}
	shares := make([]crypto.Share, 0, len(got))
	for _, sh := range got {
		shares = append(shares, sh)
	}
	defer func() {
		for _, sh := range shares {
			memzero.Zero(sh.Value)
		}
	}()
	s.metrics.SharesCollected(len(shares))
	s.metrics.ObserveStep("reconstruct", started)

	if len(shares) < k {
		return nil, fmt.Errorf("%w: %d of %d tokens released a share", domain.ErrInsufficientShares, len(shares), k)
	}
	seed, err := crypto.Combine(shares, k)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(seed)
	key := moment.Key(seed, rec.Session)
	defer memzero.Zero(key)

	s.log.Info("moment reconstructed", "moment_id", rec.MomentID, "collected", len(shares))
	return session.NewKeyHandle(rec, key, s.log), nil
}

// requestShare asks one token for its share and opens the sealed reply with
// keys only the requester and that token's long-term key can derive.
func (s *Service) requestShare(
	ctx context.Context,
	l domain.TokenLink,
	tid domain.TokenID,
	tokenLT domain.X25519Public,
	id domain.MomentID,
	reqPriv *domain.X25519Private,
	reqPub domain.X25519Public,
) (crypto.Share, error) {
	resp, err := l.ReleaseShare(ctx, domain.ShareRequest{MomentID: id, RequesterEphemeral: reqPub})
	if err != nil {
		return crypto.Share{}, err
	}
	if resp.TokenID != tid || resp.MomentID != id {
		return crypto.Share{}, fmt.Errorf("%w: share header", domain.ErrAuthentication)
	}
	ephDH, err := crypto.Agree(*reqPriv, resp.EphemeralKey)
	if err != nil {
		return crypto.Share{}, err
	}
	ltDH, err := crypto.Agree(*reqPriv, tokenLT)
	if err != nil {
		memzero.Zero(ephDH)
		return crypto.Share{}, err
	}
	key := moment.ShareTransportKey(ephDH, ltDH, id, tid, reqPub)
	defer memzero.Zero(key)
	raw, err := crypto.OpenBox(key, resp.Sealed, moment.ShareReleaseAD(id, tid, resp.EphemeralKey))
	if err != nil {
		return crypto.Share{}, err
	}
	defer memzero.Zero(raw)
	return crypto.DecodeShare(raw)
}
