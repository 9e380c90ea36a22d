package groupdh_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/protocol/groupdh"
)

func tokenID(b byte) domain.TokenID {
	var id domain.TokenID
	id[0] = b
	return id
}

func mustX25519(t *testing.T) (domain.X25519Private, domain.X25519Public) {
	t.Helper()
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	return priv, pub
}

func proposal(t *testing.T) domain.Proposal {
	t.Helper()
	_, ck := mustX25519(t)
	_, ce := mustX25519(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []domain.TokenID{tokenID(1), tokenID(2)}
	p := domain.Proposal{
		SessionID:            groupdh.NewSessionID([]byte("nonce"), ts, ids),
		CoordinatorKey:       ck,
		CoordinatorEphemeral: ce,
		CoarseTimestamp:      ts,
		ProximityHash:        crypto.Hash("PROX", []byte("uwb")),
	}
	for _, id := range ids {
		_, lt := mustX25519(t)
		_, eph := mustX25519(t)
		p.Participants = append(p.Participants, domain.ParticipantKeys{TokenID: id, IdentityKey: lt, EphemeralKey: eph})
	}
	return p
}

func TestNewSessionID_OrderIndependent(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	a := groupdh.NewSessionID([]byte("n"), ts, []domain.TokenID{tokenID(3), tokenID(1), tokenID(2)})
	b := groupdh.NewSessionID([]byte("n"), ts, []domain.TokenID{tokenID(1), tokenID(2), tokenID(3)})
	if a != b {
		t.Fatal("session id depends on participant order")
	}
	if c := groupdh.NewSessionID([]byte("m"), ts, []domain.TokenID{tokenID(1), tokenID(2), tokenID(3)}); c == a {
		t.Fatal("session id ignores nonce")
	}
}

func TestValidateProposal(t *testing.T) {
	p := proposal(t)
	if err := groupdh.ValidateProposal(p); err != nil {
		t.Fatalf("ValidateProposal: %v", err)
	}

	swapped := p
	swapped.Participants = []domain.ParticipantKeys{p.Participants[1], p.Participants[0]}
	if err := groupdh.ValidateProposal(swapped); !errors.Is(err, groupdh.ErrBadProposal) {
		t.Fatalf("unordered: want ErrBadProposal, got %v", err)
	}

	dup := p
	dup.Participants = []domain.ParticipantKeys{p.Participants[0], p.Participants[0]}
	if err := groupdh.ValidateProposal(dup); !errors.Is(err, groupdh.ErrBadProposal) {
		t.Fatalf("duplicate: want ErrBadProposal, got %v", err)
	}

	solo := p
	solo.Participants = p.Participants[:1]
	if err := groupdh.ValidateProposal(solo); !errors.Is(err, groupdh.ErrBadProposal) {
		t.Fatalf("single participant: want ErrBadProposal, got %v", err)
	}
}

func TestTranscript_BindsEveryKey(t *testing.T) {
	p := proposal(t)
	base := groupdh.Transcript(p)
	if !groupdh.SameTranscript(base, groupdh.Transcript(p)) {
		t.Fatal("transcript not deterministic")
	}

	_, sub := mustX25519(t)
	mutations := map[string]func(q *domain.Proposal){
		"coordinator key":       func(q *domain.Proposal) { q.CoordinatorKey = sub },
		"coordinator ephemeral": func(q *domain.Proposal) { q.CoordinatorEphemeral = sub },
		"identity key":          func(q *domain.Proposal) { q.Participants[1].IdentityKey = sub },
		"ephemeral key":         func(q *domain.Proposal) { q.Participants[0].EphemeralKey = sub },
		"timestamp":             func(q *domain.Proposal) { q.CoarseTimestamp = q.CoarseTimestamp.Add(time.Minute) },
		"proximity":             func(q *domain.Proposal) { q.ProximityHash[0] ^= 1 },
	}
	for name, mutate := range mutations {
		q := p
		q.Participants = append([]domain.ParticipantKeys(nil), p.Participants...)
		mutate(&q)
		if groupdh.SameTranscript(base, groupdh.Transcript(q)) {
			t.Errorf("%s substitution not reflected in transcript", name)
		}
	}
}

func TestPairAndTransport_BothSidesAgree(t *testing.T) {
	p := proposal(t)
	th := groupdh.Transcript(p)
	id := p.Participants[0].TokenID

	coordLT, coordLTPub := mustX25519(t)
	tokLT, tokLTPub := mustX25519(t)
	coordEph, coordEphPub := mustX25519(t)
	tokEph, tokEphPub := mustX25519(t)

	agree := func(priv domain.X25519Private, pub domain.X25519Public) []byte {
		out, err := crypto.Agree(priv, pub)
		if err != nil {
			t.Fatalf("Agree: %v", err)
		}
		return out
	}

	coordPair := groupdh.PairSecret(agree(coordLT, tokLTPub), p.SessionID, id)
	tokPair := groupdh.PairSecret(agree(tokLT, coordLTPub), p.SessionID, id)
	if !bytes.Equal(coordPair, tokPair) {
		t.Fatal("pair secrets differ")
	}
	kc := groupdh.TransportKey(agree(coordEph, tokEphPub), coordPair, th)
	kt := groupdh.TransportKey(agree(tokEph, coordEphPub), tokPair, th)
	if !bytes.Equal(kc, kt) {
		t.Fatal("transport keys differ")
	}

	resp := domain.AgreeResponse{TokenID: id, Transcript: th, Confirm: groupdh.Confirm(kt, th)}
	if err := groupdh.CheckResponse(kc, th, resp); err != nil {
		t.Fatalf("CheckResponse: %v", err)
	}

	other := th
	other[0] ^= 1
	bad := domain.AgreeResponse{TokenID: id, Transcript: other, Confirm: groupdh.Confirm(kt, other)}
	if err := groupdh.CheckResponse(kc, th, bad); !errors.Is(err, domain.ErrTranscriptMismatch) {
		t.Fatalf("divergent transcript: want ErrTranscriptMismatch, got %v", err)
	}

	forged := resp
	forged.Confirm = groupdh.Confirm(coordPair, th)
	if err := groupdh.CheckResponse(kc, th, forged); !errors.Is(err, domain.ErrTranscriptMismatch) {
		t.Fatalf("forged confirm: want ErrTranscriptMismatch, got %v", err)
	}
}

func TestAggregateGMS_NeedsEverySecretInOrder(t *testing.T) {
	sid := domain.SessionID(crypto.Hash("sid"))
	s1, s2 := bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 32)

	gms := groupdh.AggregateGMS(sid, [][]byte{s1, s2})
	if len(gms) != crypto.KeySize {
		t.Fatalf("gms length %d", len(gms))
	}
	if bytes.Equal(gms, groupdh.AggregateGMS(sid, [][]byte{s2, s1})) {
		t.Fatal("gms ignores participant order")
	}
	if bytes.Equal(gms, groupdh.AggregateGMS(sid, [][]byte{s1})) {
		t.Fatal("gms computable from a subset")
	}

	th := crypto.Hash("th")
	ack := groupdh.KeyConfirm(gms, sid, th)
	if !groupdh.CheckKeyConfirm(gms, sid, th, ack) {
		t.Fatal("valid key confirmation rejected")
	}
	other := groupdh.AggregateGMS(sid, [][]byte{s1, bytes.Repeat([]byte{3}, 32)})
	if groupdh.CheckKeyConfirm(other, sid, th, ack) {
		t.Fatal("key confirmation accepted for a different gms")
	}
}
