package store_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"momentkey/internal/domain"
	"momentkey/internal/store"
)

func TestIdentity_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	var ids domain.IdentityStore = store.NewIdentityFileStore(home)

	id := domain.CoordinatorIdentity{
		XPub:   domain.X25519Public{1},
		XPriv:  domain.X25519Private{2},
		EdPub:  domain.Ed25519Public{3},
		EdPriv: domain.Ed25519Private{4},
	}
	if err := ids.SaveIdentity("pass", id); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	got, err := ids.LoadIdentity("pass")
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if got != id {
		t.Fatalf("mismatch after load")
	}
	if err := ids.SaveIdentity("pass", id); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir())
	if err := ids.SaveIdentity("correct", domain.CoordinatorIdentity{XPub: domain.X25519Public{1}}); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if _, err := ids.LoadIdentity("wrong"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func TestIdentity_Missing(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir())
	if _, err := ids.LoadIdentity("x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTokens_SaveLoadList(t *testing.T) {
	ts := store.NewTokenFileStore(t.TempDir())
	a := domain.TokenSecret{Identity: domain.TokenIdentity{TokenID: domain.TokenID{2}, PublicKey: domain.X25519Public{9}, Certificate: []byte("c")}, Private: domain.X25519Private{7}}
	b := domain.TokenSecret{Identity: domain.TokenIdentity{TokenID: domain.TokenID{1}}, Private: domain.X25519Private{8}}
	for _, s := range []domain.TokenSecret{a, b} {
		if err := ts.SaveToken("pw", s); err != nil {
			t.Fatalf("SaveToken: %v", err)
		}
	}
	if err := ts.SaveToken("pw", a); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	got, err := ts.LoadToken("pw", a.Identity.TokenID)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.Private != a.Private || got.Identity.PublicKey != a.Identity.PublicKey {
		t.Fatalf("token mismatch")
	}
	list, err := ts.ListTokens()
	if err != nil {
		t.Fatalf("ListTokens: %v", err)
	}
	if len(list) != 2 || list[0].TokenID != b.Identity.TokenID {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestTokens_SecretEnvelopeUsesArgon2id(t *testing.T) {
	dir := t.TempDir()
	ts := store.NewTokenFileStore(dir)
	sec := domain.TokenSecret{Identity: domain.TokenIdentity{TokenID: domain.TokenID{5}}, Private: domain.X25519Private{6}}
	if err := ts.SaveToken("pw", sec); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "tokens", sec.Identity.TokenID.String()+".json.enc"))
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env["kdf"] != "argon2id" {
		t.Fatalf("token envelope kdf = %v", env["kdf"])
	}
	if _, err := ts.LoadToken("other", sec.Identity.TokenID); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func TestIssuer_PublicReadableWithoutPassphrase(t *testing.T) {
	ts := store.NewTokenFileStore(t.TempDir())
	if _, ok, err := ts.IssuerPublic(); ok || err != nil {
		t.Fatalf("want no issuer, got %v %v", ok, err)
	}
	issuer := domain.IssuerKey{Public: domain.Ed25519Public{5}, Private: domain.Ed25519Private{6}}
	if err := ts.SaveIssuer("pw", issuer); err != nil {
		t.Fatalf("SaveIssuer: %v", err)
	}
	pub, ok, err := ts.IssuerPublic()
	if err != nil || !ok || pub != issuer.Public {
		t.Fatalf("IssuerPublic: %v %v %v", pub, ok, err)
	}
	got, err := ts.LoadIssuer("pw")
	if err != nil || got != issuer {
		t.Fatalf("LoadIssuer: %v", err)
	}
}

func TestShares_WriteOnce(t *testing.T) {
	tok := domain.TokenID{1}
	ss := store.NewShareFileStore(t.TempDir(), tok)
	rec := domain.ShareRecord{MomentID: domain.MomentID{3}, TokenID: tok, Sealed: domain.Sealed{Nonce: []byte{1}, Ciphertext: []byte{2}}}
	if err := ss.PutShare(rec); err != nil {
		t.Fatalf("PutShare: %v", err)
	}
	if err := ss.PutShare(rec); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	got, ok, err := ss.GetShare(rec.MomentID)
	if err != nil || !ok || string(got.Sealed.Ciphertext) != "\x02" {
		t.Fatalf("GetShare: %+v %v %v", got, ok, err)
	}
	if _, ok, _ := ss.GetShare(domain.MomentID{4}); ok {
		t.Fatalf("unexpected share")
	}
	if err := ss.PutShare(domain.ShareRecord{MomentID: domain.MomentID{5}, TokenID: domain.TokenID{2}}); err == nil {
		t.Fatalf("stored a share for another token")
	}
}

func TestMoments_RecordAndAppendOnlyArtifacts(t *testing.T) {
	ms := store.NewMomentFileStore(t.TempDir())
	rec := domain.MomentRecord{
		MomentID: domain.MomentID{1},
		Session:  domain.Session{CoarseTimestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Participants: []domain.TokenID{{1}, {2}}},
		Policy:   domain.Policy{Mode: domain.PolicyThreshold, Threshold: 2, Total: 2},
	}
	if err := ms.SaveMoment(rec); err != nil {
		t.Fatalf("SaveMoment: %v", err)
	}
	if err := ms.SaveMoment(rec); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	got, ok, err := ms.LoadMoment(rec.MomentID)
	if err != nil || !ok || got.Policy != rec.Policy || !got.Session.CoarseTimestamp.Equal(rec.Session.CoarseTimestamp) {
		t.Fatalf("LoadMoment: %+v %v %v", got, ok, err)
	}

	a := domain.EncryptedArtifact{MomentID: rec.MomentID, ArtifactID: "a", Type: domain.ArtifactNote, Sequence: 1}
	if err := ms.AppendArtifact(a); err != nil {
		t.Fatalf("AppendArtifact: %v", err)
	}
	dup := a
	dup.ArtifactID = "b"
	if err := ms.AppendArtifact(dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists for reused sequence, got %v", err)
	}
	dup.Sequence = 2
	if err := ms.AppendArtifact(dup); err != nil {
		t.Fatalf("AppendArtifact: %v", err)
	}
	list, err := ms.ListArtifacts(rec.MomentID)
	if err != nil || len(list) != 2 || list[1].ArtifactID != "b" {
		t.Fatalf("ListArtifacts: %+v %v", list, err)
	}
	all, err := ms.ListMoments()
	if err != nil || len(all) != 1 {
		t.Fatalf("ListMoments: %v %v", all, err)
	}
}
