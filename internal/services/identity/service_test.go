package identity_test

import (
	"errors"
	"testing"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/services/identity"
	"momentkey/internal/store"
)

const strong = "Correct-Horse-9"

func newService(t *testing.T) *identity.Service {
	t.Helper()
	home := t.TempDir()
	return identity.New(store.NewIdentityFileStore(home), store.NewTokenFileStore(home))
}

func TestGenerateIdentity_RejectsWeakPassphrase(t *testing.T) {
	s := newService(t)
	for _, p := range []string{"short1!A", "alllowercase-123", "NoDigitsHere!!", "NoSymbols1234"} {
		if _, _, err := s.GenerateIdentity(p); !errors.Is(err, identity.ErrWeakPassphrase) {
			t.Fatalf("%q: want ErrWeakPassphrase, got %v", p, err)
		}
	}
}

func TestGenerateIdentity_Fingerprint(t *testing.T) {
	s := newService(t)
	id, fp, err := s.GenerateIdentity(strong)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	got, err := s.FingerprintIdentity(strong)
	if err != nil || got != fp || fp != crypto.Fingerprint(id.XPub.Slice()) {
		t.Fatalf("fingerprint mismatch: %q %q %v", got, fp, err)
	}
}

func TestProvisionToken_CertifiedByIssuer(t *testing.T) {
	s := newService(t)
	pub, err := s.CreateIssuer(strong)
	if err != nil {
		t.Fatalf("CreateIssuer: %v", err)
	}
	tok, err := s.ProvisionToken(strong, strong)
	if err != nil {
		t.Fatalf("ProvisionToken: %v", err)
	}
	if !crypto.VerifyCertificate(pub, tok.TokenID, tok.PublicKey, tok.Certificate) {
		t.Fatalf("certificate does not verify")
	}
	other, err := s.ProvisionToken(strong, strong)
	if err != nil {
		t.Fatalf("ProvisionToken: %v", err)
	}
	if other.TokenID == tok.TokenID {
		t.Fatalf("token ids repeat")
	}
	list, err := s.Tokens()
	if err != nil || len(list) != 2 {
		t.Fatalf("Tokens: %v %v", list, err)
	}
	got, err := s.IssuerPublic()
	if err != nil || got != pub {
		t.Fatalf("IssuerPublic: %v", err)
	}
}

func TestProvisionToken_WrongIssuerPassphrase(t *testing.T) {
	s := newService(t)
	if _, err := s.CreateIssuer(strong); err != nil {
		t.Fatalf("CreateIssuer: %v", err)
	}
	if _, err := s.ProvisionToken("Wrong-Horse-99", strong); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func TestKeyHandleAndIssuerFingerprint(t *testing.T) {
	s := newService(t)
	if _, err := s.FingerprintIssuer(); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound before the issuer exists, got %v", err)
	}
	id, _, err := s.GenerateIdentity(strong)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	h, err := s.KeyHandle(strong)
	if err != nil {
		t.Fatalf("KeyHandle: %v", err)
	}
	defer h.Destroy()
	if h.Public() != id.XPub {
		t.Fatalf("handle does not hold the coordinator key")
	}
	if _, err := s.KeyHandle("Wrong-Horse-99"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}

	pub, err := s.CreateIssuer(strong)
	if err != nil {
		t.Fatalf("CreateIssuer: %v", err)
	}
	fp, err := s.FingerprintIssuer()
	if err != nil || fp != crypto.Fingerprint(pub[:]) {
		t.Fatalf("FingerprintIssuer: %q %v", fp, err)
	}
}
