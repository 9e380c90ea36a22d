package crypto_test

import (
	"bytes"
	"testing"

	"momentkey/internal/crypto"
)

func TestDerive_DeterministicAndSeparated(t *testing.T) {
	secret := []byte("input keying material")
	a := crypto.Derive(secret, "GMS", []byte("ctx"))
	b := crypto.Derive(secret, "GMS", []byte("ctx"))
	if !bytes.Equal(a, b) {
		t.Fatalf("Derive not deterministic")
	}
	if bytes.Equal(a, crypto.Derive(secret, "MomentKey", []byte("ctx"))) {
		t.Fatalf("labels not separated")
	}
	if bytes.Equal(a, crypto.Derive(secret, "GMS", []byte("ctx2"))) {
		t.Fatalf("extra context ignored")
	}
	if len(a) != crypto.KeySize {
		t.Fatalf("want %d bytes, got %d", crypto.KeySize, len(a))
	}
}

func TestHash_FramingIsUnambiguous(t *testing.T) {
	h1 := crypto.Hash("L", []byte("ab"), []byte("c"))
	h2 := crypto.Hash("L", []byte("a"), []byte("bc"))
	if h1 == h2 {
		t.Fatalf("length framing missing")
	}
	if crypto.Hash("L", []byte("x")) == crypto.Hash("M", []byte("x")) {
		t.Fatalf("label ignored")
	}
}

func TestMAC_Verify(t *testing.T) {
	key := []byte("k")
	tag := crypto.MAC(key, "token-confirm", []byte("th"))
	if !crypto.VerifyMAC(key, tag, "token-confirm", []byte("th")) {
		t.Fatalf("valid tag rejected")
	}
	if crypto.VerifyMAC(key, tag, "token-confirm", []byte("tx")) {
		t.Fatalf("tag accepted for other message")
	}
}
