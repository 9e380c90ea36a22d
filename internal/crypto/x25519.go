package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pub, err = PublicFromPrivate(priv)
	return
}

// PublicFromPrivate returns the public key for priv.
func PublicFromPrivate(priv domain.X25519Private) (pub domain.X25519Public, err error) {
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], pb)
	return pub, nil
}

// Agree computes X25519 Diffie–Hellman.
//
// Non-canonical encodings and points whose shared output is all zero (the
// low-order points) fail with domain.ErrKeyAgreement.
func Agree(priv domain.X25519Private, remote domain.X25519Public) ([]byte, error) {
	defer memzero.Zero(priv[:])
	if !canonical(remote) {
		return nil, fmt.Errorf("%w: non-canonical public key", domain.ErrKeyAgreement)
	}
	secret, err := curve25519.X25519(priv[:], remote.Slice())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyAgreement, err)
	}
	return secret, nil
}

// canonical rejects u-coordinates with the high bit set or >= 2^255-19.
func canonical(pub domain.X25519Public) bool {
	if pub[31]&0x80 != 0 {
		return false
	}
	if pub[31] != 0x7f {
		return true
	}
	for i := 30; i >= 1; i-- {
		if pub[i] != 0xff {
			return true
		}
	}
	return pub[0] < 0xed
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
