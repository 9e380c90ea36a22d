package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"momentkey/internal/domain"
)

// NonceSize is the XChaCha20-Poly1305 nonce size. Nonces are random.
const NonceSize = chacha20poly1305.NonceSizeX

// Seal encrypts plaintext under key, authenticating ad, with a fresh random nonce.
func Seal(key, plaintext, ad []byte) (ciphertext, nonce []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aead key: %w", err)
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return aead.Seal(nil, nonce, plaintext, ad), nonce, nil
}

// Open decrypts ciphertext. Any failure, including a malformed key or nonce,
// is reported as domain.ErrAuthentication.
func Open(key, ciphertext, nonce, ad []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, domain.ErrAuthentication
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, domain.ErrAuthentication
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, domain.ErrAuthentication
	}
	return pt, nil
}

// SealBox is Seal returning a domain.Sealed.
func SealBox(key, plaintext, ad []byte) (domain.Sealed, error) {
	ct, nonce, err := Seal(key, plaintext, ad)
	if err != nil {
		return domain.Sealed{}, err
	}
	return domain.Sealed{Nonce: nonce, Ciphertext: ct}, nil
}

// OpenBox is Open over a domain.Sealed.
func OpenBox(key []byte, box domain.Sealed, ad []byte) ([]byte, error) {
	return Open(key, box.Ciphertext, box.Nonce, ad)
}
