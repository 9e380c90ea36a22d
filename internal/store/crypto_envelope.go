package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"momentkey/internal/util/memzero"
)

const envelopeVersion = 1

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// envelope has been modified or swapped for one of another kind.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

// envelope is the on-disk JSON structure holding the ciphertext and KDF
// parameters.
type envelope struct {
	V      int    `json:"v"`
	Kind   string `json:"kind"`
	KDF    string `json:"kdf,omitempty"` // empty means scrypt
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N,omitempty"`
	R      int    `json:"scrypt_r,omitempty"`
	P      int    `json:"scrypt_p,omitempty"`
	Time   uint32 `json:"argon2_t,omitempty"`
	Memory uint32 `json:"argon2_m,omitempty"`
	Lanes  uint8  `json:"argon2_p,omitempty"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

const (
	kdfScrypt   = "scrypt"
	kdfArgon2id = "argon2id"
)

// kdfParams are the costs used for new envelopes. Name selects scrypt
// (N, R, P) or argon2id (Time, Memory in KiB, Lanes).
type kdfParams struct {
	Name         string
	N, R, P      int
	Time, Memory uint32
	Lanes        uint8
}

var (
	defaultKDF = kdfParams{Name: kdfScrypt, N: 1 << 15, R: 8, P: 1}
	// tokenKDF protects the simulated secure elements.
	tokenKDF = kdfParams{Name: kdfArgon2id, Time: 2, Memory: 64 * 1024, Lanes: 1}
)

func (kp kdfParams) derive(passphrase string, salt []byte) ([]byte, error) {
	switch kp.Name {
	case "", kdfScrypt:
		return scrypt.Key([]byte(passphrase), salt, kp.N, kp.R, kp.P, chacha20poly1305.KeySize)
	case kdfArgon2id:
		if kp.Time == 0 || kp.Memory == 0 || kp.Lanes == 0 {
			return nil, fmt.Errorf("argon2id: invalid parameters")
		}
		return argon2.IDKey([]byte(passphrase), salt, kp.Time, kp.Memory, kp.Lanes, chacha20poly1305.KeySize), nil
	default:
		return nil, fmt.Errorf("unsupported kdf %q", kp.Name)
	}
}

// seal derives a key from passphrase and seals raw. kind and salt are
// authenticated, so an identity envelope cannot stand in for a token one.
func seal(kind, passphrase string, raw []byte, kp kdfParams) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key, err := kp.derive(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, raw, envelopeAD(kind, salt))
	return json.Marshal(envelope{
		V: envelopeVersion, Kind: kind, KDF: kp.Name, Salt: salt,
		N: kp.N, R: kp.R, P: kp.P,
		Time: kp.Time, Memory: kp.Memory, Lanes: kp.Lanes,
		Nonce: nonce, Cipher: ct,
	})
}

// open reverses seal.
func open(kind, passphrase string, b []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	if env.V > envelopeVersion {
		return nil, fmt.Errorf("unsupported key file version %d", env.V)
	}
	if env.Kind != kind {
		return nil, ErrWrongPassphrase
	}
	kp := kdfParams{Name: env.KDF, N: env.N, R: env.R, P: env.P, Time: env.Time, Memory: env.Memory, Lanes: env.Lanes}
	key, err := kp.derive(passphrase, env.Salt)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	pt, err := aead.Open(nil, env.Nonce, env.Cipher, envelopeAD(kind, env.Salt))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func envelopeAD(kind string, salt []byte) []byte {
	return append([]byte("momentkey/"+kind+"/"), salt...)
}
