package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"

	"momentkey/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// Pseudonym is the stable public alias of a token used wherever an identity
// would otherwise cross the privacy boundary.
func Pseudonym(id domain.TokenID, pub domain.X25519Public) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("MK-PSEUDONYM"))
	h.Write(id[:])
	h.Write(pub[:])
	enc := base58.Encode(h.Sum(nil))
	return "mk1" + enc[:20]
}
