// Package crypto is the primitives layer used by momentkey. It is the trust
// boundary for all math and holds no device state.
//
// Contents
//
//   - X25519 key generation and agreement with low-order and non-canonical
//     point rejection (GenerateX25519, Agree)
//   - Opaque long-term key handles (KeyHandle, NewSoftwareKeyHandle)
//   - HKDF-SHA256 derivation with label domain separation (Derive), length
//     prefixed hashing (Hash) and HMAC tags (MAC, VerifyMAC)
//   - XChaCha20-Poly1305 AEAD with fresh random nonces (Seal, Open)
//   - Shamir secret sharing over Mersenne prime fields (Split, Combine)
//   - Ed25519 signing and token certificates
//   - Pseudonyms, fingerprints and BIP-39 safety words for display
//
// # Notes
//
// All functions are pure and safe for concurrent use. Returned secrets are
// plain byte slices; callers own them and must wipe them with memzero when
// done.
package crypto
