// Package identity manages creation, encryption and loading of long-term
// keys: the coordinator identity, the provisioning issuer, and the token
// identities it certifies.
//
// It enforces passphrase policy, generates X25519 and Ed25519 key pairs, and
// persists them via the domain stores. Token provisioning is a one-time
// issuance producing {token_id, public_key, certificate}.
package identity
