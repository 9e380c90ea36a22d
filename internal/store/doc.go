// Package store provides file-based persistence for momentkey.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking and every write goes through a temp file and rename.
// Stored files live under the configured home directory:
//
//	identity.json.enc                      coordinator keys (passphrase envelope)
//	issuer.json.enc, issuer.pub.json       provisioning issuer
//	tokens/<token>.json.enc, .pub.json     simulated secure elements (argon2id)
//	shares/<token>/<moment>.json           encrypted shares, one per moment
//	moments/<moment>/moment.json           public moment record
//	moments/<moment>/artifacts.json        append-only encrypted artifacts
//
// Nothing written here is a plaintext secret except inside a passphrase
// envelope.
package store
