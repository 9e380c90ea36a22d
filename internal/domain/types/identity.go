package types

// TokenIdentity is the public identity issued to a presence token at
// provisioning. Immutable afterwards and shared freely.
type TokenIdentity struct {
	TokenID     TokenID      `json:"token_id"`
	PublicKey   X25519Public `json:"public_key"`
	Certificate []byte       `json:"certificate"`
}

// TokenSecret is what a token keeps in its secure element. Only the token
// package and the token store ever see Private.
type TokenSecret struct {
	Identity TokenIdentity `json:"identity"`
	Private  X25519Private `json:"private"`
}

// CoordinatorIdentity holds the coordinator host's long-term keys.
type CoordinatorIdentity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// IssuerKey is the provisioning authority that certifies token identities.
type IssuerKey struct {
	Public  Ed25519Public  `json:"public"`
	Private Ed25519Private `json:"private"`
}
