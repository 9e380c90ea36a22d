package interfaces

import domaintypes "momentkey/internal/domain/types"

// IdentityStore persists the coordinator's long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.CoordinatorIdentity) error
	LoadIdentity(passphrase string) (domaintypes.CoordinatorIdentity, error)
}

// TokenStore stands in for the tokens' secure elements when tokens are
// simulated on the host, plus the provisioning issuer key.
type TokenStore interface {
	SaveToken(passphrase string, secret domaintypes.TokenSecret) error
	LoadToken(passphrase string, id domaintypes.TokenID) (domaintypes.TokenSecret, error)
	ListTokens() ([]domaintypes.TokenIdentity, error)

	SaveIssuer(passphrase string, issuer domaintypes.IssuerKey) error
	LoadIssuer(passphrase string) (domaintypes.IssuerKey, error)
	IssuerPublic() (domaintypes.Ed25519Public, bool, error)
}

// ShareStore holds one token's encrypted shares: at most one per moment,
// never overwritten.
type ShareStore interface {
	PutShare(rec domaintypes.ShareRecord) error
	GetShare(id domaintypes.MomentID) (domaintypes.ShareRecord, bool, error)
}

// ArtifactStore is the append-only list of encrypted artifacts per moment.
type ArtifactStore interface {
	AppendArtifact(a domaintypes.EncryptedArtifact) error
	ListArtifacts(id domaintypes.MomentID) ([]domaintypes.EncryptedArtifact, error)
}

// MomentStore persists public moment metadata. Records are created once.
type MomentStore interface {
	SaveMoment(rec domaintypes.MomentRecord) error
	LoadMoment(id domaintypes.MomentID) (domaintypes.MomentRecord, bool, error)
	ListMoments() ([]domaintypes.MomentRecord, error)
}
