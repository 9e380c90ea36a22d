package identity

import (
	"crypto/rand"
	"fmt"
	"unicode"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service manages key creation and access using the backing stores.
//
// The coordinator identity contains:
//   - X25519 key pair for the per-pair session secrets.
//   - Ed25519 key pair for signing.
type Service struct {
	ids    domain.IdentityStore
	tokens domain.TokenStore
}

// New returns an identity service backed by the given stores.
func New(ids domain.IdentityStore, tokens domain.TokenStore) *Service {
	return &Service{ids: ids, tokens: tokens}
}

// GenerateIdentity creates the coordinator identity, saves it encrypted with
// the passphrase, and returns it with a short fingerprint of the X25519 key.
func (s *Service) GenerateIdentity(passphrase string) (domain.CoordinatorIdentity, string, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.CoordinatorIdentity{}, "", ErrWeakPassphrase
	}
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.CoordinatorIdentity{}, "", err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.CoordinatorIdentity{}, "", err
	}
	id := domain.CoordinatorIdentity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
	if err := s.ids.SaveIdentity(passphrase, id); err != nil {
		return domain.CoordinatorIdentity{}, "", err
	}
	return id, crypto.Fingerprint(id.XPub.Slice()), nil
}

// LoadIdentity decrypts and returns the coordinator identity.
func (s *Service) LoadIdentity(passphrase string) (domain.CoordinatorIdentity, error) {
	return s.ids.LoadIdentity(passphrase)
}

// FingerprintIdentity returns a short fingerprint of the coordinator's X25519 key.
func (s *Service) FingerprintIdentity(passphrase string) (string, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(id.XPriv[:])
	defer memzero.Zero(id.EdPriv[:])
	return crypto.Fingerprint(id.XPub.Slice()), nil
}

// KeyHandle unlocks the coordinator identity as a key handle. The private
// halves of the loaded identity are wiped before it returns.
func (s *Service) KeyHandle(passphrase string) (crypto.KeyHandle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return handleFor(&id)
}

func handleFor(id *domain.CoordinatorIdentity) (crypto.KeyHandle, error) {
	defer memzero.Zero(id.XPriv[:])
	defer memzero.Zero(id.EdPriv[:])
	return crypto.NewSoftwareKeyHandle(id.XPriv)
}

// CreateIssuer generates the provisioning issuer key.
func (s *Service) CreateIssuer(passphrase string) (domain.Ed25519Public, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Ed25519Public{}, ErrWeakPassphrase
	}
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Ed25519Public{}, err
	}
	defer memzero.Zero(priv[:])
	if err := s.tokens.SaveIssuer(passphrase, domain.IssuerKey{Public: pub, Private: priv}); err != nil {
		return domain.Ed25519Public{}, err
	}
	return pub, nil
}

// ProvisionToken issues a new token identity: a random 128-bit id, a fresh
// X25519 key and the issuer's certificate over both. The secret is stored
// under tokenPassphrase.
func (s *Service) ProvisionToken(issuerPassphrase, tokenPassphrase string) (domain.TokenIdentity, error) {
	if !isSecurePassphrase(tokenPassphrase) {
		return domain.TokenIdentity{}, ErrWeakPassphrase
	}
	issuer, err := s.tokens.LoadIssuer(issuerPassphrase)
	if err != nil {
		return domain.TokenIdentity{}, err
	}
	defer memzero.Zero(issuer.Private[:])

	var id domain.TokenID
	if _, err := rand.Read(id[:]); err != nil {
		return domain.TokenIdentity{}, err
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.TokenIdentity{}, err
	}
	secret := domain.TokenSecret{
		Identity: domain.TokenIdentity{
			TokenID:     id,
			PublicKey:   pub,
			Certificate: crypto.IssueCertificate(issuer.Private, id, pub),
		},
		Private: priv,
	}
	defer memzero.Zero(secret.Private[:])
	memzero.Zero(priv[:])
	if err := s.tokens.SaveToken(tokenPassphrase, secret); err != nil {
		return domain.TokenIdentity{}, err
	}
	return secret.Identity, nil
}

// Tokens lists provisioned token identities.
func (s *Service) Tokens() ([]domain.TokenIdentity, error) { return s.tokens.ListTokens() }

// IssuerPublic returns the issuer public key used to verify announcements.
func (s *Service) IssuerPublic() (domain.Ed25519Public, error) {
	pub, ok, err := s.tokens.IssuerPublic()
	if err != nil {
		return domain.Ed25519Public{}, err
	}
	if !ok {
		return domain.Ed25519Public{}, fmt.Errorf("issuer: %w", domain.ErrNotFound)
	}
	return pub, nil
}

// FingerprintIssuer returns a short fingerprint of the issuer public key, the
// trust anchor every token certificate chains to.
func (s *Service) FingerprintIssuer() (string, error) {
	pub, err := s.IssuerPublic()
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pub[:]), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
