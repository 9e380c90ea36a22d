package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

const (
	tokensDir         = "tokens"
	issuerFilename    = "issuer.json.enc"
	issuerPubFilename = "issuer.pub.json"
)

// TokenFileStore stands in for the secure elements of tokens simulated on
// this host. Each token's secret lives in its own passphrase envelope next
// to a public identity file used for listing.
type TokenFileStore struct {
	dir     string
	kdf     kdfParams // issuer
	element kdfParams // token secrets
	mu      sync.Mutex
}

// NewTokenFileStore returns a TokenFileStore rooted at dir.
func NewTokenFileStore(dir string) *TokenFileStore {
	return &TokenFileStore{dir: dir, kdf: defaultKDF, element: tokenKDF}
}

// SaveToken stores a provisioned token. Token ids are never reused.
func (s *TokenFileStore) SaveToken(passphrase string, secret domain.TokenSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := filepath.Join(s.dir, tokensDir, secret.Identity.TokenID.String())
	if ok, err := exists(base + ".pub.json"); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("token %s: %w", secret.Identity.TokenID, domain.ErrAlreadyExists)
	}
	raw, err := json.Marshal(secret)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	ct, err := seal("token", passphrase, raw, s.element)
	if err != nil {
		return err
	}
	if err := writeFile(base+".json.enc", ct, secretMode); err != nil {
		return err
	}
	return writeJSON(base+".pub.json", secret.Identity, publicMode)
}

// LoadToken decrypts a token's secret.
func (s *TokenFileStore) LoadToken(passphrase string, id domain.TokenID) (domain.TokenSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(filepath.Join(s.dir, tokensDir, id.String()+".json.enc"))
	if err != nil {
		return domain.TokenSecret{}, err
	}
	if b == nil {
		return domain.TokenSecret{}, fmt.Errorf("token %s: %w", id, domain.ErrNotFound)
	}
	pt, err := open("token", passphrase, b)
	if err != nil {
		return domain.TokenSecret{}, err
	}
	defer memzero.Zero(pt)
	var secret domain.TokenSecret
	if err := json.Unmarshal(pt, &secret); err != nil {
		return domain.TokenSecret{}, err
	}
	return secret, nil
}

// ListTokens returns every provisioned public identity, sorted by id.
func (s *TokenFileStore) ListTokens() ([]domain.TokenIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, tokensDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []domain.TokenIdentity
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".pub.json") {
			continue
		}
		var id domain.TokenIdentity
		if _, err := readJSON(filepath.Join(s.dir, tokensDir, e.Name()), &id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID.String() < out[j].TokenID.String() })
	return out, nil
}

// SaveIssuer stores the provisioning issuer once.
func (s *TokenFileStore) SaveIssuer(passphrase string, issuer domain.IssuerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, issuerFilename)
	if ok, err := exists(path); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("issuer: %w", domain.ErrAlreadyExists)
	}
	raw, err := json.Marshal(issuer)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	ct, err := seal("issuer", passphrase, raw, s.kdf)
	if err != nil {
		return err
	}
	if err := writeFile(path, ct, secretMode); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.dir, issuerPubFilename), issuer.Public, publicMode)
}

// LoadIssuer decrypts the issuer key.
func (s *TokenFileStore) LoadIssuer(passphrase string) (domain.IssuerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(filepath.Join(s.dir, issuerFilename))
	if err != nil {
		return domain.IssuerKey{}, err
	}
	if b == nil {
		return domain.IssuerKey{}, fmt.Errorf("issuer: %w", domain.ErrNotFound)
	}
	pt, err := open("issuer", passphrase, b)
	if err != nil {
		return domain.IssuerKey{}, err
	}
	defer memzero.Zero(pt)
	var k domain.IssuerKey
	if err := json.Unmarshal(pt, &k); err != nil {
		return domain.IssuerKey{}, err
	}
	return k, nil
}

// IssuerPublic returns the issuer public key without a passphrase.
func (s *TokenFileStore) IssuerPublic() (domain.Ed25519Public, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pub domain.Ed25519Public
	found, err := readJSON(filepath.Join(s.dir, issuerPubFilename), &pub)
	return pub, found, err
}

var _ domain.TokenStore = (*TokenFileStore)(nil)
