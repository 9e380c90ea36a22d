package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

const idFilename = "identity.json.enc"

// IdentityFileStore persists the coordinator identity to disk.
type IdentityFileStore struct {
	dir string
	kdf kdfParams
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, kdf: defaultKDF}
}

// SaveIdentity writes the encrypted identity. An existing identity is
// never replaced.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.CoordinatorIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, idFilename)
	if ok, err := exists(path); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("identity: %w", domain.ErrAlreadyExists)
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	ct, err := seal("identity", passphrase, raw, s.kdf)
	if err != nil {
		return err
	}
	return writeFile(path, ct, secretMode)
}

// LoadIdentity reads and decrypts the identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.CoordinatorIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(filepath.Join(s.dir, idFilename))
	if err != nil {
		return domain.CoordinatorIdentity{}, err
	}
	if b == nil {
		return domain.CoordinatorIdentity{}, fmt.Errorf("identity: %w", domain.ErrNotFound)
	}
	pt, err := open("identity", passphrase, b)
	if err != nil {
		return domain.CoordinatorIdentity{}, err
	}
	defer memzero.Zero(pt)
	var id domain.CoordinatorIdentity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.CoordinatorIdentity{}, err
	}
	return id, nil
}

var _ domain.IdentityStore = (*IdentityFileStore)(nil)
