package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"momentkey/internal/domain"
)

const sharesDir = "shares"

// ShareFileStore holds one token's encrypted shares. A moment's share is
// written once and never replaced.
type ShareFileStore struct {
	dir   string
	token domain.TokenID
	mu    sync.Mutex
}

// NewShareFileStore returns the share store of token under dir.
func NewShareFileStore(dir string, token domain.TokenID) *ShareFileStore {
	return &ShareFileStore{dir: filepath.Join(dir, sharesDir, token.String()), token: token}
}

// PutShare persists rec. A second share for the same moment fails with
// domain.ErrAlreadyExists.
func (s *ShareFileStore) PutShare(rec domain.ShareRecord) error {
	if rec.TokenID != s.token {
		return fmt.Errorf("share for token %s stored under %s", rec.TokenID, s.token)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(rec.MomentID)
	if ok, err := exists(path); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("share %s: %w", rec.MomentID, domain.ErrAlreadyExists)
	}
	return writeJSON(path, rec, secretMode)
}

// GetShare loads the share for a moment.
func (s *ShareFileStore) GetShare(id domain.MomentID) (domain.ShareRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec domain.ShareRecord
	found, err := readJSON(s.path(id), &rec)
	return rec, found, err
}

func (s *ShareFileStore) path(id domain.MomentID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

var _ domain.ShareStore = (*ShareFileStore)(nil)
