package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"momentkey/internal/domain"
)

const (
	momentsDir        = "moments"
	momentFilename    = "moment.json"
	artifactsFilename = "artifacts.json"
)

// MomentFileStore persists public moment records and their encrypted
// artifacts.
type MomentFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewMomentFileStore returns a MomentFileStore rooted at dir.
func NewMomentFileStore(dir string) *MomentFileStore {
	return &MomentFileStore{dir: filepath.Join(dir, momentsDir)}
}

// SaveMoment writes a record once.
func (s *MomentFileStore) SaveMoment(rec domain.MomentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, rec.MomentID.String(), momentFilename)
	if ok, err := exists(path); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("moment %s: %w", rec.MomentID, domain.ErrAlreadyExists)
	}
	return writeJSON(path, rec, publicMode)
}

// LoadMoment reads a record.
func (s *MomentFileStore) LoadMoment(id domain.MomentID) (domain.MomentRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec domain.MomentRecord
	found, err := readJSON(filepath.Join(s.dir, id.String(), momentFilename), &rec)
	return rec, found, err
}

// ListMoments returns every record, ordered by timestamp then id.
func (s *MomentFileStore) ListMoments() ([]domain.MomentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []domain.MomentRecord
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var rec domain.MomentRecord
		found, err := readJSON(filepath.Join(s.dir, e.Name(), momentFilename), &rec)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Session.CoarseTimestamp, out[j].Session.CoarseTimestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].MomentID.String() < out[j].MomentID.String()
	})
	return out, nil
}

// AppendArtifact adds a to its moment's list. Artifacts are never modified;
// a duplicate id or sequence number fails with domain.ErrAlreadyExists.
func (s *MomentFileStore) AppendArtifact(a domain.EncryptedArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, a.MomentID.String(), artifactsFilename)
	var list []domain.EncryptedArtifact
	if _, err := readJSON(path, &list); err != nil {
		return err
	}
	for _, prev := range list {
		if prev.ArtifactID == a.ArtifactID || prev.Sequence == a.Sequence {
			return fmt.Errorf("artifact %s/%d: %w", a.ArtifactID, a.Sequence, domain.ErrAlreadyExists)
		}
	}
	return writeJSON(path, append(list, a), publicMode)
}

// ListArtifacts returns a moment's artifacts in append order.
func (s *MomentFileStore) ListArtifacts(id domain.MomentID) ([]domain.EncryptedArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []domain.EncryptedArtifact
	_, err := readJSON(filepath.Join(s.dir, id.String(), artifactsFilename), &list)
	return list, err
}

var (
	_ domain.MomentStore   = (*MomentFileStore)(nil)
	_ domain.ArtifactStore = (*MomentFileStore)(nil)
)
