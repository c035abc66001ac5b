package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
)

// LocalLinkStore keeps links in memory and, when path is set, mirrors them to
// a JSON file after every mutation.
type LocalLinkStore struct {
	path  string
	mu    sync.RWMutex
	links map[string]linkRecord
}

// NewMemoryLinkStore returns a store that never touches disk.
func NewMemoryLinkStore() *LocalLinkStore {
	return &LocalLinkStore{links: make(map[string]linkRecord)}
}

// OpenLocalLinkStore loads links from path if the file exists, creating the
// parent directory when missing.
func OpenLocalLinkStore(path string) (*LocalLinkStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create link directory: %w", err)
	}
	s := &LocalLinkStore{path: path, links: make(map[string]linkRecord)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read link file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.links); err != nil {
		return nil, fmt.Errorf("failed to parse link file: %w", err)
	}
	return s, nil
}

func (s *LocalLinkStore) Insert(_ context.Context, link models.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Token]; exists {
		return sharing.ErrTokenCollision
	}
	s.links[link.Token] = toRecord(link)

	if err := s.saveLocked(); err != nil {
		delete(s.links, link.Token)
		return err
	}
	return nil
}

func (s *LocalLinkStore) Get(_ context.Context, token string) (models.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.links[token]
	if !ok {
		return models.ShareLink{}, sharing.ErrLinkNotFound
	}
	return rec.link(), nil
}

func (s *LocalLinkStore) IncrementDownloads(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.links[token]
	if !ok {
		return 0, sharing.ErrLinkNotFound
	}
	rec.DownloadCount++
	s.links[token] = rec

	if err := s.saveLocked(); err != nil {
		rec.DownloadCount--
		s.links[token] = rec
		return 0, err
	}
	return rec.DownloadCount, nil
}

func (s *LocalLinkStore) Deactivate(_ context.Context, token, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.links[token]
	if !ok || rec.OwnerID != ownerID {
		return sharing.ErrLinkNotFound
	}
	if !rec.IsActive {
		return nil
	}
	rec.IsActive = false
	s.links[token] = rec

	if err := s.saveLocked(); err != nil {
		rec.IsActive = true
		s.links[token] = rec
		return err
	}
	return nil
}

func (s *LocalLinkStore) ListByOwner(_ context.Context, ownerID string) ([]models.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []models.ShareLink
	for _, rec := range s.links {
		if rec.OwnerID == ownerID {
			links = append(links, rec.link())
		}
	}
	sortByIssuedDesc(links)
	return links, nil
}

func (s *LocalLinkStore) DeactivateAllForOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for token, rec := range s.links {
		if rec.OwnerID == ownerID && rec.IsActive {
			rec.IsActive = false
			s.links[token] = rec
			changed = append(changed, token)
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}

	if err := s.saveLocked(); err != nil {
		for _, token := range changed {
			rec := s.links[token]
			rec.IsActive = true
			s.links[token] = rec
		}
		return 0, err
	}
	return len(changed), nil
}

// saveLocked writes the whole map through a temp file and rename. Callers
// hold the write lock.
func (s *LocalLinkStore) saveLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.links, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write link file: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		return fmt.Errorf("failed to rename link file: %w", err)
	}
	return nil
}
