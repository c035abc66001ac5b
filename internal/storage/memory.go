package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
)

// MemoryRegistry is an in-process Registry used for local runs and tests.
type MemoryRegistry struct {
	mu      sync.RWMutex
	files   map[string]models.FileMetadata
	folders map[string]models.Folder
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		files:   make(map[string]models.FileMetadata),
		folders: make(map[string]models.Folder),
	}
}

func (m *MemoryRegistry) SaveFile(_ context.Context, file models.FileMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if file.FolderID != nil {
		folder, ok := m.folders[*file.FolderID]
		if !ok || folder.UserID != file.UserID {
			return ErrFolderNotFound
		}
	}
	if file.ScanStatus == "" {
		file.ScanStatus = models.ScanPending
	}
	m.files[file.ID] = file
	return nil
}

func (m *MemoryRegistry) GetFile(_ context.Context, fileID string) (models.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[fileID]
	if !ok {
		return models.FileMetadata{}, ErrFileNotFound
	}
	return file, nil
}

func (m *MemoryRegistry) ListFiles(_ context.Context, userID, folderID string) ([]models.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]models.FileMetadata, 0)
	for _, f := range m.files {
		if f.UserID != userID {
			continue
		}
		switch {
		case folderID == RootFolder:
			if f.FolderID != nil {
				continue
			}
		case folderID != "" && !f.InFolder(folderID):
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	return files, nil
}

func (m *MemoryRegistry) DeleteFile(_ context.Context, fileID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[fileID]
	if !ok || file.UserID != userID {
		return ErrFileNotFound
	}
	delete(m.files, fileID)
	return nil
}

func (m *MemoryRegistry) UpdateScanStatus(_ context.Context, fileID, status string, scannedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	file.ScanStatus = status
	file.ScannedAt = &scannedAt
	m.files[fileID] = file
	return nil
}

func (m *MemoryRegistry) Stats(_ context.Context, userID string) (models.UserFileStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats models.UserFileStats
	for _, f := range m.files {
		if f.UserID == userID {
			stats.FileCount++
			stats.TotalBytes += f.Size
		}
	}
	for _, f := range m.folders {
		if f.UserID == userID {
			stats.FolderCount++
		}
	}
	return stats, nil
}

func (m *MemoryRegistry) CreateFolder(_ context.Context, folder models.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[folder.ID] = folder
	return nil
}

func (m *MemoryRegistry) GetFolder(_ context.Context, folderID string) (models.Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	folder, ok := m.folders[folderID]
	if !ok {
		return models.Folder{}, ErrFolderNotFound
	}
	return folder, nil
}

func (m *MemoryRegistry) ListFolders(_ context.Context, userID string) ([]models.Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	folders := make([]models.Folder, 0)
	for _, f := range m.folders {
		if f.UserID == userID {
			folders = append(folders, f)
		}
	}
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].CreatedAt.Before(folders[j].CreatedAt)
	})
	return folders, nil
}

func (m *MemoryRegistry) DeleteFolder(_ context.Context, folderID, userID string) ([]models.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	folder, ok := m.folders[folderID]
	if !ok || folder.UserID != userID {
		return nil, ErrFolderNotFound
	}

	var removed []models.FileMetadata
	for id, f := range m.files {
		if f.InFolder(folderID) {
			removed = append(removed, f)
			delete(m.files, id)
		}
	}
	delete(m.folders, folderID)
	return removed, nil
}

func (m *MemoryRegistry) DeleteAllForUser(_ context.Context, userID string) ([]models.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []models.FileMetadata
	for id, f := range m.files {
		if f.UserID == userID {
			removed = append(removed, f)
			delete(m.files, id)
		}
	}
	for id, f := range m.folders {
		if f.UserID == userID {
			delete(m.folders, id)
		}
	}
	return removed, nil
}
