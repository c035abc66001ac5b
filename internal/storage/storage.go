package storage

import (
	"context"
	"errors"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
)

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrFolderNotFound = errors.New("folder not found")
)

// RootFolder is the ListFiles filter for files not placed in any folder.
const RootFolder = "root"

// Registry is the contract for the file and folder metadata store.
type Registry interface {
	// SaveFile upserts a file. A set FolderID must name a folder of the same
	// user, otherwise ErrFolderNotFound.
	SaveFile(ctx context.Context, file models.FileMetadata) error
	GetFile(ctx context.Context, fileID string) (models.FileMetadata, error)
	// ListFiles returns the user's files, newest first. A non-empty folderID
	// restricts the result to that folder; RootFolder selects files outside
	// any folder.
	ListFiles(ctx context.Context, userID, folderID string) ([]models.FileMetadata, error)
	DeleteFile(ctx context.Context, fileID, userID string) error
	UpdateScanStatus(ctx context.Context, fileID, status string, scannedAt time.Time) error
	Stats(ctx context.Context, userID string) (models.UserFileStats, error)

	CreateFolder(ctx context.Context, folder models.Folder) error
	GetFolder(ctx context.Context, folderID string) (models.Folder, error)
	ListFolders(ctx context.Context, userID string) ([]models.Folder, error)
	// DeleteFolder removes the folder and every file in it, returning the
	// removed files so their objects can be cleaned up.
	DeleteFolder(ctx context.Context, folderID, userID string) ([]models.FileMetadata, error)
	// DeleteAllForUser drops every file and folder of a user.
	DeleteAllForUser(ctx context.Context, userID string) ([]models.FileMetadata, error)
}

// linkRecord is the serialized form of a share link. Unlike the API model it
// keeps FileRef.
type linkRecord struct {
	Token         string    `json:"token"`
	FileRef       string    `json:"file_ref"`
	FileID        string    `json:"file_id"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	OwnerID       string    `json:"owner_id"`
	OwnerEmail    string    `json:"owner_email,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	ExpiryType    string    `json:"expiry_type"`
	AccessLevel   string    `json:"access_level"`
	IsActive      bool      `json:"is_active"`
	DownloadCount int64     `json:"download_count"`
}

func toRecord(l models.ShareLink) linkRecord {
	return linkRecord{
		Token:         l.Token,
		FileRef:       l.FileRef,
		FileID:        l.FileID,
		FileName:      l.FileName,
		FileSize:      l.FileSize,
		OwnerID:       l.OwnerID,
		OwnerEmail:    l.OwnerEmail,
		IssuedAt:      l.IssuedAt,
		ExpiresAt:     l.ExpiresAt,
		ExpiryType:    string(l.ExpiryType),
		AccessLevel:   string(l.AccessLevel),
		IsActive:      l.IsActive,
		DownloadCount: l.DownloadCount,
	}
}

func (r linkRecord) link() models.ShareLink {
	return models.ShareLink{
		Token:         r.Token,
		FileRef:       r.FileRef,
		FileID:        r.FileID,
		FileName:      r.FileName,
		FileSize:      r.FileSize,
		OwnerID:       r.OwnerID,
		OwnerEmail:    r.OwnerEmail,
		IssuedAt:      r.IssuedAt,
		ExpiresAt:     r.ExpiresAt,
		ExpiryType:    models.ExpiryType(r.ExpiryType),
		AccessLevel:   models.AccessLevel(r.AccessLevel),
		IsActive:      r.IsActive,
		DownloadCount: r.DownloadCount,
	}
}
