package models

import (
	"time"
)

// Scan states recorded on a file after the antivirus pass.
const (
	ScanPending  = "pending"
	ScanClean    = "clean"
	ScanInfected = "infected"
)

// FileMetadata is one stored object owned by a user. ObjectName is the locator
// handed out by object storage; nothing outside the storage adapters interprets it.
type FileMetadata struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	OriginalName string     `json:"original_name" db:"original_name"`
	Size         int64      `json:"size" db:"size"`
	Type         string     `json:"type" db:"type"`
	Extension    string     `json:"extension" db:"extension"`
	ContentType  string     `json:"content_type" db:"content_type"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
	ObjectName   string     `json:"-" db:"object_name"`
	UserID       string     `json:"user_id" db:"user_id"`
	FolderID     *string    `json:"folder_id,omitempty" db:"folder_id"`
	ScanStatus   string     `json:"scan_status" db:"scan_status"`
	ScannedAt    *time.Time `json:"scanned_at,omitempty" db:"scanned_at"`
}

// InFolder reports whether the file belongs to the given folder.
func (f FileMetadata) InFolder(folderID string) bool {
	return f.FolderID != nil && *f.FolderID == folderID
}

type UserFileStats struct {
	FileCount   int64 `json:"file_count" db:"file_count"`
	FolderCount int64 `json:"folder_count" db:"folder_count"`
	TotalBytes  int64 `json:"total_bytes" db:"total_bytes"`
}
