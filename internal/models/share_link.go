package models

import "time"

// AccessLevel scopes what a redeemed link allows.
type AccessLevel string

const (
	AccessDownload AccessLevel = "download"
	AccessViewOnly AccessLevel = "view-only"
)

// ExpiryType records which family of expiry selector produced a link.
type ExpiryType string

const (
	ExpiryPredefined ExpiryType = "predefined"
	ExpiryCustom     ExpiryType = "custom"
	ExpiryPermanent  ExpiryType = "permanent"
)

// ShareLink is a capability record: whoever holds Token may redeem it.
//
// FileRef, FileName and FileSize are captured at issuance so that renaming the
// file later does not affect the link. Only the redemption path mutates
// DownloadCount and only owner deactivation mutates IsActive.
type ShareLink struct {
	Token         string      `json:"token" db:"token"`
	FileRef       string      `json:"-" db:"file_ref"`
	FileID        string      `json:"file_id" db:"file_id"`
	FileName      string      `json:"file_name" db:"file_name"`
	FileSize      int64       `json:"file_size" db:"file_size"`
	OwnerID       string      `json:"owner_id" db:"owner_id"`
	OwnerEmail    string      `json:"owner_email,omitempty" db:"owner_email"`
	IssuedAt      time.Time   `json:"issued_at" db:"issued_at"`
	ExpiresAt     time.Time   `json:"expires_at" db:"expires_at"`
	ExpiryType    ExpiryType  `json:"expiry_type" db:"expiry_type"`
	AccessLevel   AccessLevel `json:"access_level" db:"access_level"`
	IsActive      bool        `json:"is_active" db:"is_active"`
	DownloadCount int64       `json:"download_count" db:"download_count"`
}

// ExpiredAt reports whether the link is past its expiry at now. A link is
// still valid at exactly ExpiresAt.
func (l ShareLink) ExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
