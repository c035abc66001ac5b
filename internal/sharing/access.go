package sharing

import (
	"strings"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
)

// Permissions is what a redeemed link lets its holder do.
type Permissions struct {
	CanDownload     bool `json:"can_download"`
	CanViewMetadata bool `json:"can_view_metadata"`
}

// ParseAccessLevel normalizes user input into a known access level.
func ParseAccessLevel(s string) (models.AccessLevel, error) {
	level := models.AccessLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, err := PermissionsFor(level); err != nil {
		return "", err
	}
	return level, nil
}

// PermissionsFor maps an access level to the actions it permits.
func PermissionsFor(level models.AccessLevel) (Permissions, error) {
	switch level {
	case models.AccessDownload:
		return Permissions{CanDownload: true, CanViewMetadata: true}, nil
	case models.AccessViewOnly:
		return Permissions{CanDownload: false, CanViewMetadata: true}, nil
	default:
		return Permissions{}, invalid("access_level", "must be download or view-only, got %q", level)
	}
}
