package sharing

import (
	"context"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
)

// LinkStore persists share links keyed by token.
//
// Implementations must make IncrementDownloads atomic with respect to
// concurrent callers on the same token.
type LinkStore interface {
	// Insert stores a new link, returning ErrTokenCollision if the token is taken.
	Insert(ctx context.Context, link models.ShareLink) error
	// Get returns ErrLinkNotFound for unknown tokens.
	Get(ctx context.Context, token string) (models.ShareLink, error)
	// IncrementDownloads adds one to the counter and returns the new value.
	IncrementDownloads(ctx context.Context, token string) (int64, error)
	// Deactivate clears IsActive on a link owned by ownerID. Unknown tokens and
	// links of other owners both yield ErrLinkNotFound.
	Deactivate(ctx context.Context, token, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error)
	DeactivateAllForOwner(ctx context.Context, ownerID string) (int, error)
}
