package sharing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/rs/zerolog"
)

// SharePath is the public route prefix a token is appended to.
const SharePath = "/share/"

// IssueRequest asks for a link to File on behalf of OwnerID, the
// authenticated actor.
type IssueRequest struct {
	File        models.FileMetadata
	OwnerID     string
	OwnerEmail  string
	Expiry      ExpirySelection
	AccessLevel models.AccessLevel
}

// IssuedLink is the stored record plus the URL to hand to recipients.
type IssuedLink struct {
	Link models.ShareLink `json:"link"`
	URL  string           `json:"url"`
}

// Issuer creates links and serves the owner-side link operations.
type Issuer struct {
	store   LinkStore
	tokens  TokenGenerator
	now     func() time.Time
	baseURL string
	log     zerolog.Logger
}

type IssuerOption func(*Issuer)

func WithTokenGenerator(g TokenGenerator) IssuerOption {
	return func(i *Issuer) { i.tokens = g }
}

func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(store LinkStore, baseURL string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		store:   store,
		tokens:  RandomTokens{},
		now:     time.Now,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.With("links"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// URLFor builds the public redemption URL of a token.
func (i *Issuer) URLFor(token string) string {
	return i.baseURL + SharePath + token
}

// Issue validates the request, then generates, stores and returns a new link.
// Parameters are checked before any token is drawn or written.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (IssuedLink, error) {
	if _, err := PermissionsFor(req.AccessLevel); err != nil {
		return IssuedLink{}, err
	}
	if err := req.Expiry.Validate(); err != nil {
		return IssuedLink{}, err
	}
	if req.OwnerID == "" || req.File.UserID != req.OwnerID {
		return IssuedLink{}, ErrNotOwner
	}
	if req.File.ScanStatus == models.ScanInfected {
		return IssuedLink{}, ErrFileQuarantined
	}

	issuedAt := i.now().UTC()
	expiresAt, err := ExpiresAt(req.Expiry, issuedAt)
	if err != nil {
		return IssuedLink{}, err
	}

	link := models.ShareLink{
		FileRef:       req.File.ObjectName,
		FileID:        req.File.ID,
		FileName:      req.File.OriginalName,
		FileSize:      req.File.Size,
		OwnerID:       req.OwnerID,
		OwnerEmail:    req.OwnerEmail,
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
		ExpiryType:    req.Expiry.Type(),
		AccessLevel:   req.AccessLevel,
		IsActive:      true,
		DownloadCount: 0,
	}
	if link.FileName == "" {
		link.FileName = req.File.Name
	}

	// One regeneration on collision, then give up.
	for attempt := 0; attempt < 2; attempt++ {
		link.Token, err = i.tokens.Generate()
		if err != nil {
			return IssuedLink{}, err
		}

		err = i.store.Insert(ctx, link)
		if err == nil {
			i.log.Info().
				Str("file_id", link.FileID).
				Str("owner_id", link.OwnerID).
				Str("access_level", string(link.AccessLevel)).
				Time("expires_at", link.ExpiresAt).
				Msg("share link issued")
			return IssuedLink{Link: link, URL: i.URLFor(link.Token)}, nil
		}
		if !errors.Is(err, ErrTokenCollision) {
			return IssuedLink{}, storageErr("insert share link", err)
		}
		i.log.Warn().Int("attempt", attempt+1).Msg("share token collision, regenerating")
	}

	return IssuedLink{}, storageErr("insert share link", err)
}

// List returns every link the owner has issued, active or not.
func (i *Issuer) List(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	links, err := i.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storageErr("list share links", err)
	}
	if links == nil {
		links = []models.ShareLink{}
	}
	return links, nil
}

// Deactivate switches a link off. Links of other owners look like missing ones.
func (i *Issuer) Deactivate(ctx context.Context, token, ownerID string) error {
	err := i.store.Deactivate(ctx, token, ownerID)
	switch {
	case err == nil:
		i.log.Info().Str("owner_id", ownerID).Msg("share link deactivated")
		return nil
	case errors.Is(err, ErrLinkNotFound):
		return ErrLinkNotFound
	default:
		return storageErr("deactivate share link", err)
	}
}

// DeactivateAll switches off every link of an owner, e.g. when the account is removed.
func (i *Issuer) DeactivateAll(ctx context.Context, ownerID string) (int, error) {
	n, err := i.store.DeactivateAllForOwner(ctx, ownerID)
	if err != nil {
		return 0, storageErr("deactivate owner share links", err)
	}
	return n, nil
}
