package sharing

import (
	"context"
	"errors"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/rs/zerolog"
)

// Outcome is the terminal state of a redemption attempt.
type Outcome string

const (
	OutcomeRedeemed    Outcome = "redeemed"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeExpired     Outcome = "expired"
	OutcomeDeactivated Outcome = "deactivated"
)

// Redemption is the decision handed to the delivery layer. FileRef is only
// set when the access level permits a download.
type Redemption struct {
	Outcome       Outcome            `json:"outcome"`
	AccessLevel   models.AccessLevel `json:"access_level,omitempty"`
	Permissions   Permissions        `json:"permissions"`
	FileName      string             `json:"file_name,omitempty"`
	FileSize      int64              `json:"file_size,omitempty"`
	ExpiresAt     time.Time          `json:"expires_at"`
	DownloadCount int64              `json:"download_count"`
	FileRef       string             `json:"-"`
}

// Redeemer validates tokens and accounts for their use.
type Redeemer struct {
	store LinkStore
	log   zerolog.Logger
}

func NewRedeemer(store LinkStore) *Redeemer {
	return &Redeemer{store: store, log: logger.With("links")}
}

// Redeem resolves token at instant now. Checks run in order: existence,
// expiry, activation. Only a permitted redemption increments the counter,
// and it does so through the store's atomic increment.
func (r *Redeemer) Redeem(ctx context.Context, token string, now time.Time) (Redemption, error) {
	link, res, err := r.check(ctx, token, now)
	if err != nil {
		return res, err
	}

	count, err := r.store.IncrementDownloads(ctx, link.Token)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return Redemption{Outcome: OutcomeNotFound}, ErrLinkNotFound
		}
		return Redemption{}, storageErr("record share link redemption", err)
	}

	res.DownloadCount = count
	r.log.Debug().
		Str("file_id", link.FileID).
		Str("access_level", string(link.AccessLevel)).
		Int64("download_count", count).
		Msg("share link redeemed")
	return res, nil
}

// Inspect runs the same checks as Redeem without counting a use.
func (r *Redeemer) Inspect(ctx context.Context, token string, now time.Time) (Redemption, error) {
	_, res, err := r.check(ctx, token, now)
	return res, err
}

func (r *Redeemer) check(ctx context.Context, token string, now time.Time) (models.ShareLink, Redemption, error) {
	if token == "" {
		return models.ShareLink{}, Redemption{Outcome: OutcomeNotFound}, ErrLinkNotFound
	}

	link, err := r.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return models.ShareLink{}, Redemption{Outcome: OutcomeNotFound}, ErrLinkNotFound
		}
		return models.ShareLink{}, Redemption{}, storageErr("load share link", err)
	}

	if link.ExpiredAt(now) {
		return link, Redemption{Outcome: OutcomeExpired}, ErrLinkExpired
	}
	if !link.IsActive {
		return link, Redemption{Outcome: OutcomeDeactivated}, ErrLinkDeactivated
	}

	perms, err := PermissionsFor(link.AccessLevel)
	if err != nil {
		// A record with an unknown level can only come from outside the issuer.
		return link, Redemption{Outcome: OutcomeDeactivated}, ErrLinkDeactivated
	}

	res := Redemption{
		Outcome:       OutcomeRedeemed,
		AccessLevel:   link.AccessLevel,
		Permissions:   perms,
		FileName:      link.FileName,
		FileSize:      link.FileSize,
		ExpiresAt:     link.ExpiresAt,
		DownloadCount: link.DownloadCount,
	}
	if perms.CanDownload {
		res.FileRef = link.FileRef
	}
	return link, res, nil
}
