package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const linkSchema = `
CREATE TABLE IF NOT EXISTS share_links (
    token TEXT PRIMARY KEY,
    file_ref VARCHAR(500) NOT NULL,
    file_id TEXT NOT NULL,
    file_name VARCHAR(255) NOT NULL,
    file_size BIGINT NOT NULL DEFAULT 0,
    owner_id TEXT NOT NULL,
    owner_email VARCHAR(320) NOT NULL DEFAULT '',
    issued_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    expiry_type VARCHAR(20) NOT NULL,
    access_level VARCHAR(20) NOT NULL CHECK (access_level IN ('download', 'view-only')),
    is_active BOOLEAN NOT NULL DEFAULT true,
    download_count BIGINT NOT NULL DEFAULT 0 CHECK (download_count >= 0),
    CHECK (expires_at >= issued_at)
);

CREATE INDEX IF NOT EXISTS idx_share_links_owner_id ON share_links(owner_id);
`

const linkColumns = `token, file_ref, file_id, file_name, file_size, owner_id, owner_email,
    issued_at, expires_at, expiry_type, access_level, is_active, download_count`

// uniqueViolation is the SQLSTATE PostgreSQL reports for a duplicate key.
const uniqueViolation = "23505"

// PostgresLinkStore keeps share links in the share_links table.
type PostgresLinkStore struct {
	db *sqlx.DB
}

func NewPostgresLinkStore(db *sqlx.DB) *PostgresLinkStore {
	return &PostgresLinkStore{db: db}
}

func (p *PostgresLinkStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, linkSchema); err != nil {
		return fmt.Errorf("failed to create share_links table: %w", err)
	}
	return nil
}

func (p *PostgresLinkStore) Insert(ctx context.Context, link models.ShareLink) error {
	_, err := p.db.NamedExecContext(ctx, `
    INSERT INTO share_links (`+linkColumns+`)
    VALUES (:token, :file_ref, :file_id, :file_name, :file_size, :owner_id, :owner_email,
        :issued_at, :expires_at, :expiry_type, :access_level, :is_active, :download_count)
    `, link)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sharing.ErrTokenCollision
		}
		return fmt.Errorf("failed to insert share link: %w", err)
	}
	return nil
}

func (p *PostgresLinkStore) Get(ctx context.Context, token string) (models.ShareLink, error) {
	var link models.ShareLink
	err := p.db.GetContext(ctx, &link, `SELECT `+linkColumns+` FROM share_links WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShareLink{}, sharing.ErrLinkNotFound
	}
	if err != nil {
		return models.ShareLink{}, fmt.Errorf("failed to get share link: %w", err)
	}
	return link, nil
}

// IncrementDownloads lets the database do the addition so concurrent
// redemptions never overwrite each other.
func (p *PostgresLinkStore) IncrementDownloads(ctx context.Context, token string) (int64, error) {
	var count int64
	err := p.db.QueryRowxContext(ctx, `
    UPDATE share_links
    SET download_count = download_count + 1
    WHERE token = $1
    RETURNING download_count
    `, token).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sharing.ErrLinkNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment download count: %w", err)
	}
	return count, nil
}

func (p *PostgresLinkStore) Deactivate(ctx context.Context, token, ownerID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE share_links SET is_active = false WHERE token = $1 AND owner_id = $2`, token, ownerID)
	if err != nil {
		return fmt.Errorf("failed to deactivate share link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sharing.ErrLinkNotFound
	}
	return nil
}

func (p *PostgresLinkStore) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	links := []models.ShareLink{}
	err := p.db.SelectContext(ctx, &links,
		`SELECT `+linkColumns+` FROM share_links WHERE owner_id = $1 ORDER BY issued_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	return links, nil
}

func (p *PostgresLinkStore) DeactivateAllForOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE share_links SET is_active = false WHERE owner_id = $1 AND is_active`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate share links for %s: %w", ownerID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
