package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens a PostgreSQL pool and checks it answers.
func Connect(ctx context.Context, connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log := logger.With("postgres")
	log.Info().Msg("connected to PostgreSQL")
	return db, nil
}

const registrySchema = `
CREATE TABLE IF NOT EXISTS folders (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    user_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS files (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    original_name VARCHAR(255) NOT NULL,
    size BIGINT NOT NULL,
    type VARCHAR(50) NOT NULL,
    extension VARCHAR(16) NOT NULL,
    content_type VARCHAR(255) NOT NULL DEFAULT 'application/octet-stream',
    uploaded_at TIMESTAMPTZ NOT NULL,
    object_name VARCHAR(500) NOT NULL,
    user_id TEXT NOT NULL,
    folder_id UUID REFERENCES folders(id) ON DELETE CASCADE,
    scan_status VARCHAR(50) NOT NULL DEFAULT 'pending',
    scanned_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_files_user_id ON files(user_id);
CREATE INDEX IF NOT EXISTS idx_files_folder_id ON files(folder_id);
CREATE INDEX IF NOT EXISTS idx_files_uploaded_at ON files(uploaded_at DESC);
CREATE INDEX IF NOT EXISTS idx_folders_user_id ON folders(user_id);
`

const fileColumns = `id, name, original_name, size, type, extension, content_type, uploaded_at,
    object_name, user_id, folder_id, scan_status, scanned_at`

// PostgresRegistry stores files and folders in PostgreSQL.
type PostgresRegistry struct {
	db *sqlx.DB
}

func NewPostgresRegistry(db *sqlx.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Migrate creates the tables and indexes if they are missing.
func (p *PostgresRegistry) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, registrySchema); err != nil {
		return fmt.Errorf("failed to create registry tables: %w", err)
	}
	return nil
}

func (p *PostgresRegistry) SaveFile(ctx context.Context, file models.FileMetadata) error {
	if file.ScanStatus == "" {
		file.ScanStatus = models.ScanPending
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if file.FolderID != nil {
		if !isUUID(*file.FolderID) {
			return ErrFolderNotFound
		}
		var owned bool
		err := tx.GetContext(ctx, &owned,
			`SELECT EXISTS(SELECT 1 FROM folders WHERE id = $1 AND user_id = $2)`,
			*file.FolderID, file.UserID)
		if err != nil {
			return fmt.Errorf("failed to check folder: %w", err)
		}
		if !owned {
			return ErrFolderNotFound
		}
	}

	query := `
    INSERT INTO files (` + fileColumns + `)
    VALUES (:id, :name, :original_name, :size, :type, :extension, :content_type, :uploaded_at,
        :object_name, :user_id, :folder_id, :scan_status, :scanned_at)
    ON CONFLICT (id) DO UPDATE SET
        name = EXCLUDED.name,
        original_name = EXCLUDED.original_name,
        size = EXCLUDED.size,
        type = EXCLUDED.type,
        extension = EXCLUDED.extension,
        content_type = EXCLUDED.content_type,
        object_name = EXCLUDED.object_name,
        folder_id = EXCLUDED.folder_id,
        scan_status = EXCLUDED.scan_status,
        scanned_at = EXCLUDED.scanned_at,
        updated_at = NOW()
    `
	if _, err := tx.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("failed to save file metadata: %w", err)
	}
	return tx.Commit()
}

func (p *PostgresRegistry) GetFile(ctx context.Context, fileID string) (models.FileMetadata, error) {
	if !isUUID(fileID) {
		return models.FileMetadata{}, ErrFileNotFound
	}
	var file models.FileMetadata
	err := p.db.GetContext(ctx, &file, `SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FileMetadata{}, ErrFileNotFound
	}
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("failed to get file metadata: %w", err)
	}
	return file, nil
}

func (p *PostgresRegistry) ListFiles(ctx context.Context, userID, folderID string) ([]models.FileMetadata, error) {
	files := []models.FileMetadata{}
	var err error
	switch {
	case folderID == "":
		err = p.db.SelectContext(ctx, &files,
			`SELECT `+fileColumns+` FROM files WHERE user_id = $1 ORDER BY uploaded_at DESC`, userID)
	case folderID == RootFolder:
		err = p.db.SelectContext(ctx, &files,
			`SELECT `+fileColumns+` FROM files WHERE user_id = $1 AND folder_id IS NULL ORDER BY uploaded_at DESC`, userID)
	case !isUUID(folderID):
		return files, nil
	default:
		err = p.db.SelectContext(ctx, &files,
			`SELECT `+fileColumns+` FROM files WHERE user_id = $1 AND folder_id = $2 ORDER BY uploaded_at DESC`,
			userID, folderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (p *PostgresRegistry) DeleteFile(ctx context.Context, fileID, userID string) error {
	if !isUUID(fileID) {
		return ErrFileNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND user_id = $2`, fileID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (p *PostgresRegistry) UpdateScanStatus(ctx context.Context, fileID, status string, scannedAt time.Time) error {
	if !isUUID(fileID) {
		return ErrFileNotFound
	}
	res, err := p.db.ExecContext(ctx, `
    UPDATE files
    SET scan_status = $1,
        scanned_at = $2,
        updated_at = NOW()
    WHERE id = $3
    `, status, scannedAt, fileID)
	if err != nil {
		return fmt.Errorf("failed to update scan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (p *PostgresRegistry) Stats(ctx context.Context, userID string) (models.UserFileStats, error) {
	var stats models.UserFileStats
	err := p.db.GetContext(ctx, &stats, `
    SELECT
        (SELECT COUNT(*) FROM files WHERE user_id = $1) AS file_count,
        (SELECT COUNT(*) FROM folders WHERE user_id = $1) AS folder_count,
        (SELECT COALESCE(SUM(size), 0) FROM files WHERE user_id = $1) AS total_bytes
    `, userID)
	if err != nil {
		return models.UserFileStats{}, fmt.Errorf("failed to get file stats: %w", err)
	}
	return stats, nil
}

func (p *PostgresRegistry) CreateFolder(ctx context.Context, folder models.Folder) error {
	_, err := p.db.NamedExecContext(ctx,
		`INSERT INTO folders (id, name, user_id, created_at) VALUES (:id, :name, :user_id, :created_at)`,
		folder)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (p *PostgresRegistry) GetFolder(ctx context.Context, folderID string) (models.Folder, error) {
	if !isUUID(folderID) {
		return models.Folder{}, ErrFolderNotFound
	}
	var folder models.Folder
	err := p.db.GetContext(ctx, &folder,
		`SELECT id, name, user_id, created_at FROM folders WHERE id = $1`, folderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Folder{}, ErrFolderNotFound
	}
	if err != nil {
		return models.Folder{}, fmt.Errorf("failed to get folder: %w", err)
	}
	return folder, nil
}

func (p *PostgresRegistry) ListFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	folders := []models.Folder{}
	err := p.db.SelectContext(ctx, &folders,
		`SELECT id, name, user_id, created_at FROM folders WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

func (p *PostgresRegistry) DeleteFolder(ctx context.Context, folderID, userID string) ([]models.FileMetadata, error) {
	if !isUUID(folderID) {
		return nil, ErrFolderNotFound
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owned bool
	err = tx.GetContext(ctx, &owned,
		`SELECT EXISTS(SELECT 1 FROM folders WHERE id = $1 AND user_id = $2)`, folderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check folder: %w", err)
	}
	if !owned {
		return nil, ErrFolderNotFound
	}

	// Files go first so the caller gets their object names back.
	removed := []models.FileMetadata{}
	err = tx.SelectContext(ctx, &removed,
		`DELETE FROM files WHERE folder_id = $1 RETURNING `+fileColumns, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete folder files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, folderID); err != nil {
		return nil, fmt.Errorf("failed to delete folder: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit folder delete: %w", err)
	}
	return removed, nil
}

func (p *PostgresRegistry) DeleteAllForUser(ctx context.Context, userID string) ([]models.FileMetadata, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed := []models.FileMetadata{}
	err = tx.SelectContext(ctx, &removed,
		`DELETE FROM files WHERE user_id = $1 RETURNING `+fileColumns, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete files for user %s: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("failed to delete folders for user %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user purge: %w", err)
	}
	return removed, nil
}

// isUUID guards the UUID columns; anything else can't exist and would only
// fail the cast in Postgres.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
