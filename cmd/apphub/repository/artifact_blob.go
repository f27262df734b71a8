package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dhis2/dhis2-apptore/common/db"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// ArtifactBlob is a stored upload, keyed by its content-addressed ref
type ArtifactBlob struct {
	Ref       string    `db:"ref" json:"ref"`
	MediaType string    `db:"media_type" json:"media_type"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	Content   []byte    `db:"content" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ArtifactBlobRepository handles database operations for uploaded artifacts
type ArtifactBlobRepository struct {
	db *db.DB
}

// NewArtifactBlobRepository creates a new artifact blob repository
func NewArtifactBlobRepository(db *db.DB) *ArtifactBlobRepository {
	return &ArtifactBlobRepository{db: db}
}

// Create inserts a new blob; identical content is deduplicated on the ref
func (r *ArtifactBlobRepository) Create(ctx context.Context, blob *ArtifactBlob) error {
	query := `
		INSERT INTO artifact_blob (ref, media_type, size_bytes, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ref) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		blob.Ref,
		blob.MediaType,
		blob.SizeBytes,
		blob.Content,
		blob.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact blob: %w", err)
	}

	return nil
}

// GetContent retrieves only the content of a blob
func (r *ArtifactBlobRepository) GetContent(ctx context.Context, ref string) ([]byte, error) {
	query := `SELECT content FROM artifact_blob WHERE ref = $1`

	var content []byte
	err := r.db.QueryRow(ctx, query, ref).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound(ref)
		}
		return nil, fmt.Errorf("failed to get artifact content: %w", err)
	}

	return content, nil
}

// Get retrieves full blob metadata and content
func (r *ArtifactBlobRepository) Get(ctx context.Context, ref string) (*ArtifactBlob, error) {
	query := `
		SELECT ref, media_type, size_bytes, content, created_at
		FROM artifact_blob
		WHERE ref = $1
	`

	blob := &ArtifactBlob{}
	err := r.db.QueryRow(ctx, query, ref).Scan(
		&blob.Ref,
		&blob.MediaType,
		&blob.SizeBytes,
		&blob.Content,
		&blob.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound(ref)
		}
		return nil, fmt.Errorf("failed to get artifact blob: %w", err)
	}

	return blob, nil
}

// Exists checks if a blob exists
func (r *ArtifactBlobRepository) Exists(ctx context.Context, ref string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM artifact_blob WHERE ref = $1)`

	var exists bool
	err := r.db.QueryRow(ctx, query, ref).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check artifact existence: %w", err)
	}

	return exists, nil
}
