package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/common/db"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// PostgresAppRepository stores app aggregates in Postgres
type PostgresAppRepository struct {
	db *db.DB
}

// NewPostgresAppRepository creates a new Postgres-backed app repository
func NewPostgresAppRepository(db *db.DB) *PostgresAppRepository {
	return &PostgresAppRepository{db: db}
}

const appColumns = `
	uid, name, description, app_type, min_platform_version, source_url,
	owner_uid, owner_name, status, created_at, updated_at
`

func scanApp(row pgx.Row) (*models.App, error) {
	app := &models.App{}
	err := row.Scan(
		&app.UID,
		&app.Name,
		&app.Description,
		&app.AppType,
		&app.MinPlatformVersion,
		&app.SourceURL,
		&app.OwnerUID,
		&app.OwnerName,
		&app.Status,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Create inserts a new app with its collections
func (r *PostgresAppRepository) Create(ctx context.Context, app *models.App) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO app (` + appColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`

		_, err := tx.Exec(ctx, query,
			app.UID,
			app.Name,
			app.Description,
			app.AppType,
			app.MinPlatformVersion,
			app.SourceURL,
			app.OwnerUID,
			app.OwnerName,
			app.Status,
			app.CreatedAt,
			app.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		for i := range app.Versions {
			if err := insertVersion(ctx, tx, &app.Versions[i]); err != nil {
				return err
			}
		}

		for i := range app.Reviews {
			if err := insertReview(ctx, tx, &app.Reviews[i]); err != nil {
				return err
			}
		}

		return nil
	})
}

// Get loads one app aggregate by uid
func (r *PostgresAppRepository) Get(ctx context.Context, uid uuid.UUID) (*models.App, error) {
	query := `SELECT ` + appColumns + ` FROM app WHERE uid = $1`

	app, err := scanApp(r.db.QueryRow(ctx, query, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound(uid.String())
		}
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	if err := r.loadCollections(ctx, []*models.App{app}); err != nil {
		return nil, err
	}

	return app, nil
}

// List returns all apps in insertion order
func (r *PostgresAppRepository) List(ctx context.Context) ([]*models.App, error) {
	query := `SELECT ` + appColumns + ` FROM app ORDER BY created_at, uid`
	return r.listApps(ctx, query)
}

// ListByStatus returns apps with the given status in insertion order
func (r *PostgresAppRepository) ListByStatus(ctx context.Context, status models.AppStatus) ([]*models.App, error) {
	query := `SELECT ` + appColumns + ` FROM app WHERE status = $1 ORDER BY created_at, uid`
	return r.listApps(ctx, query, status)
}

// ListByOwner returns apps owned by the given user in insertion order
func (r *PostgresAppRepository) ListByOwner(ctx context.Context, ownerUID uuid.UUID) ([]*models.App, error) {
	query := `SELECT ` + appColumns + ` FROM app WHERE owner_uid = $1 ORDER BY created_at, uid`
	return r.listApps(ctx, query, ownerUID)
}

func (r *PostgresAppRepository) listApps(ctx context.Context, query string, args ...any) ([]*models.App, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating apps: %w", err)
	}

	if err := r.loadCollections(ctx, apps); err != nil {
		return nil, err
	}

	return apps, nil
}

// loadCollections attaches versions and reviews to the given apps
func (r *PostgresAppRepository) loadCollections(ctx context.Context, apps []*models.App) error {
	if len(apps) == 0 {
		return nil
	}

	byUID := make(map[uuid.UUID]*models.App, len(apps))
	uids := make([]uuid.UUID, 0, len(apps))
	for _, app := range apps {
		byUID[app.UID] = app
		uids = append(uids, app.UID)
	}

	versionQuery := `
		SELECT uid, app_uid, version, artifact_ref, demo_url,
		       min_platform_version, max_platform_version, created_at
		FROM app_version
		WHERE app_uid = ANY($1)
		ORDER BY seq
	`

	rows, err := r.db.Query(ctx, versionQuery, uids)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.AppVersion
		err := rows.Scan(
			&v.UID,
			&v.AppUID,
			&v.Version,
			&v.ArtifactRef,
			&v.DemoURL,
			&v.MinPlatformVersion,
			&v.MaxPlatformVersion,
			&v.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan version: %w", err)
		}
		if app, ok := byUID[v.AppUID]; ok {
			app.Versions = append(app.Versions, v)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating versions: %w", err)
	}

	reviewQuery := `
		SELECT uid, app_uid, author_uid, author_name, review_text, created_at
		FROM app_review
		WHERE app_uid = ANY($1)
		ORDER BY seq
	`

	reviewRows, err := r.db.Query(ctx, reviewQuery, uids)
	if err != nil {
		return fmt.Errorf("failed to load reviews: %w", err)
	}
	defer reviewRows.Close()

	for reviewRows.Next() {
		var rv models.Review
		err := reviewRows.Scan(
			&rv.UID,
			&rv.AppUID,
			&rv.AuthorUID,
			&rv.AuthorName,
			&rv.Text,
			&rv.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan review: %w", err)
		}
		if app, ok := byUID[rv.AppUID]; ok {
			app.Reviews = append(app.Reviews, rv)
		}
	}
	if err := reviewRows.Err(); err != nil {
		return fmt.Errorf("error iterating reviews: %w", err)
	}

	return nil
}

// UpdateFields persists the mutable app fields
func (r *PostgresAppRepository) UpdateFields(ctx context.Context, app *models.App) error {
	query := `
		UPDATE app
		SET name = $2, description = $3, app_type = $4,
		    min_platform_version = $5, source_url = $6, updated_at = $7
		WHERE uid = $1
	`

	tag, err := r.db.Exec(ctx, query,
		app.UID,
		app.Name,
		app.Description,
		app.AppType,
		app.MinPlatformVersion,
		app.SourceURL,
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update app: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound(app.UID.String())
	}

	return nil
}

// SetStatus overwrites the app status
func (r *PostgresAppRepository) SetStatus(ctx context.Context, appUID uuid.UUID, status models.AppStatus) error {
	query := `UPDATE app SET status = $2, updated_at = now() WHERE uid = $1`

	tag, err := r.db.Exec(ctx, query, appUID, status)
	if err != nil {
		return fmt.Errorf("failed to set app status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound(appUID.String())
	}

	return nil
}

// Delete removes the app; versions and reviews cascade in the same statement
// through the foreign keys
func (r *PostgresAppRepository) Delete(ctx context.Context, uid uuid.UUID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM app WHERE uid = $1`, uid)
		if err != nil {
			return fmt.Errorf("failed to delete app: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errs.NotFound(uid.String())
		}
		return nil
	})
}

func insertVersion(ctx context.Context, tx pgx.Tx, v *models.AppVersion) error {
	query := `
		INSERT INTO app_version (
			uid, app_uid, version, artifact_ref, demo_url,
			min_platform_version, max_platform_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		v.UID,
		v.AppUID,
		v.Version,
		v.ArtifactRef,
		v.DemoURL,
		v.MinPlatformVersion,
		v.MaxPlatformVersion,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return nil
}

// AddVersion appends a version to its app's ordered collection
func (r *PostgresAppRepository) AddVersion(ctx context.Context, version *models.AppVersion) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return insertVersion(ctx, tx, version)
	})
}

// RemoveVersion detaches a version by uid
func (r *PostgresAppRepository) RemoveVersion(ctx context.Context, versionUID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM app_version WHERE uid = $1`, versionUID)
	if err != nil {
		return fmt.Errorf("failed to remove version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound(versionUID.String())
	}

	return nil
}

// FindAppByVersion resolves which app a version uid belongs to
func (r *PostgresAppRepository) FindAppByVersion(ctx context.Context, versionUID uuid.UUID) (uuid.UUID, error) {
	var appUID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT app_uid FROM app_version WHERE uid = $1`, versionUID).Scan(&appUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, errs.NotFound(versionUID.String())
		}
		return uuid.Nil, fmt.Errorf("failed to resolve version: %w", err)
	}

	return appUID, nil
}

func insertReview(ctx context.Context, tx pgx.Tx, rv *models.Review) error {
	query := `
		INSERT INTO app_review (uid, app_uid, author_uid, author_name, review_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.Exec(ctx, query,
		rv.UID,
		rv.AppUID,
		rv.AuthorUID,
		rv.AuthorName,
		rv.Text,
		rv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	return nil
}

// AddReview inserts a review into its app's collection
func (r *PostgresAppRepository) AddReview(ctx context.Context, review *models.Review) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return insertReview(ctx, tx, review)
	})
}

// RemoveReview removes a review by uid
func (r *PostgresAppRepository) RemoveReview(ctx context.Context, reviewUID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM app_review WHERE uid = $1`, reviewUID)
	if err != nil {
		return fmt.Errorf("failed to remove review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound(reviewUID.String())
	}

	return nil
}
