// Package repository persists the app catalog. The app is an aggregate root:
// versions and reviews are only reachable through it, and every read returns
// the app with its embedded collections as one consistent unit.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
)

// AppRepository is the storage port for the catalog. Implementations must
// return errs.ErrNotFound (carrying the uid) when an id does not resolve.
type AppRepository interface {
	// Create persists a new app with its (possibly empty) collections
	Create(ctx context.Context, app *models.App) error

	// Get loads one app aggregate by uid
	Get(ctx context.Context, uid uuid.UUID) (*models.App, error)

	// List returns all apps in insertion order
	List(ctx context.Context) ([]*models.App, error)

	// ListByStatus returns apps with the given status in insertion order
	ListByStatus(ctx context.Context, status models.AppStatus) ([]*models.App, error)

	// ListByOwner returns apps owned by the given user in insertion order
	ListByOwner(ctx context.Context, ownerUID uuid.UUID) ([]*models.App, error)

	// UpdateFields persists the mutable app fields (name, description, type,
	// min platform version, source url); uid, owner, status and the
	// collections are untouched
	UpdateFields(ctx context.Context, app *models.App) error

	// SetStatus overwrites the app status
	SetStatus(ctx context.Context, appUID uuid.UUID, status models.AppStatus) error

	// Delete removes the app and cascades to its versions and reviews as a
	// single transaction
	Delete(ctx context.Context, uid uuid.UUID) error

	// AddVersion appends a version to its app's ordered collection
	AddVersion(ctx context.Context, version *models.AppVersion) error

	// RemoveVersion detaches a version by its globally unique uid
	RemoveVersion(ctx context.Context, versionUID uuid.UUID) error

	// FindAppByVersion resolves which app a version uid belongs to
	FindAppByVersion(ctx context.Context, versionUID uuid.UUID) (uuid.UUID, error)

	// AddReview inserts a review into its app's collection
	AddReview(ctx context.Context, review *models.Review) error

	// RemoveReview removes a review by uid
	RemoveReview(ctx context.Context, reviewUID uuid.UUID) error
}
