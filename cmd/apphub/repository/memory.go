package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// MemoryAppRepository keeps the catalog in process memory. It backs tests and
// single-node deployments without Postgres. Aggregates are cloned on the way
// in and out so callers never share mutable state with the store.
type MemoryAppRepository struct {
	mu    sync.RWMutex
	apps  map[uuid.UUID]*models.App
	order []uuid.UUID // insertion order of app uids

	// versionIndex maps version uid -> owning app uid (global namespace)
	versionIndex map[uuid.UUID]uuid.UUID
	// reviewIndex maps review uid -> owning app uid
	reviewIndex map[uuid.UUID]uuid.UUID
}

// NewMemoryAppRepository creates an empty in-memory repository
func NewMemoryAppRepository() *MemoryAppRepository {
	return &MemoryAppRepository{
		apps:         make(map[uuid.UUID]*models.App),
		versionIndex: make(map[uuid.UUID]uuid.UUID),
		reviewIndex:  make(map[uuid.UUID]uuid.UUID),
	}
}

// Create persists a new app with its collections
func (r *MemoryAppRepository) Create(ctx context.Context, app *models.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := app.Clone()
	r.apps[cp.UID] = cp
	r.order = append(r.order, cp.UID)

	for i := range cp.Versions {
		r.versionIndex[cp.Versions[i].UID] = cp.UID
	}
	for i := range cp.Reviews {
		r.reviewIndex[cp.Reviews[i].UID] = cp.UID
	}

	return nil
}

// Get loads one app aggregate by uid
func (r *MemoryAppRepository) Get(ctx context.Context, uid uuid.UUID) (*models.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[uid]
	if !ok {
		return nil, errs.NotFound(uid.String())
	}

	return app.Clone(), nil
}

// List returns all apps in insertion order
func (r *MemoryAppRepository) List(ctx context.Context) ([]*models.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(*models.App) bool { return true }), nil
}

// ListByStatus returns apps with the given status in insertion order
func (r *MemoryAppRepository) ListByStatus(ctx context.Context, status models.AppStatus) ([]*models.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(a *models.App) bool { return a.Status == status }), nil
}

// ListByOwner returns apps owned by the given user in insertion order
func (r *MemoryAppRepository) ListByOwner(ctx context.Context, ownerUID uuid.UUID) ([]*models.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(a *models.App) bool { return a.OwnerUID == ownerUID }), nil
}

// collect must be called with at least a read lock held
func (r *MemoryAppRepository) collect(keep func(*models.App) bool) []*models.App {
	var out []*models.App
	for _, uid := range r.order {
		app, ok := r.apps[uid]
		if !ok {
			continue
		}
		if keep(app) {
			out = append(out, app.Clone())
		}
	}
	return out
}

// UpdateFields persists the mutable app fields
func (r *MemoryAppRepository) UpdateFields(ctx context.Context, app *models.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.apps[app.UID]
	if !ok {
		return errs.NotFound(app.UID.String())
	}

	stored.Name = app.Name
	stored.Description = app.Description
	stored.AppType = app.AppType
	stored.MinPlatformVersion = app.MinPlatformVersion
	stored.SourceURL = app.SourceURL
	stored.UpdatedAt = app.UpdatedAt

	return nil
}

// SetStatus overwrites the app status
func (r *MemoryAppRepository) SetStatus(ctx context.Context, appUID uuid.UUID, status models.AppStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.apps[appUID]
	if !ok {
		return errs.NotFound(appUID.String())
	}

	stored.Status = status
	return nil
}

// Delete removes the app and cascades to its versions and reviews
func (r *MemoryAppRepository) Delete(ctx context.Context, uid uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.apps[uid]
	if !ok {
		return errs.NotFound(uid.String())
	}

	for i := range stored.Versions {
		delete(r.versionIndex, stored.Versions[i].UID)
	}
	for i := range stored.Reviews {
		delete(r.reviewIndex, stored.Reviews[i].UID)
	}

	delete(r.apps, uid)
	for i, ordered := range r.order {
		if ordered == uid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return nil
}

// AddVersion appends a version to its app's ordered collection
func (r *MemoryAppRepository) AddVersion(ctx context.Context, version *models.AppVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.apps[version.AppUID]
	if !ok {
		return errs.NotFound(version.AppUID.String())
	}

	stored.Versions = append(stored.Versions, *version)
	r.versionIndex[version.UID] = version.AppUID

	return nil
}

// RemoveVersion detaches a version by uid
func (r *MemoryAppRepository) RemoveVersion(ctx context.Context, versionUID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appUID, ok := r.versionIndex[versionUID]
	if !ok {
		return errs.NotFound(versionUID.String())
	}

	stored := r.apps[appUID]
	for i := range stored.Versions {
		if stored.Versions[i].UID == versionUID {
			stored.Versions = append(stored.Versions[:i], stored.Versions[i+1:]...)
			break
		}
	}
	delete(r.versionIndex, versionUID)

	return nil
}

// FindAppByVersion resolves which app a version uid belongs to
func (r *MemoryAppRepository) FindAppByVersion(ctx context.Context, versionUID uuid.UUID) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appUID, ok := r.versionIndex[versionUID]
	if !ok {
		return uuid.Nil, errs.NotFound(versionUID.String())
	}

	return appUID, nil
}

// AddReview inserts a review into its app's collection
func (r *MemoryAppRepository) AddReview(ctx context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.apps[review.AppUID]
	if !ok {
		return errs.NotFound(review.AppUID.String())
	}

	stored.Reviews = append(stored.Reviews, *review)
	r.reviewIndex[review.UID] = review.AppUID

	return nil
}

// RemoveReview removes a review by uid
func (r *MemoryAppRepository) RemoveReview(ctx context.Context, reviewUID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appUID, ok := r.reviewIndex[reviewUID]
	if !ok {
		return errs.NotFound(reviewUID.String())
	}

	stored := r.apps[appUID]
	for i := range stored.Reviews {
		if stored.Reviews[i].UID == reviewUID {
			stored.Reviews = append(stored.Reviews[:i], stored.Reviews[i+1:]...)
			break
		}
	}
	delete(r.reviewIndex, reviewUID)

	return nil
}
