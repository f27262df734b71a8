// Package service implements the catalog core: the aggregate-root AppCatalog
// and its sub-components for approval, versions, reviews and artifact storage.
// Every operation takes the principal explicitly; nothing reads ambient
// session state.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/query"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/repository"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/security"
	"github.com/dhis2/dhis2-apptore/common/cache"
	"github.com/dhis2/dhis2-apptore/common/errs"
	"github.com/dhis2/dhis2-apptore/common/logger"
	"github.com/dhis2/dhis2-apptore/common/queue"
)

// approvedListingKey caches the public listing with no criteria
const approvedListingKey = "apps:approved"

// AppCatalog is the aggregate root over apps and the single entry point to
// their versions and reviews. Mutations targeting the same app uid are
// serialized through a keyed lock; distinct apps proceed independently.
type AppCatalog struct {
	repo      repository.AppRepository
	artifacts ArtifactStore
	events    queue.Queue
	listCache cache.Cache
	cacheTTL  time.Duration
	log       *logger.Logger
	locks     *keyedLocks
}

// AppCatalogOpts contains options for creating an AppCatalog
type AppCatalogOpts struct {
	Repo      repository.AppRepository
	Artifacts ArtifactStore
	Events    queue.Queue
	ListCache cache.Cache
	CacheTTL  time.Duration
	Logger    *logger.Logger
}

// NewAppCatalog creates the catalog with options pattern
func NewAppCatalog(opts *AppCatalogOpts) *AppCatalog {
	return &AppCatalog{
		repo:      opts.Repo,
		artifacts: opts.Artifacts,
		events:    opts.Events,
		listCache: opts.ListCache,
		cacheTTL:  opts.CacheTTL,
		log:       opts.Logger,
		locks:     newKeyedLocks(),
	}
}

// Create submits a new app together with its first version artifact.
// The app starts PENDING, owned by the principal, so there is no
// approval-to-list race: it is simply not visible yet.
func (c *AppCatalog) Create(ctx context.Context, principal *models.User, draft models.AppDraft, versionDraft models.VersionDraft, content []byte, mediaType string) (*models.App, error) {
	if !principal.IsAuthenticated() {
		return nil, errs.ErrUnauthenticated
	}

	appType, err := validateDraft(&draft)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(versionDraft.Version) == "" {
		return nil, fmt.Errorf("%w: version is required", errs.ErrInvalidArgument)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: artifact payload is empty", errs.ErrInvalidArgument)
	}

	// Store the artifact first: if storage fails nothing is committed
	ref, err := c.artifacts.Store(ctx, content, mediaType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	app := &models.App{
		UID:                uuid.New(),
		Name:               draft.Name,
		Description:        draft.Description,
		AppType:            appType,
		MinPlatformVersion: draft.MinPlatformVersion,
		SourceURL:          draft.SourceURL,
		OwnerUID:           principal.UID,
		OwnerName:          principal.Username,
		Status:             models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	app.Versions = []models.AppVersion{{
		UID:                uuid.New(),
		AppUID:             app.UID,
		Version:            versionDraft.Version,
		ArtifactRef:        ref,
		DemoURL:            versionDraft.DemoURL,
		MinPlatformVersion: versionDraft.MinPlatformVersion,
		MaxPlatformVersion: versionDraft.MaxPlatformVersion,
		CreatedAt:          now,
	}}

	if err := c.repo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	c.log.Info("app submitted",
		"app_id", app.UID,
		"owner", principal.UID,
		"type", app.AppType)

	c.publish(ctx, queue.TopicAppSubmitted, app, principal, "")

	return app, nil
}

// List returns apps matching criteria. Principals without the manager role
// only ever see APPROVED apps, regardless of requested criteria.
func (c *AppCatalog) List(ctx context.Context, principal *models.User, criteria query.Criteria) ([]*models.App, error) {
	manager := principal.IsAuthenticated() && principal.IsManager()

	if !manager && criteria.IsEmpty() {
		if cached, ok := c.cachedListing(ctx); ok {
			return cached, nil
		}
	}

	var (
		apps []*models.App
		err  error
	)
	if manager {
		apps, err = c.repo.List(ctx)
	} else {
		apps, err = c.repo.ListByStatus(ctx, models.StatusApproved)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}

	if !criteria.IsEmpty() {
		filtered := apps[:0]
		for _, app := range apps {
			if criteria.Matches(app) {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	} else if !manager {
		c.storeListing(ctx, apps)
	}

	return apps, nil
}

// ListMine returns the principal's own apps, any status
func (c *AppCatalog) ListMine(ctx context.Context, principal *models.User) ([]*models.App, error) {
	if !principal.IsAuthenticated() {
		return nil, errs.ErrUnauthenticated
	}

	apps, err := c.repo.ListByOwner(ctx, principal.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps by owner: %w", err)
	}

	return apps, nil
}

// ListAll returns every app; manager only
func (c *AppCatalog) ListAll(ctx context.Context, principal *models.User) ([]*models.App, error) {
	if !principal.IsAuthenticated() {
		return nil, errs.ErrUnauthenticated
	}
	if decision := security.Decide(principal, nil, security.ReadPrivileged); !decision.Allowed {
		return nil, errs.ErrForbidden
	}

	apps, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list all apps: %w", err)
	}

	return apps, nil
}

// Get returns one app. A pending or rejected app is only visible to managers;
// everyone else gets Forbidden, distinguishable from NotFound.
func (c *AppCatalog) Get(ctx context.Context, principal *models.User, uid uuid.UUID) (*models.App, error) {
	app, err := c.repo.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	if decision := security.Decide(principal, app, security.ReadPublic); !decision.Allowed {
		return nil, errs.Forbidden(decision.AppUID)
	}

	return app, nil
}

// Update mutates the app's mutable fields in place. Ownership is the sole
// gate; managers get no bypass. uid, owner, status, versions and reviews are
// untouched.
func (c *AppCatalog) Update(ctx context.Context, principal *models.User, uid uuid.UUID, draft models.AppDraft) (*models.App, error) {
	appType, err := validateDraft(&draft)
	if err != nil {
		return nil, err
	}

	c.locks.lock(uid)
	defer c.locks.unlock(uid)

	app, err := c.repo.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	if decision := security.Decide(principal, app, security.MutateOwned); !decision.Allowed {
		return nil, errs.Forbidden(decision.AppUID)
	}

	app.Name = draft.Name
	app.Description = draft.Description
	app.AppType = appType
	app.MinPlatformVersion = draft.MinPlatformVersion
	app.SourceURL = draft.SourceURL
	app.UpdatedAt = time.Now()

	if err := c.repo.UpdateFields(ctx, app); err != nil {
		return nil, err
	}

	c.log.Info("app updated", "app_id", uid, "user", principal.UID)
	c.invalidateListing(ctx)

	return app, nil
}

// Delete removes the app and cascades to all its versions and reviews.
// Owner only; this is the single delete path, no tombstones.
func (c *AppCatalog) Delete(ctx context.Context, principal *models.User, uid uuid.UUID) error {
	c.locks.lock(uid)
	defer c.locks.unlock(uid)

	app, err := c.repo.Get(ctx, uid)
	if err != nil {
		return err
	}

	if decision := security.Decide(principal, app, security.MutateOwned); !decision.Allowed {
		return errs.Forbidden(decision.AppUID)
	}

	if err := c.repo.Delete(ctx, uid); err != nil {
		return err
	}

	c.log.Info("app deleted",
		"app_id", uid,
		"user", principal.UID,
		"versions", len(app.Versions),
		"reviews", len(app.Reviews))

	c.invalidateListing(ctx)
	c.publish(ctx, queue.TopicAppDeleted, app, principal, "")

	return nil
}

// validateDraft checks required fields and parses the declared type
func validateDraft(draft *models.AppDraft) (models.AppType, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return "", fmt.Errorf("%w: name is required", errs.ErrInvalidArgument)
	}

	appType, err := models.ParseAppType(draft.AppType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}

	return appType, nil
}

// publish emits a catalog event; failures are logged, never propagated
func (c *AppCatalog) publish(ctx context.Context, topic string, app *models.App, actor *models.User, status string) {
	if c.events == nil {
		return
	}

	event := queue.AppEvent{
		AppUID:    app.UID.String(),
		AppName:   app.Name,
		Actor:     actor.UID.String(),
		Status:    status,
		Timestamp: time.Now(),
	}

	if err := queue.PublishAppEvent(ctx, c.events, topic, event); err != nil {
		c.log.Warn("failed to publish catalog event", "topic", topic, "app_id", app.UID, "error", err)
	}
}

// cachedListing returns the memoized public listing, if present
func (c *AppCatalog) cachedListing(ctx context.Context) ([]*models.App, bool) {
	if c.listCache == nil {
		return nil, false
	}

	payload, found, err := c.listCache.Get(ctx, approvedListingKey)
	if err != nil || !found {
		return nil, false
	}

	var apps []*models.App
	if err := json.Unmarshal(payload, &apps); err != nil {
		c.log.Warn("failed to decode cached listing", "error", err)
		return nil, false
	}

	return apps, true
}

// storeListing memoizes the public listing
func (c *AppCatalog) storeListing(ctx context.Context, apps []*models.App) {
	if c.listCache == nil {
		return
	}

	payload, err := json.Marshal(apps)
	if err != nil {
		return
	}

	if err := c.listCache.Set(ctx, approvedListingKey, payload, c.cacheTTL); err != nil {
		c.log.Warn("failed to cache listing", "error", err)
	}
}

// invalidateListing drops the memoized public listing after a mutation that
// can change catalog visibility
func (c *AppCatalog) invalidateListing(ctx context.Context) {
	if c.listCache == nil {
		return
	}

	if err := c.listCache.Delete(ctx, approvedListingKey); err != nil {
		c.log.Warn("failed to invalidate listing cache", "error", err)
	}
}
