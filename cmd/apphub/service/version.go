package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/security"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// VersionRegistry manages the versions of an app. Versions are reached only
// through their owning app; there is no standalone version id lookup on the
// write path except removal, which resolves the owning app first.
type VersionRegistry struct {
	catalog *AppCatalog
}

// NewVersionRegistry creates the registry bound to a catalog
func NewVersionRegistry(catalog *AppCatalog) *VersionRegistry {
	return &VersionRegistry{catalog: catalog}
}

// AddVersion attaches a new version with its artifact to an existing app.
// The app is resolved before the artifact is stored, so a request against a
// missing app never writes a blob.
func (r *VersionRegistry) AddVersion(ctx context.Context, principal *models.User, appUID uuid.UUID, draft models.VersionDraft, content []byte, mediaType string) (*models.AppVersion, error) {
	if strings.TrimSpace(draft.Version) == "" {
		return nil, fmt.Errorf("%w: version is required", errs.ErrInvalidArgument)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: artifact payload is empty", errs.ErrInvalidArgument)
	}

	c := r.catalog

	c.locks.lock(appUID)
	defer c.locks.unlock(appUID)

	app, err := c.repo.Get(ctx, appUID)
	if err != nil {
		return nil, err
	}

	if decision := security.Decide(principal, app, security.MutateOwned); !decision.Allowed {
		return nil, errs.Forbidden(decision.AppUID)
	}

	ref, err := c.artifacts.Store(ctx, content, mediaType)
	if err != nil {
		return nil, err
	}

	version := &models.AppVersion{
		UID:                uuid.New(),
		AppUID:             appUID,
		Version:            draft.Version,
		ArtifactRef:        ref,
		DemoURL:            draft.DemoURL,
		MinPlatformVersion: draft.MinPlatformVersion,
		MaxPlatformVersion: draft.MaxPlatformVersion,
		CreatedAt:          time.Now(),
	}

	if err := c.repo.AddVersion(ctx, version); err != nil {
		return nil, err
	}

	c.log.Info("version added",
		"app_id", appUID,
		"version_id", version.UID,
		"version", version.Version)

	return version, nil
}

// RemoveVersion detaches a version from its app. The version must belong to
// the named app; a version uid under the wrong app reads as NotFound.
func (r *VersionRegistry) RemoveVersion(ctx context.Context, principal *models.User, appUID, versionUID uuid.UUID) error {
	c := r.catalog

	c.locks.lock(appUID)
	defer c.locks.unlock(appUID)

	app, err := c.repo.Get(ctx, appUID)
	if err != nil {
		return err
	}

	if _, ok := app.VersionByUID(versionUID); !ok {
		return errs.NotFound(versionUID.String())
	}

	if decision := security.Decide(principal, app, security.MutateOwned); !decision.Allowed {
		return errs.Forbidden(decision.AppUID)
	}

	if err := c.repo.RemoveVersion(ctx, versionUID); err != nil {
		return err
	}

	c.log.Info("version removed", "app_id", appUID, "version_id", versionUID)

	return nil
}

// DownloadVersion returns the artifact bytes for a version, subject to the
// same visibility rule as reading the app itself.
func (r *VersionRegistry) DownloadVersion(ctx context.Context, principal *models.User, appUID, versionUID uuid.UUID) ([]byte, *models.AppVersion, error) {
	c := r.catalog

	app, err := c.repo.Get(ctx, appUID)
	if err != nil {
		return nil, nil, err
	}

	if decision := security.Decide(principal, app, security.ReadPublic); !decision.Allowed {
		return nil, nil, errs.Forbidden(decision.AppUID)
	}

	version, ok := app.VersionByUID(versionUID)
	if !ok {
		return nil, nil, errs.NotFound(versionUID.String())
	}

	content, err := c.artifacts.Get(ctx, version.ArtifactRef)
	if err != nil {
		return nil, nil, err
	}

	return content, version, nil
}
