package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/repository"
	"github.com/dhis2/dhis2-apptore/common/logger"
	"github.com/dhis2/dhis2-apptore/common/queue"
)

// testEnv holds the wired catalog and its sub-services over in-memory
// backends
type testEnv struct {
	catalog   *AppCatalog
	approvals *ApprovalWorkflow
	versions  *VersionRegistry
	reviews   *ReviewLedger
	repo      *repository.MemoryAppRepository
	artifacts ArtifactStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.NewNop()
	repo := repository.NewMemoryAppRepository()
	artifacts := NewMemoryArtifactStore()

	catalog := NewAppCatalog(&AppCatalogOpts{
		Repo:      repo,
		Artifacts: artifacts,
		Events:    queue.NewMemoryQueue(log),
		CacheTTL:  time.Minute,
		Logger:    log,
	})

	return &testEnv{
		catalog:   catalog,
		approvals: NewApprovalWorkflow(catalog),
		versions:  NewVersionRegistry(catalog),
		reviews:   NewReviewLedger(catalog),
		repo:      repo,
		artifacts: artifacts,
	}
}

func newUser(roles ...string) *models.User {
	uid := uuid.New()
	return &models.User{
		UID:      uid,
		Username: fmt.Sprintf("user-%s", uid.String()[:8]),
		Roles:    roles,
	}
}

func newManager() *models.User {
	return newUser(models.RoleUser, models.RoleManager)
}

func testDraft(name string) models.AppDraft {
	return models.AppDraft{
		Name:               name,
		Description:        "a test app",
		AppType:            "APP",
		MinPlatformVersion: "2.35",
		SourceURL:          "https://example.org/src",
	}
}

func testVersionDraft(version string) models.VersionDraft {
	return models.VersionDraft{
		Version:            version,
		MinPlatformVersion: "2.35",
	}
}

// submitApp creates a PENDING app owned by owner
func (e *testEnv) submitApp(t *testing.T, owner *models.User, name string) *models.App {
	t.Helper()

	app, err := e.catalog.Create(context.Background(), owner,
		testDraft(name), testVersionDraft("1.0.0"), []byte(name+" payload"), "application/zip")
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, app.Status)

	return app
}

// approvedApp creates an app and approves it through the workflow
func (e *testEnv) approvedApp(t *testing.T, owner *models.User, name string) *models.App {
	t.Helper()

	app := e.submitApp(t, owner, name)
	approved, err := e.approvals.SetApproval(context.Background(), newManager(), app.UID, "APPROVED")
	require.NoError(t, err)

	return approved
}

// countingArtifactStore records Store calls and can be forced to fail
type countingArtifactStore struct {
	inner      ArtifactStore
	storeCalls int
	failStore  error
}

func (s *countingArtifactStore) Store(ctx context.Context, content []byte, mediaType string) (string, error) {
	s.storeCalls++
	if s.failStore != nil {
		return "", s.failStore
	}
	return s.inner.Store(ctx, content, mediaType)
}

func (s *countingArtifactStore) Get(ctx context.Context, ref string) ([]byte, error) {
	return s.inner.Get(ctx, ref)
}
