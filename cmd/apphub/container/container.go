// Package container wires repositories and services once at startup.
package container

import (
	"github.com/redis/go-redis/v9"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/repository"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/service"
	"github.com/dhis2/dhis2-apptore/common/bootstrap"
	"github.com/dhis2/dhis2-apptore/common/ratelimit"
	rediscommon "github.com/dhis2/dhis2-apptore/common/redis"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components
	Redis      *rediscommon.Client

	// Repositories
	AppRepo repository.AppRepository

	// Services
	Artifacts service.ArtifactStore
	Catalog   *service.AppCatalog
	Approvals *service.ApprovalWorkflow
	Versions  *service.VersionRegistry
	Reviews   *service.ReviewLedger

	// Limiter is nil when Redis is not configured; uploads are then unlimited
	Limiter *ratelimit.Limiter
}

// NewContainer initializes all services and repositories once. The storage
// backend is selected by config: "postgres" uses the database for apps and
// artifact blobs, "memory" keeps everything in process for tests and local
// runs without infrastructure.
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	var (
		appRepo   repository.AppRepository
		artifacts service.ArtifactStore
	)
	if cfg.Uploads.Storage == "memory" {
		appRepo = repository.NewMemoryAppRepository()
		artifacts = service.NewMemoryArtifactStore()
	} else {
		appRepo = repository.NewPostgresAppRepository(components.DB)
		blobRepo := repository.NewArtifactBlobRepository(components.DB)
		artifacts = service.NewCASArtifactStore(blobRepo, components.Logger)
	}

	catalog := service.NewAppCatalog(&service.AppCatalogOpts{
		Repo:      appRepo,
		Artifacts: artifacts,
		Events:    components.Queue,
		ListCache: components.Cache,
		CacheTTL:  cfg.Cache.DefaultTTL,
		Logger:    components.Logger,
	})

	c := &Container{
		Components: components,
		AppRepo:    appRepo,
		Artifacts:  artifacts,
		Catalog:    catalog,
		Approvals:  service.NewApprovalWorkflow(catalog),
		Versions:   service.NewVersionRegistry(catalog),
		Reviews:    service.NewReviewLedger(catalog),
	}

	if cfg.Redis.Host != "" {
		raw := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.Redis = rediscommon.NewClient(raw, components.Logger)
		c.Limiter = ratelimit.NewLimiter(raw, components.Logger)
	}

	return c, nil
}
