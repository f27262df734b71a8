package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/container"
	appmiddleware "github.com/dhis2/dhis2-apptore/cmd/apphub/middleware"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/routes"
	"github.com/dhis2/dhis2-apptore/common/bootstrap"
	"github.com/dhis2/dhis2-apptore/common/config"
	"github.com/dhis2/dhis2-apptore/common/migrate"
	"github.com/dhis2/dhis2-apptore/common/server"
	"github.com/dhis2/dhis2-apptore/common/worker"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, queue, cache, telemetry).
	// Migrations run against the database before the pool is opened.
	opts := []bootstrap.Option{
		bootstrap.WithDBInitHook(func(cfg *config.Config) error {
			return migrate.Up(ctx, cfg.DatabaseURL())
		}),
	}
	components, err := bootstrap.Setup(ctx, "apphub", opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap apphub: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	auditWorker := worker.NewAuditWorker(components.Queue, serviceContainer.Redis, components.Logger)
	if err := auditWorker.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start audit worker: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho(components)
	setupHealthCheck(e, serviceContainer)
	routes.RegisterAppRoutes(e, serviceContainer)

	srv := server.New("apphub", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with middleware
func setupEcho(components *bootstrap.Components) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestID())
	e.Use(appmiddleware.Authenticate([]byte(components.Config.Auth.JWTSecret)))

	return e
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		if err := c.Components.Health(ec.Request().Context()); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return ec.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "apphub",
		})
	})
}
