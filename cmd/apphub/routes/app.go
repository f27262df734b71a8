// Package routes registers the HTTP routes for the apphub service.
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/container"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/handlers"
	appmiddleware "github.com/dhis2/dhis2-apptore/cmd/apphub/middleware"
	commonmiddleware "github.com/dhis2/dhis2-apptore/common/middleware"
)

// RegisterAppRoutes registers all app catalog routes
func RegisterAppRoutes(e *echo.Echo, c *container.Container) {
	appHandler := handlers.NewAppHandler(c.Components, c.Catalog, c.Approvals)
	versionHandler := handlers.NewVersionHandler(c.Components, c.Versions)
	reviewHandler := handlers.NewReviewHandler(c.Components, c.Reviews)

	uploads := c.Components.Config.Uploads
	uploadLimit := commonmiddleware.UploadRateLimitMiddleware(
		c.Limiter, uploads.RateLimit, uploads.RateWindowSec,
		func(ec echo.Context) string {
			if principal := appmiddleware.CurrentUser(ec); principal != nil {
				return principal.UID.String()
			}
			return ""
		})

	apps := e.Group("/api/v1/apps")
	{
		apps.GET("", appHandler.ListApps)                      // GET /api/v1/apps?type=APP&minVersion=2.35
		apps.POST("", appHandler.CreateApp, uploadLimit)       // POST /api/v1/apps (multipart)
		apps.GET("/myapps", appHandler.ListMyApps)             // GET /api/v1/apps/myapps
		apps.GET("/all", appHandler.ListAllApps)               // GET /api/v1/apps/all
		apps.GET("/:uid", appHandler.GetApp)                   // GET /api/v1/apps/{uid}
		apps.PUT("/:uid", appHandler.UpdateApp)                // PUT /api/v1/apps/{uid}
		apps.DELETE("/:uid", appHandler.DeleteApp)             // DELETE /api/v1/apps/{uid}

		apps.POST("/:uid/approval", appHandler.SetApproval)    // POST /api/v1/apps/{uid}/approval?status=APPROVED

		apps.POST("/:uid/versions", versionHandler.AddVersion, uploadLimit)             // POST /api/v1/apps/{uid}/versions (multipart)
		apps.DELETE("/:uid/versions/:versionUid", versionHandler.RemoveVersion)         // DELETE /api/v1/apps/{uid}/versions/{versionUid}
		apps.GET("/:uid/versions/:versionUid/download", versionHandler.DownloadVersion) // GET /api/v1/apps/{uid}/versions/{versionUid}/download

		apps.GET("/:uid/reviews", reviewHandler.ListReviews)                // GET /api/v1/apps/{uid}/reviews
		apps.POST("/:uid/reviews", reviewHandler.AddReview)                 // POST /api/v1/apps/{uid}/reviews
		apps.DELETE("/:uid/reviews/:reviewUid", reviewHandler.RemoveReview) // DELETE /api/v1/apps/{uid}/reviews/{reviewUid}
	}
}
