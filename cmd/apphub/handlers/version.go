package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	appmiddleware "github.com/dhis2/dhis2-apptore/cmd/apphub/middleware"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/service"
	"github.com/dhis2/dhis2-apptore/common/bootstrap"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// VersionHandler handles app version requests
type VersionHandler struct {
	components *bootstrap.Components
	versions   *service.VersionRegistry
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(components *bootstrap.Components, versions *service.VersionRegistry) *VersionHandler {
	return &VersionHandler{
		components: components,
		versions:   versions,
	}
}

// AddVersion attaches a new version with its artifact to an app
// POST /api/v1/apps/:uid/versions
func (h *VersionHandler) AddVersion(c echo.Context) error {
	appUID, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}

	principal := appmiddleware.CurrentUser(c)

	var draft models.VersionDraft
	if raw := c.FormValue("version"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &draft); err != nil {
			return renderError(c, fmt.Errorf("%w: malformed version payload: %v", errs.ErrInvalidArgument, err))
		}
	} else {
		return renderError(c, fmt.Errorf("%w: version form field is required", errs.ErrInvalidArgument))
	}

	content, mediaType, err := readArtifact(c, h.components.Config.Uploads.MaxArtifactBytes)
	if err != nil {
		return renderError(c, err)
	}

	version, err := h.versions.AddVersion(c.Request().Context(), principal, appUID, draft, content, mediaType)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusCreated, version)
}

// RemoveVersion detaches a version from an app
// DELETE /api/v1/apps/:uid/versions/:versionUid
func (h *VersionHandler) RemoveVersion(c echo.Context) error {
	appUID, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}
	versionUID, err := parseUID(c, "versionUid")
	if err != nil {
		return renderError(c, err)
	}

	if err := h.versions.RemoveVersion(c.Request().Context(), appmiddleware.CurrentUser(c), appUID, versionUID); err != nil {
		return renderError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// DownloadVersion streams a version's artifact
// GET /api/v1/apps/:uid/versions/:versionUid/download
func (h *VersionHandler) DownloadVersion(c echo.Context) error {
	appUID, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}
	versionUID, err := parseUID(c, "versionUid")
	if err != nil {
		return renderError(c, err)
	}

	content, version, err := h.versions.DownloadVersion(c.Request().Context(), appmiddleware.CurrentUser(c), appUID, versionUID)
	if err != nil {
		return renderError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-%s"`, version.AppUID, version.Version))

	return c.Blob(http.StatusOK, "application/octet-stream", content)
}
