package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appmiddleware "github.com/dhis2/dhis2-apptore/cmd/apphub/middleware"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/query"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/service"
	"github.com/dhis2/dhis2-apptore/common/bootstrap"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// AppHandler handles app catalog requests
type AppHandler struct {
	components *bootstrap.Components
	catalog    *service.AppCatalog
	approvals  *service.ApprovalWorkflow
}

// NewAppHandler creates a new app handler
func NewAppHandler(components *bootstrap.Components, catalog *service.AppCatalog, approvals *service.ApprovalWorkflow) *AppHandler {
	return &AppHandler{
		components: components,
		catalog:    catalog,
		approvals:  approvals,
	}
}

// appSubmission is the JSON part of a multipart app upload
type appSubmission struct {
	models.AppDraft
	Version models.VersionDraft `json:"version"`
}

// CreateApp submits a new app with its first version artifact
// POST /api/v1/apps
func (h *AppHandler) CreateApp(c echo.Context) error {
	principal := appmiddleware.CurrentUser(c)

	var submission appSubmission
	if raw := c.FormValue("app"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &submission); err != nil {
			return renderError(c, fmt.Errorf("%w: malformed app payload: %v", errs.ErrInvalidArgument, err))
		}
	} else {
		return renderError(c, fmt.Errorf("%w: app form field is required", errs.ErrInvalidArgument))
	}

	content, mediaType, err := readArtifact(c, h.components.Config.Uploads.MaxArtifactBytes)
	if err != nil {
		return renderError(c, err)
	}

	app, err := h.catalog.Create(c.Request().Context(), principal, submission.AppDraft, submission.Version, content, mediaType)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusCreated, app)
}

// ListApps lists apps matching optional criteria
// GET /api/v1/apps?type=APP&minVersion=2.35
func (h *AppHandler) ListApps(c echo.Context) error {
	criteria, err := query.Build(c.QueryParam("type"), c.QueryParam("minVersion"))
	if err != nil {
		return renderError(c, err)
	}

	apps, err := h.catalog.List(c.Request().Context(), appmiddleware.CurrentUser(c), criteria)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusOK, apps)
}

// ListMyApps lists the caller's own apps, any status
// GET /api/v1/apps/myapps
func (h *AppHandler) ListMyApps(c echo.Context) error {
	apps, err := h.catalog.ListMine(c.Request().Context(), appmiddleware.CurrentUser(c))
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusOK, apps)
}

// ListAllApps lists every app regardless of status, manager only
// GET /api/v1/apps/all
func (h *AppHandler) ListAllApps(c echo.Context) error {
	apps, err := h.catalog.ListAll(c.Request().Context(), appmiddleware.CurrentUser(c))
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusOK, apps)
}

// GetApp retrieves a single app
// GET /api/v1/apps/:uid
func (h *AppHandler) GetApp(c echo.Context) error {
	uid, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}

	app, err := h.catalog.Get(c.Request().Context(), appmiddleware.CurrentUser(c), uid)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusOK, app)
}

// UpdateApp updates an app's mutable fields
// PUT /api/v1/apps/:uid
func (h *AppHandler) UpdateApp(c echo.Context) error {
	uid, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}

	var draft models.AppDraft
	if err := c.Bind(&draft); err != nil {
		return renderError(c, fmt.Errorf("%w: malformed body", errs.ErrInvalidArgument))
	}

	app, err := h.catalog.Update(c.Request().Context(), appmiddleware.CurrentUser(c), uid, draft)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusOK, app)
}

// DeleteApp deletes an app and all its versions and reviews
// DELETE /api/v1/apps/:uid
func (h *AppHandler) DeleteApp(c echo.Context) error {
	uid, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}

	if err := h.catalog.Delete(c.Request().Context(), appmiddleware.CurrentUser(c), uid); err != nil {
		return renderError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// SetApproval decides an app's approval status
// POST /api/v1/apps/:uid/approval?status=APPROVED
func (h *AppHandler) SetApproval(c echo.Context) error {
	uid, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}

	status := c.QueryParam("status")
	if status == "" {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.Bind(&body); err == nil {
			status = body.Status
		}
	}

	app, err := h.approvals.SetApproval(c.Request().Context(), appmiddleware.CurrentUser(c), uid, status)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusOK, app)
}

// parseUID parses a uuid path parameter
func parseUID(c echo.Context, name string) (uuid.UUID, error) {
	uid, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s format", errs.ErrInvalidArgument, name)
	}
	return uid, nil
}
