package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	appmiddleware "github.com/dhis2/dhis2-apptore/cmd/apphub/middleware"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/service"
	"github.com/dhis2/dhis2-apptore/common/bootstrap"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// ReviewHandler handles app review requests
type ReviewHandler struct {
	components *bootstrap.Components
	reviews    *service.ReviewLedger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(components *bootstrap.Components, reviews *service.ReviewLedger) *ReviewHandler {
	return &ReviewHandler{
		components: components,
		reviews:    reviews,
	}
}

// AddReview attaches a review to an app
// POST /api/v1/apps/:uid/reviews
func (h *ReviewHandler) AddReview(c echo.Context) error {
	appUID, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}

	var draft models.ReviewDraft
	if err := c.Bind(&draft); err != nil {
		return renderError(c, fmt.Errorf("%w: malformed body", errs.ErrInvalidArgument))
	}

	review, err := h.reviews.AddReview(c.Request().Context(), appmiddleware.CurrentUser(c), appUID, draft)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusCreated, review)
}

// ListReviews lists an app's reviews in insertion order
// GET /api/v1/apps/:uid/reviews
func (h *ReviewHandler) ListReviews(c echo.Context) error {
	appUID, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}

	reviews, err := h.reviews.ListReviews(c.Request().Context(), appmiddleware.CurrentUser(c), appUID)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(http.StatusOK, reviews)
}

// RemoveReview detaches a review, app owner only
// DELETE /api/v1/apps/:uid/reviews/:reviewUid
func (h *ReviewHandler) RemoveReview(c echo.Context) error {
	appUID, err := parseUID(c, "uid")
	if err != nil {
		return renderError(c, err)
	}
	reviewUID, err := parseUID(c, "reviewUid")
	if err != nil {
		return renderError(c, err)
	}

	if err := h.reviews.RemoveReview(c.Request().Context(), appmiddleware.CurrentUser(c), appUID, reviewUID); err != nil {
		return renderError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
