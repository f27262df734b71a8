// Package handlers contains the HTTP handlers for the apphub service.
package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dhis2/dhis2-apptore/common/errs"
)

// renderError maps service errors to HTTP responses. The mapping is the only
// place sentinel errors become status codes; handlers never pick statuses
// for failures themselves.
//
//	NotFound        404
//	Forbidden       403
//	Unauthenticated 401
//	InvalidArgument 400
//	StorageFailure  502
//	anything else   500
func renderError(c echo.Context, err error) error {
	body := map[string]interface{}{
		"error": err.Error(),
	}
	if uid := errs.UIDOf(err); uid != "" {
		body["id"] = uid
	}

	switch {
	case errors.Is(err, errs.ErrNotFound):
		return c.JSON(http.StatusNotFound, body)
	case errors.Is(err, errs.ErrForbidden):
		return c.JSON(http.StatusForbidden, body)
	case errors.Is(err, errs.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, body)
	case errors.Is(err, errs.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, errs.ErrStorageFailure):
		return c.JSON(http.StatusBadGateway, body)
	default:
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "internal server error",
		})
	}
}
