package middleware

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dhis2/dhis2-apptore/common/ratelimit"
)

// isInternalRequest checks if the request is from an internal service
// Internal services set X-Internal-Service header to bypass rate limits
func isInternalRequest(c echo.Context) bool {
	internalHeader := c.Request().Header.Get("X-Internal-Service")
	if internalHeader == "" {
		return false
	}

	// Verify against shared secret (prevents spoofing)
	expectedSecret := os.Getenv("INTERNAL_SERVICE_SECRET")
	if expectedSecret == "" {
		return false
	}

	return internalHeader == expectedSecret
}

// UploadRateLimitMiddleware throttles artifact uploads per user. The caller
// supplies an extractor for the authenticated principal's uid; anonymous
// requests pass through, authentication is enforced downstream. A nil
// limiter disables throttling, and limiter errors fail open so Redis being
// down never blocks uploads.
func UploadRateLimitMiddleware(limiter *ratelimit.Limiter, limit int64, windowSec int, userUID func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil || isInternalRequest(c) {
				return next(c)
			}

			uid := userUID(c)
			if uid == "" {
				return next(c)
			}

			result, err := limiter.CheckUploadLimit(c.Request().Context(), uid, limit, windowSec)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "upload_rate_limit_exceeded",
					"message": "You have exceeded your upload quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window_seconds":      windowSec,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
