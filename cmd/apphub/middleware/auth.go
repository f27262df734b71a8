// Package middleware contains request middleware for the apphub service.
package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey ContextKey = "principal"
)

// Claims are the token claims the service issues and accepts
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Authenticate parses an optional Bearer token and stores the resulting
// principal in the request context. Requests without a token proceed
// anonymously; visibility rules downstream decide what they may see. Only a
// present-but-invalid token is rejected here.
func Authenticate(signKey []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(401, "malformed authorization header")
			}

			principal, err := parseToken(raw, signKey)
			if err != nil {
				return echo.NewHTTPError(401, "invalid token")
			}

			c.Set(string(PrincipalKey), principal)
			return next(c)
		}
	}
}

// parseToken validates an HS256 token and maps its claims to a principal
func parseToken(raw string, signKey []byte) (*models.User, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	return &models.User{
		UID:      uid,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, nil
}

// IssueToken signs an HS256 token for the given principal, used by tests
// and by deployments that front the service without an external issuer.
func IssueToken(principal *models.User, signKey []byte, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = principal.UID.String()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username:         principal.Username,
		Roles:            principal.Roles,
		RegisteredClaims: claims,
	})
	return tok.SignedString(signKey)
}

// CurrentUser retrieves the principal from the request context.
// Returns nil for anonymous requests.
func CurrentUser(c echo.Context) *models.User {
	v := c.Get(string(PrincipalKey))
	if v == nil {
		return nil
	}
	principal, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return principal
}

// RequireUser returns the principal or ErrUnauthenticated for anonymous
// requests
func RequireUser(c echo.Context) (*models.User, error) {
	principal := CurrentUser(c)
	if principal == nil {
		return nil, errs.ErrUnauthenticated
	}
	return principal, nil
}
