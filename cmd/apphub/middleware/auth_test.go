package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
)

var testKey = []byte("test-signing-key")

func issueTestToken(t *testing.T, principal *models.User, ttl time.Duration) string {
	t.Helper()

	token, err := IssueToken(principal, testKey, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	require.NoError(t, err)

	return token
}

func doRequest(t *testing.T, authorization string) (*httptest.ResponseRecorder, *models.User) {
	t.Helper()

	e := echo.New()
	e.Use(Authenticate(testKey))

	var seen *models.User
	e.GET("/probe", func(c echo.Context) error {
		seen = CurrentUser(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec, seen
}

func TestAuthenticate_ValidToken(t *testing.T) {
	principal := &models.User{
		UID:      uuid.New(),
		Username: "alice",
		Roles:    []string{models.RoleUser, models.RoleManager},
	}

	rec, seen := doRequest(t, "Bearer "+issueTestToken(t, principal, time.Hour))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, principal.UID, seen.UID)
	assert.Equal(t, "alice", seen.Username)
	assert.True(t, seen.IsManager())
}

func TestAuthenticate_AnonymousPassesThrough(t *testing.T) {
	rec, seen := doRequest(t, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	principal := &models.User{UID: uuid.New(), Username: "bob", Roles: []string{models.RoleUser}}

	cases := []struct {
		name   string
		header string
	}{
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not.a.token"},
		{"expired token", "Bearer " + issueTestToken(t, principal, -time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, seen := doRequest(t, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, seen)
		})
	}
}

func TestAuthenticate_RejectsWrongKey(t *testing.T) {
	principal := &models.User{UID: uuid.New(), Username: "eve", Roles: []string{models.RoleUser}}

	token, err := IssueToken(principal, []byte("some-other-key"), jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	rec, _ := doRequest(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUser(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := RequireUser(c)
	assert.Error(t, err)

	principal := &models.User{UID: uuid.New(), Username: "carol"}
	c.Set(string(PrincipalKey), principal)

	got, err := RequireUser(c)
	require.NoError(t, err)
	assert.Equal(t, principal.UID, got.UID)
}
