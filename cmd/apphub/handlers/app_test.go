package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/container"
	appmiddleware "github.com/dhis2/dhis2-apptore/cmd/apphub/middleware"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/routes"
	"github.com/dhis2/dhis2-apptore/common/bootstrap"
	"github.com/dhis2/dhis2-apptore/common/cache"
	"github.com/dhis2/dhis2-apptore/common/config"
	"github.com/dhis2/dhis2-apptore/common/logger"
	"github.com/dhis2/dhis2-apptore/common/queue"
)

const testSecret = "handler-test-secret"

// testServer wires the full HTTP stack over in-memory backends
type testServer struct {
	echo *echo.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewNop()
	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "apphub", Port: 0},
		Auth:    config.AuthConfig{JWTSecret: testSecret, AccessTTL: time.Hour},
		Uploads: config.UploadConfig{
			MaxArtifactBytes: 1 << 20,
			RateLimit:        1000,
			RateWindowSec:    60,
			Storage:          "memory",
		},
		Cache: config.CacheConfig{Enabled: true, DefaultTTL: time.Minute},
	}

	components := &bootstrap.Components{
		Config: cfg,
		Logger: log,
		Queue:  queue.NewMemoryQueue(log),
		Cache:  cache.NewMemoryCache(log),
	}

	c, err := container.NewContainer(components)
	require.NoError(t, err)

	e := echo.New()
	e.HideBanner = true
	e.Use(appmiddleware.Authenticate([]byte(testSecret)))
	routes.RegisterAppRoutes(e, c)

	return &testServer{echo: e}
}

func tokenFor(t *testing.T, principal *models.User) string {
	t.Helper()

	token, err := appmiddleware.IssueToken(principal, []byte(testSecret), jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	return token
}

func principal(roles ...string) *models.User {
	uid := uuid.New()
	return &models.User{UID: uid, Username: "u-" + uid.String()[:8], Roles: roles}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, user *models.User, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if user != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, user))
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	return rec
}

// uploadBody builds a multipart body with a JSON part and a file part
func uploadBody(t *testing.T, field, payload string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField(field, payload))

	fw, err := w.CreateFormFile("file", "app.zip")
	require.NoError(t, err)
	_, err = fw.Write(fileContent)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func (s *testServer) createApp(t *testing.T, owner *models.User, name string) models.App {
	t.Helper()

	payload := fmt.Sprintf(`{"name":%q,"app_type":"APP","min_platform_version":"2.35","version":{"version":"1.0.0"}}`, name)
	body, contentType := uploadBody(t, "app", payload, []byte(name+" bytes"))

	rec := s.do(t, http.MethodPost, "/api/v1/apps", body, owner, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var app models.App
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))

	return app
}

func (s *testServer) approve(t *testing.T, appUID uuid.UUID) {
	t.Helper()

	manager := principal(models.RoleManager)
	rec := s.do(t, http.MethodPost, "/api/v1/apps/"+appUID.String()+"/approval?status=APPROVED", nil, manager, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCreateApp_HTTP(t *testing.T) {
	s := newTestServer(t)
	owner := principal(models.RoleUser)

	app := s.createApp(t, owner, "tracker")
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Len(t, app.Versions, 1)

	// Anonymous upload is rejected
	body, contentType := uploadBody(t, "app", `{"name":"x","app_type":"APP","version":{"version":"1.0.0"}}`, []byte("zip"))
	rec := s.do(t, http.MethodPost, "/api/v1/apps", body, nil, contentType)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed type is a 400
	body, contentType = uploadBody(t, "app", `{"name":"x","app_type":"NOPE","version":{"version":"1.0.0"}}`, []byte("zip"))
	rec = s.do(t, http.MethodPost, "/api/v1/apps", body, owner, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetApp_StatusMapping(t *testing.T) {
	s := newTestServer(t)
	owner := principal(models.RoleUser)
	app := s.createApp(t, owner, "mapped")

	// Pending app: 403 for anonymous, 200 for manager
	rec := s.do(t, http.MethodGet, "/api/v1/apps/"+app.UID.String(), nil, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), app.UID.String())

	rec = s.do(t, http.MethodGet, "/api/v1/apps/"+app.UID.String(), nil, principal(models.RoleManager), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Approved app is public
	s.approve(t, app.UID)
	rec = s.do(t, http.MethodGet, "/api/v1/apps/"+app.UID.String(), nil, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown uid is 404, malformed uid is 400
	rec = s.do(t, http.MethodGet, "/api/v1/apps/"+uuid.NewString(), nil, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/apps/not-a-uuid", nil, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListApps_HTTP(t *testing.T) {
	s := newTestServer(t)
	owner := principal(models.RoleUser)

	s.createApp(t, owner, "pending-app")
	approved := s.createApp(t, owner, "approved-app")
	s.approve(t, approved.UID)

	rec := s.do(t, http.MethodGet, "/api/v1/apps", nil, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var apps []models.App
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	require.Len(t, apps, 1)
	assert.Equal(t, approved.UID, apps[0].UID)

	// Bad type filter is a 400
	rec = s.do(t, http.MethodGet, "/api/v1/apps?type=BOGUS", nil, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// myapps needs authentication
	rec = s.do(t, http.MethodGet, "/api/v1/apps/myapps", nil, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/apps/myapps", nil, owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	assert.Len(t, apps, 2)

	// all needs the manager role
	rec = s.do(t, http.MethodGet, "/api/v1/apps/all", nil, owner, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/apps/all", nil, principal(models.RoleManager), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateAndDeleteApp_HTTP(t *testing.T) {
	s := newTestServer(t)
	owner := principal(models.RoleUser)
	app := s.createApp(t, owner, "editable")
	s.approve(t, app.UID)

	update := `{"name":"renamed","app_type":"APP","min_platform_version":"2.40"}`

	// Manager without ownership gets 403
	rec := s.do(t, http.MethodPut, "/api/v1/apps/"+app.UID.String(),
		strings.NewReader(update), principal(models.RoleManager), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/apps/"+app.UID.String(),
		strings.NewReader(update), owner, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.App
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, models.StatusApproved, updated.Status)

	rec = s.do(t, http.MethodDelete, "/api/v1/apps/"+app.UID.String(), nil, owner, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/apps/"+app.UID.String(), nil, principal(models.RoleManager), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApproval_HTTP(t *testing.T) {
	s := newTestServer(t)
	owner := principal(models.RoleUser)
	app := s.createApp(t, owner, "pending")

	rec := s.do(t, http.MethodPost, "/api/v1/apps/"+app.UID.String()+"/approval?status=APPROVED", nil, owner, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/apps/"+app.UID.String()+"/approval?status=SOMETIMES", nil, principal(models.RoleManager), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/apps/"+app.UID.String()+"/approval?status=APPROVED", nil, principal(models.RoleManager), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var approved models.App
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	assert.Equal(t, models.StatusApproved, approved.Status)
}

func TestVersions_HTTP(t *testing.T) {
	s := newTestServer(t)
	owner := principal(models.RoleUser)
	app := s.createApp(t, owner, "versioned")
	s.approve(t, app.UID)

	body, contentType := uploadBody(t, "version", `{"version":"2.0.0"}`, []byte("v2 bytes"))
	rec := s.do(t, http.MethodPost, "/api/v1/apps/"+app.UID.String()+"/versions", body, owner, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var version models.AppVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	assert.Equal(t, "2.0.0", version.Version)

	// Download returns the stored bytes
	rec = s.do(t, http.MethodGet,
		"/api/v1/apps/"+app.UID.String()+"/versions/"+version.UID.String()+"/download", nil, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("v2 bytes"), rec.Body.Bytes())

	// Non-owner cannot remove
	rec = s.do(t, http.MethodDelete,
		"/api/v1/apps/"+app.UID.String()+"/versions/"+version.UID.String(), nil, principal(models.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete,
		"/api/v1/apps/"+app.UID.String()+"/versions/"+version.UID.String(), nil, owner, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReviews_HTTP(t *testing.T) {
	s := newTestServer(t)
	owner := principal(models.RoleUser)
	app := s.createApp(t, owner, "reviewed")
	s.approve(t, app.UID)

	author := principal(models.RoleUser)
	rec := s.do(t, http.MethodPost, "/api/v1/apps/"+app.UID.String()+"/reviews",
		strings.NewReader(`{"text":"five stars"}`), author, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var review models.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &review))
	assert.Equal(t, author.UID, review.AuthorUID)

	// Listing requires authentication
	rec = s.do(t, http.MethodGet, "/api/v1/apps/"+app.UID.String()+"/reviews", nil, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/apps/"+app.UID.String()+"/reviews", nil, author, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var reviews []models.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reviews))
	assert.Len(t, reviews, 1)

	// The author cannot delete; the app owner can
	rec = s.do(t, http.MethodDelete,
		"/api/v1/apps/"+app.UID.String()+"/reviews/"+review.UID.String(), nil, author, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete,
		"/api/v1/apps/"+app.UID.String()+"/reviews/"+review.UID.String(), nil, owner, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
