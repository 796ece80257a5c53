package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"affimporter/internal/auth"
	"affimporter/internal/database"
	"affimporter/internal/logger"
	"affimporter/internal/models"
	"affimporter/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T) (*gin.Engine, *auth.NonceManager, map[models.UserRole]*models.User) {
	t.Helper()
	db := database.NewTest(t)
	s := store.New(db.DB)
	nonces := auth.NewNonceManager("test-secret", time.Hour)

	users := map[models.UserRole]*models.User{}
	for _, role := range []models.UserRole{models.UserRoleAdmin, models.UserRoleViewer} {
		u, err := s.EnsureUser(context.Background(), string(role)+"@example.com", string(role), role)
		require.NoError(t, err)
		users[role] = u
	}

	r := gin.New()
	r.Use(RequestID(), Identify(s, logger.NewNop()))
	r.GET("/protected",
		RequireCapability(models.CapEditPosts),
		RequireNonce(nonces),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"user": CurrentUser(c).ID}) })
	r.GET("/me", RequireUser(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, nonces, users
}

func do(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_Anonymous(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := do(r, "/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"rest_not_logged_in"`)

	w = do(r, "/protected", map[string]string{HeaderUserID: "9999"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/me", map[string]string{HeaderUserID: "abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_MissingCapability(t *testing.T) {
	r, nonces, users := newAuthRouter(t)
	viewer := users[models.UserRoleViewer]
	nonce, err := nonces.Create(viewer.ID, auth.ActionREST)
	require.NoError(t, err)

	w := do(r, "/protected", map[string]string{
		HeaderUserID: strconv.Itoa(int(viewer.ID)),
		HeaderNonce:  nonce,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"rest_forbidden"`)
}

func TestAuth_Nonce(t *testing.T) {
	r, nonces, users := newAuthRouter(t)
	admin := users[models.UserRoleAdmin]
	id := strconv.Itoa(int(admin.ID))

	w := do(r, "/protected", map[string]string{HeaderUserID: id})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `"Invalid nonce"`, w.Body.String())

	otherUsers, err := nonces.Create(users[models.UserRoleViewer].ID, auth.ActionREST)
	require.NoError(t, err)
	w = do(r, "/protected", map[string]string{HeaderUserID: id, HeaderNonce: otherUsers})
	assert.Equal(t, http.StatusForbidden, w.Code)

	nonce, err := nonces.Create(admin.ID, auth.ActionREST)
	require.NoError(t, err)
	w = do(r, "/protected", map[string]string{HeaderUserID: id, HeaderNonce: nonce})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	r, _, _ := newAuthRouter(t)
	w := do(r, "/me", map[string]string{HeaderRequestID: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://admin.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logger.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := do(r, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}
