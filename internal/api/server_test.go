package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"affimporter/internal/api/middleware"
	"affimporter/internal/config"
	"affimporter/internal/database"
	"affimporter/internal/events"
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

type testEnv struct {
	router http.Handler
	store  *store.GormStore
	admin  *models.User
	viewer *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		SiteURL:            "https://shop.example.com",
		NonceSecret:        "test-secret",
		NonceTTL:           time.Hour,
		MediaDir:           t.TempDir(),
		MediaBaseURL:       "https://shop.example.com/uploads",
		MediaFetchTimeout:  5 * time.Second,
		RemoteImageDefault: "Yes",
		DefaultPerPage:     50,
		SettingsCacheTTL:   time.Minute,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		Env:                "test",
	}
	log := logger.NewNop()
	db := database.NewTest(t)
	s := store.New(db.DB)

	admin, err := s.EnsureUser(context.Background(), "admin@example.com", "Admin", models.UserRoleAdmin)
	require.NoError(t, err)
	viewer, err := s.EnsureUser(context.Background(), "viewer@example.com", "Viewer", models.UserRoleViewer)
	require.NoError(t, err)

	srv := New(cfg, log, db, events.NewLogPublisher(log))
	return &testEnv{router: srv.Router(), store: s, admin: admin, viewer: viewer}
}

func (e *testEnv) request(t *testing.T, method, path string, user *models.User, nonce string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != nil {
		req.Header.Set(middleware.HeaderUserID, strconv.Itoa(int(user.ID)))
	}
	if nonce != "" {
		req.Header.Set(middleware.HeaderNonce, nonce)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) nonce(t *testing.T, user *models.User) string {
	t.Helper()
	w := e.request(t, http.MethodGet, "/api/v1/nonce", user, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Nonce)
	return resp.Nonce
}

func (e *testEnv) productCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := e.store.FindPosts(context.Background(), store.PostQuery{
		Type:   models.PostTypeProduct,
		Status: models.PostStatusPublish,
		Limit:  100,
	})
	require.NoError(t, err)
	return total
}

const importBody = `{
	"products": [
		{"asin": "B00GOOD", "post_title": "Good Widget", "post_name": "good-widget", "regular_price": "10", "sale_price": 7},
		{"post_title": "No ASIN", "post_name": "no-asin"}
	],
	"categories": [4, "5"]
}`

func TestProducts_RejectsInvalidNonceWithoutWriting(t *testing.T) {
	env := newTestEnv(t)

	for _, nonce := range []string{"", "garbage"} {
		w := env.request(t, http.MethodPost, "/api/v1/products", env.admin, nonce, []byte(importBody), "application/json")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `"Invalid nonce"`, w.Body.String())

		w = env.request(t, http.MethodGet, "/api/v1/products", env.admin, nonce, nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `"Invalid nonce"`, w.Body.String())
	}

	assert.Equal(t, int64(0), env.productCount(t))
}

func TestProducts_RejectsWithoutCapability(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.viewer)

	w := env.request(t, http.MethodPost, "/api/v1/products", env.viewer, nonce, []byte(importBody), "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "rest_forbidden")
	assert.Equal(t, int64(0), env.productCount(t))

	w = env.request(t, http.MethodGet, "/api/v1/nonce", nil, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProducts_ListEmpty(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.admin)

	w := env.request(t, http.MethodGet, "/api/v1/products?page=1&per_page=50", env.admin, nonce, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products": [], "total": 0, "page": 1}`, w.Body.String())
}

func TestProducts_ListHugePageIsClamped(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.admin)

	w := env.request(t, http.MethodGet, "/api/v1/products?page=99999999999999999999&per_page=99999999999999999999", env.admin, nonce, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products": [], "total": 0, "page": 1000000}`, w.Body.String())

	w = env.request(t, http.MethodGet, "/api/v1/import-issues?page=9223372036854775807&limit=100", env.admin, nonce, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"page":1000000`)
}

func TestProducts_ImportThenList(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.admin)

	w := env.request(t, http.MethodPost, "/api/v1/products", env.admin, nonce, []byte(importBody), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	var imported struct {
		ProductIDs   []uint   `json:"product_ids"`
		ProductASINs []string `json:"product_asins"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &imported))
	require.Len(t, imported.ProductIDs, 1)
	assert.Equal(t, []string{"B00GOOD"}, imported.ProductASINs)

	post, err := env.store.GetPost(context.Background(), imported.ProductIDs[0])
	require.NoError(t, err)
	assert.Equal(t, env.admin.ID, post.AuthorID)

	price, err := env.store.GetPostMeta(context.Background(), post.ID, models.MetaPrice)
	require.NoError(t, err)
	assert.Equal(t, "7", price)

	cats, err := env.store.PostTermIDs(context.Background(), post.ID, models.TaxonomyProductCat)
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 5}, cats)

	w = env.request(t, http.MethodGet, "/api/v1/products", env.admin, nonce, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var listed struct {
		Products []map[string]interface{} `json:"products"`
		Total    int                      `json:"total"`
		Page     int                      `json:"page"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Total)
	assert.Equal(t, 1, listed.Page)
	require.Len(t, listed.Products, 1)
	assert.Equal(t, "B00GOOD", listed.Products[0]["product_asin"])
	assert.Equal(t, "https://shop.example.com/product/good-widget/", listed.Products[0]["product_url"])
	assert.Equal(t, "Just now", listed.Products[0]["sync_last_date"])
	assert.Equal(t, listed.Products[0]["product_id"], listed.Products[0]["key"])
}

func TestProducts_ImportFile(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.admin)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("asin,post_title,post_name,regular_price\nB00FILE,From File,from-file,3.5\n,Missing,missing,1\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("categories", "9"))
	require.NoError(t, mw.Close())

	w := env.request(t, http.MethodPost, "/api/v1/products/import-file", env.admin, nonce, body.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"product_asins":["B00FILE"]`)

	var bad bytes.Buffer
	mw = multipart.NewWriter(&bad)
	fw, err = mw.CreateFormFile("file", "products.txt")
	require.NoError(t, err)
	fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	w = env.request(t, http.MethodPost, "/api/v1/products/import-file", env.admin, nonce, bad.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettings_AmazonLifecycle(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.admin)

	w := env.request(t, http.MethodGet, "/api/v1/settings/amazon", env.admin, nonce, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"access_key":"","secret_key":"","country_code":"us","affiliate_id":""}`, w.Body.String())

	invalid := `{"access_key":"AK","secret_key":"SK","country_code":"zz","affiliate_id":"tag-20"}`
	w = env.request(t, http.MethodPost, "/api/v1/settings/amazon/verify", env.admin, nonce, []byte(invalid), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Amazon API settings are not valid")

	valid := strings.Replace(invalid, `"zz"`, `"de"`, 1)
	w = env.request(t, http.MethodPost, "/api/v1/settings/amazon/verify", env.admin, nonce, []byte(valid), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodPost, "/api/v1/settings/amazon", env.admin, nonce, []byte(valid), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/api/v1/settings/amazon", env.admin, nonce, nil, "")
	assert.JSONEq(t, `{"access_key":"AK","secret_key":"SK","country_code":"de","affiliate_id":"tag-20"}`, w.Body.String())
}

func TestSettings_GeneralDrivesImageHandling(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.admin)

	w := env.request(t, http.MethodPost, "/api/v1/settings/general", env.admin, nonce, []byte(`{"remote_image":"No"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/api/v1/settings/general", env.admin, nonce, nil, "")
	assert.JSONEq(t, `{"remote_image":"No"}`, w.Body.String())

	// The image host is unreachable: the product imports without a thumbnail.
	body := `{"products":[{"asin":"B00IMG","post_title":"Img","post_name":"img","image_primary":"http://127.0.0.1:1/a.jpg"}]}`
	w = env.request(t, http.MethodPost, "/api/v1/products", env.admin, nonce, []byte(body), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"product_asins":["B00IMG"]`)

	w = env.request(t, http.MethodPost, "/api/v1/settings/general", env.admin, nonce, []byte(`{"remote_image":"Sometimes"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportIssues(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.nonce(t, env.admin)
	ctx := context.Background()

	issue := &models.ImportIssue{
		BatchID:     "batch-1",
		ASIN:        "B00X",
		Code:        "missing_title",
		Severity:    models.IssueSeverityLow,
		Explanation: "Candidate has no title",
	}
	require.NoError(t, env.store.CreateIssue(ctx, issue))

	w := env.request(t, http.MethodGet, "/api/v1/import-issues?resolved=false", env.admin, nonce, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), issue.ID)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = env.request(t, http.MethodPost, "/api/v1/import-issues/"+issue.ID+"/resolve", env.admin, nonce, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_resolved":true`)

	w = env.request(t, http.MethodGet, "/api/v1/import-issues?resolved=false", env.admin, nonce, nil, "")
	assert.Contains(t, w.Body.String(), `"data":[]`)

	w = env.request(t, http.MethodPost, "/api/v1/import-issues/unknown/resolve", env.admin, nonce, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/health", nil, "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = env.request(t, http.MethodGet, "/metrics", nil, "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "affimporter_http_requests_total")
}
