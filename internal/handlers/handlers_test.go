package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/middleware"
	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/queue"
	"github.com/miskyy7507/vibezone/internal/service"
	"github.com/miskyy7507/vibezone/internal/storage"
	"github.com/miskyy7507/vibezone/internal/testutil"
)

const testPassword = "Aa1!aaaa"

type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, queue.Task) error { return nil }

type testAPI struct {
	engine *gin.Engine
	mem    *testutil.Memory
	store  *storage.MemoryStore
}

func newTestAPI(t *testing.T, checks ...HealthCheck) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			SessionSecret: "test-secret",
			SessionTTL:    time.Hour,
			MaxSessions:   3,
			CookieName:    "session",
		},
		Uploads: config.UploadsConfig{MaxBytes: 1 << 20},
	}

	mem := testutil.NewMemory()
	repos := mem.Repositories()
	store := storage.NewMemoryStore()
	log := zerolog.Nop()

	uploads := service.NewUploadService(store, cfg.Uploads.MaxBytes, log)
	posts := service.NewPostService(repos, uploads, log)
	comments := service.NewCommentService(repos, log)
	services := Services{
		Auth:       service.NewAuthService(repos.Users, repos.Profiles, repos.Sessions, cfg.Security, log),
		Posts:      posts,
		Comments:   comments,
		Profiles:   service.NewProfileService(repos.Profiles, uploads, log),
		Moderation: service.NewModerationService(repos, posts, comments, uploads, nopQueue{}, log),
		Uploads:    uploads,
	}

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Recovery(log))
	NewHandlerSet(log, cfg, services, checks).Register(engine)

	return &testAPI{engine: engine, mem: mem, store: store}
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	cookie      *http.Cookie
}

func (a *testAPI) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(r.method, r.path, r.body)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) json(t *testing.T, method, path string, payload any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return a.do(t, request{method: method, path: path, body: body, contentType: "application/json", cookie: cookie})
}

// login registers username and returns its session cookie and profile id.
func (a *testAPI) login(t *testing.T, username string) (*http.Cookie, string) {
	t.Helper()
	rec := a.json(t, http.MethodPost, "/api/auth/register", gin.H{"username": username, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))

	rec = a.json(t, http.MethodPost, "/api/auth/login", gin.H{"login": username, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c, profile.ID.Hex()
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil, ""
}

func (a *testAPI) createPost(t *testing.T, cookie *http.Cookie, content string) models.PostView {
	t.Helper()
	rec := a.json(t, http.MethodPost, "/api/post", gin.H{"content": content}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var post models.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	return post
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	cookie, profileID := api.login(t, "alice")
	assert.True(t, cookie.HttpOnly)

	rec := api.json(t, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, profileID, me["_id"])
	assert.Equal(t, "alice", me["username"])
	assert.Equal(t, "user", me["role"])

	rec = api.json(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.json(t, http.MethodGet, "/api/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeError(t, rec)["error"])
}

func TestRegisterDuplicateUsername(t *testing.T) {
	api := newTestAPI(t)
	api.login(t, "alice")

	rec := api.json(t, http.MethodPost, "/api/auth/register", gin.H{"username": "alice", "password": testPassword}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username", decodeError(t, rec)["item"])
}

func TestRegisterWeakPassword(t *testing.T) {
	api := newTestAPI(t)

	rec := api.json(t, http.MethodPost, "/api/auth/register", gin.H{"username": "alice", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decodeError(t, rec)["item"])
}

func TestLoginWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	api.login(t, "alice")

	rec := api.json(t, http.MethodPost, "/api/auth/login", gin.H{"login": "alice", "password": "Bb2@bbbb"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	api := newTestAPI(t)
	cookie, _ := api.login(t, "alice")

	forged := &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}
	rec := api.json(t, http.MethodGet, "/api/auth/me", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Reads stay open to anonymous callers.
	rec = api.json(t, http.MethodGet, "/api/post/all", nil, forged)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMalformedIDBeforeAuth(t *testing.T) {
	api := newTestAPI(t)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/post/nope"},
		{http.MethodDelete, "/api/post/nope"},
		{http.MethodPut, "/api/comment/123/like"},
		{http.MethodGet, "/api/post/user/xyz"},
		{http.MethodDelete, "/api/profile/zz"},
	} {
		rec := api.json(t, r.method, r.path, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, r.path)
		assert.Equal(t, "Malformed id", decodeError(t, rec)["error"], r.path)
	}
}

func TestCreatePost(t *testing.T) {
	api := newTestAPI(t)

	rec := api.json(t, http.MethodPost, "/api/post", gin.H{"content": "hello"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie, profileID := api.login(t, "alice")

	rec = api.json(t, http.MethodPost, "/api/post", gin.H{"content": strings.Repeat("ą", 151)}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content", decodeError(t, rec)["item"])

	post := api.createPost(t, cookie, "  hello  ")
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, profileID, post.Author.ID.Hex())
	assert.Zero(t, post.LikeCount)

	rec = api.json(t, http.MethodGet, "/api/post/all", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []models.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)
}

func TestCreatePostWithImage(t *testing.T) {
	api := newTestAPI(t)
	cookie, _ := api.login(t, "alice")

	body, ct := testutil.MultipartBody(t, "image", "pic.png", "image/png", testutil.PNG, map[string]string{"content": "look"})
	rec := api.do(t, request{method: http.MethodPost, path: "/api/post", body: body, contentType: ct, cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var post models.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	require.NotNil(t, post.ImageURL)
	assert.True(t, api.store.Has(*post.ImageURL))

	rec = api.do(t, request{method: http.MethodGet, path: "/uploads/" + *post.ImageURL})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, testutil.PNG, rec.Body.Bytes())
}

func TestCreatePostRejectsFakeImage(t *testing.T) {
	api := newTestAPI(t)
	cookie, _ := api.login(t, "alice")

	body, ct := testutil.MultipartBody(t, "image", "pic.png", "image/png", []byte("<svg></svg>"), map[string]string{"content": "look"})
	rec := api.do(t, request{method: http.MethodPost, path: "/api/post", body: body, contentType: ct, cookie: cookie})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "image", decodeError(t, rec)["item"])
}

func TestServeUploadNotFound(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/uploads/missing.png", "/uploads/..%2fsecret", "/uploads/a/b.png"} {
		rec := api.do(t, request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestDeletePostPolicy(t *testing.T) {
	api := newTestAPI(t)
	alice, _ := api.login(t, "alice")
	bob, _ := api.login(t, "bob")
	post := api.createPost(t, alice, "mine")
	path := "/api/post/" + post.ID.Hex()

	rec := api.json(t, http.MethodDelete, path, nil, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", decodeError(t, rec)["error"])

	rec = api.json(t, http.MethodDelete, path, nil, alice)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.json(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Already gone.
	rec = api.json(t, http.MethodDelete, path, nil, alice)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLikePost(t *testing.T) {
	api := newTestAPI(t)
	alice, _ := api.login(t, "alice")
	post := api.createPost(t, alice, "like me")
	path := "/api/post/" + post.ID.Hex()

	for i := 0; i < 2; i++ {
		rec := api.json(t, http.MethodPut, path+"/like", nil, alice)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := api.json(t, http.MethodGet, path, nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 1, view.LikeCount)
	assert.True(t, view.IsLikedByUser)

	rec = api.json(t, http.MethodGet, path, nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.False(t, view.IsLikedByUser)

	rec = api.json(t, http.MethodDelete, path+"/like", nil, alice)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.json(t, http.MethodPut, "/api/post/000000000000000000000000/like", nil, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComments(t *testing.T) {
	api := newTestAPI(t)
	alice, _ := api.login(t, "alice")
	bob, _ := api.login(t, "bob")
	post := api.createPost(t, alice, "discuss")

	rec := api.json(t, http.MethodPost, "/api/comment/"+post.ID.Hex(), gin.H{"content": "first"}, bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var comment models.CommentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comment))
	assert.Equal(t, "bob", comment.User.Username)

	for _, path := range []string{"/api/post/" + post.ID.Hex() + "/comments", "/api/comment/post/" + post.ID.Hex()} {
		rec = api.json(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var comments []models.CommentView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
		require.Len(t, comments, 1, path)
		assert.Equal(t, comment.ID, comments[0].ID)
	}

	rec = api.json(t, http.MethodGet, "/api/post/"+post.ID.Hex(), nil, nil)
	var view models.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 1, view.CommentCount)

	rec = api.json(t, http.MethodDelete, "/api/comment/"+comment.ID.Hex(), nil, alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.json(t, http.MethodDelete, "/api/comment/"+comment.ID.Hex(), nil, bob)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.json(t, http.MethodGet, "/api/comment/post/000000000000000000000000", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	api := newTestAPI(t)
	alice, profileID := api.login(t, "alice")

	rec := api.json(t, http.MethodPatch, "/api/profile", gin.H{"displayName": "Alice", "aboutDesc": "hi"}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.json(t, http.MethodPatch, "/api/profile", gin.H{"aboutDesc": nil}, alice)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.json(t, http.MethodGet, "/api/profile/"+profileID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.NotNil(t, profile.DisplayName)
	assert.Equal(t, "Alice", *profile.DisplayName)
	assert.Nil(t, profile.AboutDesc)
}

func TestProfilePicture(t *testing.T) {
	api := newTestAPI(t)
	alice, _ := api.login(t, "alice")

	rec := api.do(t, request{method: http.MethodPut, path: "/api/profile/picture", cookie: alice, contentType: "application/json", body: strings.NewReader("{}")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct := testutil.MultipartBody(t, "image", "me.png", "image/png", testutil.PNG, nil)
	rec = api.do(t, request{method: http.MethodPut, path: "/api/profile/picture", body: body, contentType: ct, cookie: alice})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.NotNil(t, profile.ProfilePictureURI)
	picture := *profile.ProfilePictureURI
	assert.True(t, api.store.Has(picture))

	rec = api.json(t, http.MethodDelete, "/api/profile/picture", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, api.store.Has(picture))
}

func TestBanProfile(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceID := api.login(t, "alice")
	bob, bobID := api.login(t, "bob")
	api.createPost(t, bob, "soon gone")

	rec := api.json(t, http.MethodDelete, "/api/profile/"+bobID, nil, alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	api.mem.SetRole(aliceID, models.UserRoleModerator)
	// Role is captured at login.
	rec = api.json(t, http.MethodPost, "/api/auth/login", gin.H{"login": "alice", "password": testPassword}, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	alice = rec.Result().Cookies()[0]

	rec = api.json(t, http.MethodDelete, "/api/profile/"+bobID, nil, alice)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.json(t, http.MethodGet, "/api/auth/me", nil, bob)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.json(t, http.MethodGet, "/api/profile/"+bobID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.json(t, http.MethodGet, "/api/post/all", nil, nil)
	var posts []models.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	assert.Empty(t, posts)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t,
		HealthCheck{Name: "mongo", Ping: func(context.Context) error { return nil }},
	)
	rec := api.json(t, http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	api = newTestAPI(t,
		HealthCheck{Name: "mongo", Ping: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("down") }},
	)
	rec = api.json(t, http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"mongo": "ok", "redis": "error"}, body.Checks)
}

func TestPageFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		want  models.Page
	}{
		{"", models.Page{Number: 1, PerPage: models.DefaultPerPage}},
		{"page=3&perPage=5", models.Page{Number: 3, PerPage: 5}},
		{"page=-1&perPage=100000", models.Page{Number: 1, PerPage: models.DefaultPerPage}},
		{"page=abc&perPage=0", models.Page{Number: 1, PerPage: models.DefaultPerPage}},
		{"perPage=200", models.Page{Number: 1, PerPage: models.MaxPerPage}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			assert.Equal(t, tc.want, pageFrom(c))
		})
	}
}
