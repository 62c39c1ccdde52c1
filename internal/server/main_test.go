package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"inkwell/internal/authz"
	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/mail"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// testEnv bundles a fully wired app backed by sqlite and miniredis.
type testEnv struct {
	app    *fiber.App
	server *Server
	db     *gorm.DB
	mailer *mail.Recorder
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, bootstrap.Roles(context.Background(), db))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Port:      "8264",
		BaseURL:   "http://localhost:8264",
		JWTSecret: "test-secret-not-for-production-use",
		MediaDir:  t.TempDir(),
		MailFrom:  "noreply@example.com",
		Env:       "test",
	}
	middleware.InitMiddleware(cfg)

	mailer := &mail.Recorder{}
	s := NewServerWithDeps(cfg, db, rdb, mailer)

	app := fiber.New()
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	return &testEnv{app: app, server: s, db: db, mailer: mailer, redis: mr}
}

// createUser inserts a user with a bcrypt-hashed password and the given role
// group memberships.
func (e *testEnv) createUser(t *testing.T, username, email, password string, roles ...string) *models.User {
	t.Helper()

	ctx := context.Background()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(e.db)
	user := &models.User{Username: username, Email: email, Password: string(hashed)}
	require.NoError(t, userRepo.Create(ctx, user))
	for _, role := range roles {
		require.NoError(t, userRepo.AddToGroup(ctx, user, role))
	}
	return user
}

func (e *testEnv) createReader(t *testing.T, username string) *models.User {
	return e.createUser(t, username, username+"@example.com", "Passw0rd!", authz.RoleReaders)
}

func (e *testEnv) createAuthor(t *testing.T, username string) *models.User {
	return e.createUser(t, username, username+"@example.com", "Passw0rd!",
		authz.RoleReaders, authz.RoleAuthors)
}

func (e *testEnv) createEditor(t *testing.T, username string) *models.User {
	return e.createUser(t, username, username+"@example.com", "Passw0rd!",
		authz.RoleReaders, authz.RoleEditors)
}

// sessionFor mints a session cookie value for the user.
func (e *testEnv) sessionFor(t *testing.T, user *models.User) string {
	t.Helper()

	tok, err := e.server.generateToken(user.ID, user.Username)
	require.NoError(t, err)
	return tok
}

// createPost inserts a post owned by the user.
func (e *testEnv) createPost(t *testing.T, user *models.User, title string, published bool, categoryID *uint) *models.Post {
	t.Helper()

	post := &models.Post{
		Title:      title,
		Content:    strings.Repeat("words and more words. ", 3),
		UserID:     &user.ID,
		CategoryID: categoryID,
	}
	require.NoError(t, e.server.postRepo.Create(context.Background(), post))
	if published {
		post.IsPublished = true
		require.NoError(t, e.server.postRepo.Update(context.Background(), post))
	}
	return post
}

func (e *testEnv) createCategory(t *testing.T, name string) *models.Category {
	t.Helper()

	category := &models.Category{Name: name}
	require.NoError(t, e.server.categoryRepo.Create(context.Background(), category))
	return category
}

// get performs a GET request, optionally with a session cookie.
func (e *testEnv) get(t *testing.T, path, session string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if session != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: session})
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// postForm performs a form-encoded POST request, optionally with a session
// cookie.
func (e *testEnv) postForm(t *testing.T, path string, form url.Values, session string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if session != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: session})
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// decodeJSON reads the response body into a generic map.
func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload), "body: %s", body)
	return payload
}

// responseCookie returns the value of a Set-Cookie entry, or "" if absent.
func responseCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// flashMessage decodes the flash cookie set on the response.
func flashMessage(t *testing.T, resp *http.Response) string {
	t.Helper()

	raw := responseCookie(resp, "inkwell_flash")
	if raw == "" {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	_, message, _ := strings.Cut(decoded, "|")
	return message
}
