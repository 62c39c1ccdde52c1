package server

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/authz"
	"inkwell/internal/middleware"
	"inkwell/internal/repository"
)

func TestRegister_Success(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"Passw0rd!"},
		"confirm_password": {"Passw0rd!"},
	}
	resp := env.postForm(t, "/register", form, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Contains(t, flashMessage(t, resp), "Registration successful")

	userRepo := repository.NewUserRepository(env.db)
	user, err := userRepo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, user)

	// A fresh account is a reader and nothing more.
	groups, err := userRepo.GroupsOf(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, authz.RoleReaders, groups[0].Name)

	caps, err := userRepo.Capabilities(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, caps.Has(authz.CapViewPost))
	assert.False(t, caps.Has(authz.CapAddPost))
}

func TestRegister_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	env.createReader(t, "taken")

	tests := []struct {
		name  string
		form  url.Values
		field string
	}{
		{
			name: "short password",
			form: url.Values{
				"username":         {"bob"},
				"email":            {"bob@example.com"},
				"password":         {"short"},
				"confirm_password": {"short"},
			},
			field: "password",
		},
		{
			name: "password mismatch",
			form: url.Values{
				"username":         {"bob"},
				"email":            {"bob@example.com"},
				"password":         {"Passw0rd!"},
				"confirm_password": {"Different1!"},
			},
			field: "password",
		},
		{
			name: "invalid email",
			form: url.Values{
				"username":         {"bob"},
				"email":            {"not-an-email"},
				"password":         {"Passw0rd!"},
				"confirm_password": {"Passw0rd!"},
			},
			field: "email",
		},
		{
			name: "duplicate username",
			form: url.Values{
				"username":         {"taken"},
				"email":            {"new@example.com"},
				"password":         {"Passw0rd!"},
				"confirm_password": {"Passw0rd!"},
			},
			field: "username",
		},
		{
			name: "duplicate email",
			form: url.Values{
				"username":         {"someoneelse"},
				"email":            {"taken@example.com"},
				"password":         {"Passw0rd!"},
				"confirm_password": {"Passw0rd!"},
			},
			field: "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postForm(t, "/register", tt.form, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			payload := decodeJSON(t, resp)
			assert.Equal(t, "VALIDATION_ERROR", payload["code"])
			fields, ok := payload["fields"].(map[string]any)
			require.True(t, ok, "payload: %v", payload)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createReader(t, "carol")

	// Wrong password and unknown username produce identical responses.
	for _, form := range []url.Values{
		{"username": {"carol"}, "password": {"WrongPass1!"}},
		{"username": {"nobody"}, "password": {"Passw0rd!"}},
	} {
		resp := env.postForm(t, "/login", form, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		payload := decodeJSON(t, resp)
		assert.Equal(t, "Invalid username or password.", payload["error"])
	}
}

func TestLogin_SuccessSetsSessionAndRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.createAuthor(t, "dave")

	form := url.Values{"username": {"dave"}, "password": {"Passw0rd!"}}
	resp := env.postForm(t, "/login", form, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	session := responseCookie(resp, middleware.SessionCookie)
	require.NotEmpty(t, session)

	// The session cookie opens the dashboard.
	dash := env.get(t, "/dashboard", session)
	defer dash.Body.Close()
	assert.Equal(t, http.StatusOK, dash.StatusCode)
}

func TestRegisterLoginDashboardFlow(t *testing.T) {
	env := newTestEnv(t)

	register := url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"Passw0rd!"},
		"confirm_password": {"Passw0rd!"},
	}
	resp := env.postForm(t, "/register", register, "")
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	login := url.Values{"username": {"alice"}, "password": {"Passw0rd!"}}
	resp = env.postForm(t, "/login", login, "")
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestLogout_ClearsSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createAuthor(t, "erin")
	session := env.sessionFor(t, user)

	resp := env.get(t, "/logout", session)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, responseCookie(resp, middleware.SessionCookie))
}

func TestAuthenticatedUserBouncedFromLogin(t *testing.T) {
	env := newTestEnv(t)
	user := env.createReader(t, "frank")
	session := env.sessionFor(t, user)

	for _, path := range []string{"/login", "/register"} {
		resp := env.get(t, path, session)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	}
}
