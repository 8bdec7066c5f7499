package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := auth.DefaultOptions()

	assert.Equal(t, "/login", opts.GetLoginPath())
	assert.Equal(t, "/dashboard", opts.GetHomePath())
	assert.Equal(t, []string{"/login", "/register"}, opts.GetPublicRoutes())
	assert.Equal(t, "session_token", opts.GetSessionTokenKey())
	assert.Equal(t, "access_token", opts.GetAccessTokenKey())
	assert.Equal(t, "sidebar_collapsed", opts.GetSidebarKey())
	assert.Equal(t, 15*time.Second, opts.GetVerifyTimeout())
	assert.Equal(t, 8, opts.GetPasswordMinLength())
	assert.Equal(t, 30*time.Second, opts.GetAccessTokenLeeway())
}

func TestLoadOptionsFromEnv(t *testing.T) {
	t.Setenv("AUTH_CLIENT_LOGIN_PATH", "/signin")
	t.Setenv("AUTH_CLIENT_PUBLIC_ROUTES", "/signin,/signup,/reset")
	t.Setenv("AUTH_CLIENT_VERIFY_TIMEOUT", "5s")
	t.Setenv("AUTH_CLIENT_PASSWORD_MIN_LENGTH", "12")

	opts, err := auth.LoadOptionsFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/signin", opts.GetLoginPath())
	assert.Equal(t, []string{"/signin", "/signup", "/reset"}, opts.GetPublicRoutes())
	assert.Equal(t, 5*time.Second, opts.GetVerifyTimeout())
	assert.Equal(t, 12, opts.GetPasswordMinLength())
	assert.Equal(t, "/dashboard", opts.GetHomePath())
	assert.Equal(t, 30*time.Second, opts.GetAccessTokenLeeway())
}

func TestLoadOptionsFromEnv_Invalid(t *testing.T) {
	t.Setenv("AUTH_CLIENT_VERIFY_TIMEOUT", "soon")

	opts, err := auth.LoadOptionsFromEnv()
	assert.Error(t, err)
	assert.Equal(t, auth.DefaultOptions(), opts)
}

func TestClient_PasswordMinLengthFromConfig(t *testing.T) {
	backend := &MockBackend{}
	c := auth.New(backend, nil,
		auth.WithLogger(nopLogger{}),
		auth.WithConfig(auth.Options{PasswordMinLength: 12}),
	)

	_, err := c.Login(context.Background(), auth.LoginRequest{Email: "ana@example.com", Password: "password1"})
	assert.Equal(t, auth.KindValidation, auth.Classify(err))
	assert.Contains(t, auth.ValidationFields(err), "password")
	backend.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}
