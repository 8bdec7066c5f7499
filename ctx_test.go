package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	user := analyst()
	ctx := auth.WithContext(context.Background(), user)

	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)

	user.AllowedRoutes[0] = "/admin"
	assert.Equal(t, []string{"/dashboard"}, got.AllowedRoutes, "context keeps its own copy")

	id, ok := auth.UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "1", id)
}

func TestContextEmpty(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)

	_, ok = auth.UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = auth.UserIDFromContext(auth.WithContext(context.Background(), &auth.UserInfo{}))
	assert.False(t, ok)
}
