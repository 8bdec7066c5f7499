package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type bootstrapFixture struct {
	backend *MockBackend
	tokens  *store.Memory
	state   *auth.StateStore
	nav     *recordingNavigator
	sink    *recordingSink
	boot    *auth.Bootstrapper
}

func newBootstrapFixture(t *testing.T, seed map[string]string, cfg auth.Config, opts ...auth.BootstrapperOption) *bootstrapFixture {
	t.Helper()
	f := &bootstrapFixture{
		backend: &MockBackend{},
		tokens:  store.NewMemory(seed),
		state:   auth.NewStateStore(auth.WithStateLogger(nopLogger{})),
		nav:     &recordingNavigator{},
		sink:    &recordingSink{},
	}
	if cfg == nil {
		cfg = auth.DefaultOptions()
	}
	opts = append([]auth.BootstrapperOption{
		auth.WithBootstrapLogger(nopLogger{}),
		auth.WithBootstrapNavigator(f.nav),
		auth.WithBootstrapActivitySink(f.sink),
	}, opts...)
	f.boot = auth.NewBootstrapper(f.backend, f.tokens, f.state, cfg, opts...)
	return f
}

func TestBootstrap_NoSessionToken(t *testing.T) {
	f := newBootstrapFixture(t, nil, nil)

	res := f.boot.Run(context.Background())

	assert.Equal(t, auth.BootstrapNoSession, res.Outcome)
	assert.Equal(t, "/login", res.Redirect)
	f.backend.AssertNotCalled(t, "VerifySession", mock.Anything, mock.Anything)

	st := f.state.Snapshot()
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.User)
	assert.Equal(t, []string{"/login"}, f.nav.Paths())

	d := auth.NewRouteGuard(auth.DefaultOptions()).Decide("/dashboard", st)
	assert.Equal(t, auth.OutcomeRedirect, d.Outcome)
}

func TestBootstrap_VerifyRejected(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{
		auth.DefaultSessionTokenKey: "abc",
		auth.DefaultAccessTokenKey:  "old-access",
	}, nil)
	f.backend.On("VerifySession", mock.Anything, "abc").
		Return(nil, statusError(auth.OpVerifySession, http.StatusUnauthorized))

	res := f.boot.Run(context.Background())

	assert.Equal(t, auth.BootstrapSessionInvalid, res.Outcome)
	assert.Equal(t, "/login", res.Redirect)
	assert.Equal(t, auth.KindSessionInvalid, auth.Classify(res.Err))
	assert.Equal(t, auth.Unauthenticated(), f.state.Snapshot())
	assert.Empty(t, f.tokens.Snapshot())
	assert.Equal(t, []string{"/login"}, f.nav.Paths())
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventBootstrapFailure}, f.sink.Types())
	f.backend.AssertExpectations(t)
}

func TestBootstrap_VerifySucceedsThenGuard(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"}, nil)
	f.backend.On("VerifySession", mock.Anything, "abc").Return(&auth.VerifyResponse{
		UserInfo:    &auth.UserInfo{ID: "1", AllowedRoutes: []string{"/dashboard"}},
		AccessToken: "fresh-access",
	}, nil)

	res := f.boot.Run(context.Background())
	require.Equal(t, auth.BootstrapAuthenticated, res.Outcome)
	assert.Equal(t, "1", res.User.ID)
	assert.Empty(t, res.Redirect)
	assert.Empty(t, f.nav.Paths())

	st := f.state.Snapshot()
	assert.True(t, st.Authenticated)
	assert.False(t, st.Loading)

	values := f.tokens.Snapshot()
	assert.Equal(t, "abc", values[auth.DefaultSessionTokenKey], "session token kept when not renewed")
	assert.Equal(t, "fresh-access", values[auth.DefaultAccessTokenKey])

	guard := auth.NewRouteGuard(auth.DefaultOptions())
	assert.Equal(t, auth.OutcomeAllow, guard.Decide("/dashboard/detail", st).Outcome)

	d := guard.Decide("/settings", st)
	assert.Equal(t, auth.OutcomeUnauthorized, d.Outcome)
	assert.Empty(t, d.RedirectTo)
}

func TestBootstrap_RenewedSessionToken(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"}, nil)
	f.backend.On("VerifySession", mock.Anything, "abc").Return(&auth.VerifyResponse{
		UserInfo:     analyst(),
		SessionToken: "def",
	}, nil)

	res := f.boot.Run(context.Background())
	require.Equal(t, auth.BootstrapAuthenticated, res.Outcome)
	assert.Equal(t, "def", f.tokens.Snapshot()[auth.DefaultSessionTokenKey])
}

func TestBootstrap_DropsExpiredAccessToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expired := signedToken(t, now.Add(-time.Hour))

	f := newBootstrapFixture(t, map[string]string{
		auth.DefaultSessionTokenKey: "abc",
		auth.DefaultAccessTokenKey:  expired,
	}, nil, auth.WithBootstrapClock(func() time.Time { return now }))
	f.backend.On("VerifySession", mock.Anything, "abc").Return(&auth.VerifyResponse{UserInfo: analyst()}, nil)

	f.boot.Run(context.Background())

	_, ok := f.tokens.Snapshot()[auth.DefaultAccessTokenKey]
	assert.False(t, ok)
}

func TestBootstrap_KeepsLiveAccessToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	live := signedToken(t, now.Add(time.Hour))

	f := newBootstrapFixture(t, map[string]string{
		auth.DefaultSessionTokenKey: "abc",
		auth.DefaultAccessTokenKey:  live,
	}, nil, auth.WithBootstrapClock(func() time.Time { return now }))
	f.backend.On("VerifySession", mock.Anything, "abc").Return(&auth.VerifyResponse{UserInfo: analyst()}, nil)

	f.boot.Run(context.Background())
	assert.Equal(t, live, f.tokens.Snapshot()[auth.DefaultAccessTokenKey])
}

func TestBootstrap_EmptyIdentityIsFailure(t *testing.T) {
	for name, resp := range map[string]*auth.VerifyResponse{
		"nil response": nil,
		"nil user":     {AccessToken: "x"},
		"empty id":     {UserInfo: &auth.UserInfo{Email: "ana@example.com"}},
	} {
		t.Run(name, func(t *testing.T) {
			f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"}, nil)
			f.backend.On("VerifySession", mock.Anything, "abc").Return(resp, nil)

			res := f.boot.Run(context.Background())
			assert.Equal(t, auth.BootstrapSessionInvalid, res.Outcome)
			assert.Equal(t, auth.Unauthenticated(), f.state.Snapshot())
			assert.Empty(t, f.tokens.Snapshot())
		})
	}
}

func TestBootstrap_NetworkFailure(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"}, nil)
	f.backend.On("VerifySession", mock.Anything, "abc").Return(nil, errNetwork)

	res := f.boot.Run(context.Background())
	assert.Equal(t, auth.BootstrapSessionInvalid, res.Outcome)
	assert.Equal(t, auth.KindNetworkFailure, auth.Classify(res.Err))
	assert.Empty(t, f.tokens.Snapshot())
}

func TestBootstrap_Timeout(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"},
		auth.Options{VerifyTimeout: 20 * time.Millisecond})
	f.backend.On("VerifySession", mock.Anything, "abc").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	start := time.Now()
	res := f.boot.Run(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, auth.BootstrapSessionInvalid, res.Outcome)
	assert.Equal(t, auth.KindNetworkFailure, auth.Classify(res.Err))
	assert.Equal(t, auth.Unauthenticated(), f.state.Snapshot())
	assert.Empty(t, f.tokens.Snapshot())
}

func TestBootstrap_TimeoutWhenBackendIgnoresContext(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"},
		auth.Options{VerifyTimeout: 20 * time.Millisecond})

	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })
	f.backend.On("VerifySession", mock.Anything, "abc").
		Run(func(mock.Arguments) { <-hang }).
		Return(&auth.VerifyResponse{UserInfo: analyst()}, nil)

	task := f.boot.Start(context.Background())

	var res auth.BootstrapResult
	select {
	case res = <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap did not resolve after the verify timeout")
	}

	assert.Equal(t, auth.BootstrapSessionInvalid, res.Outcome)
	assert.Equal(t, auth.KindNetworkFailure, auth.Classify(res.Err))
	assert.Equal(t, auth.Unauthenticated(), f.state.Snapshot())
	assert.Empty(t, f.tokens.Snapshot())
	assert.Equal(t, []string{"/login"}, f.nav.Paths())
}

func TestBootstrap_TokenStoreReadFailure(t *testing.T) {
	backend := &MockBackend{}
	state := auth.NewStateStore(auth.WithStateLogger(nopLogger{}))
	boot := auth.NewBootstrapper(backend, failingStore{getErr: errors.New("keychain locked")}, state, nil,
		auth.WithBootstrapLogger(nopLogger{}))

	res := boot.Run(context.Background())

	assert.Equal(t, auth.BootstrapSessionInvalid, res.Outcome)
	assert.Equal(t, "/login", res.Redirect)
	assert.Equal(t, auth.Unauthenticated(), state.Snapshot())
	backend.AssertNotCalled(t, "VerifySession", mock.Anything, mock.Anything)
}

func TestBootstrap_StopDiscardsLateResult(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"}, nil)

	called := make(chan struct{})
	release := make(chan struct{})
	f.backend.On("VerifySession", mock.Anything, "abc").
		Run(func(mock.Arguments) {
			close(called)
			<-release
		}).
		Return(&auth.VerifyResponse{UserInfo: analyst(), AccessToken: "late-access"}, nil)

	task := f.boot.Start(context.Background())
	assert.True(t, f.state.Snapshot().Loading, "loading starts before Start returns")

	<-called
	task.Stop()
	close(release)

	res := <-task.Done()
	assert.Equal(t, auth.BootstrapSuperseded, res.Outcome)
	assert.Equal(t, task.Epoch(), res.Epoch)

	st := f.state.Snapshot()
	assert.False(t, st.Authenticated)
	_, wrote := f.tokens.Snapshot()[auth.DefaultAccessTokenKey]
	assert.False(t, wrote, "superseded attempts must not persist tokens")
	assert.Empty(t, f.nav.Paths())
	assert.Empty(t, f.sink.Types())
}

func TestBootstrap_RemountSupersedesEarlierAttempt(t *testing.T) {
	f := newBootstrapFixture(t, map[string]string{auth.DefaultSessionTokenKey: "abc"}, nil)

	first := make(chan struct{})
	release := make(chan struct{})
	f.backend.On("VerifySession", mock.Anything, "abc").
		Run(func(mock.Arguments) {
			close(first)
			<-release
		}).
		Return(nil, statusError(auth.OpVerifySession, http.StatusUnauthorized)).Once()
	f.backend.On("VerifySession", mock.Anything, "abc").
		Return(&auth.VerifyResponse{UserInfo: analyst()}, nil).Once()

	stale := f.boot.Start(context.Background())
	<-first

	fresh := f.boot.Run(context.Background())
	require.Equal(t, auth.BootstrapAuthenticated, fresh.Outcome)

	close(release)
	res := <-stale.Done()
	assert.Equal(t, auth.BootstrapSuperseded, res.Outcome)

	// the late 401 neither logged the user out nor cleared the token
	assert.True(t, f.state.Snapshot().Authenticated)
	assert.Equal(t, "abc", f.tokens.Snapshot()[auth.DefaultSessionTokenKey])
}
