package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackend implements auth.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResponse, error) {
	args := m.Called(ctx, creds)
	resp, _ := args.Get(0).(*auth.LoginResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) Register(ctx context.Context, reg auth.Registration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}

func (m *MockBackend) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) VerifySession(ctx context.Context, sessionToken string) (*auth.VerifyResponse, error) {
	args := m.Called(ctx, sessionToken)
	resp, _ := args.Get(0).(*auth.VerifyResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) Me(ctx context.Context) (*auth.UserInfo, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*auth.UserInfo)
	return user, args.Error(1)
}

// failingStore fails every read and/or write
type failingStore struct {
	getErr error
	setErr error
	delErr error
}

func (f failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, f.getErr
}

func (f failingStore) Set(context.Context, string, string) error {
	return f.setErr
}

func (f failingStore) Delete(context.Context, string) error {
	return f.delErr
}

// recordingNavigator captures Replace calls
type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// recordingSink captures activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *recordingSink) Last() auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return auth.ActivityEvent{}
	}
	return s.events[len(s.events)-1]
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var errNetwork = errors.New("dial tcp: connection refused")

func statusError(op string, status int) error {
	return &auth.BackendError{
		Operation:   op,
		Status:      status,
		Description: http.StatusText(status),
	}
}

func analyst() *auth.UserInfo {
	return &auth.UserInfo{
		ID:            "1",
		Email:         "ana@example.com",
		FirstName:     "Ana",
		LastName:      "Lee",
		AllowedRoutes: []string{"/dashboard"},
	}
}

// signedToken returns an HS256 token, without exp when exp is zero
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "1"}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}
