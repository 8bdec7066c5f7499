package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// UserInfo is the identity confirmed by the backend for the current session
type UserInfo struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	FirstName     string   `json:"firstName,omitempty"`
	LastName      string   `json:"lastName,omitempty"`
	JobTitle      string   `json:"jobTitle,omitempty"`
	Department    string   `json:"department,omitempty"`
	AllowedRoutes []string `json:"allowedRoutes"`
}

// Clone returns a deep copy so snapshots never share the routes slice.
func (u *UserInfo) Clone() *UserInfo {
	if u == nil {
		return nil
	}
	out := *u
	if u.AllowedRoutes != nil {
		out.AllowedRoutes = append([]string(nil), u.AllowedRoutes...)
	}
	return &out
}

// DisplayName returns the full name, falling back to the email
func (u *UserInfo) DisplayName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// Credentials is the login request sent to the backend
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResponse is what the backend returns on login. The embedded user
// fields are a legacy echo and are never used to authenticate.
type LoginResponse struct {
	AccessToken  string    `json:"accessToken,omitempty"`
	SessionToken string    `json:"sessionToken,omitempty"`
	User         *UserInfo `json:"user,omitempty"`
}

// Registration is the account creation request
type Registration struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	JobTitle   string `json:"jobTitle"`
	Department string `json:"department,omitempty"`
}

// VerifyResponse is returned by a successful session verification
type VerifyResponse struct {
	UserInfo     *UserInfo `json:"userInfo"`
	AccessToken  string    `json:"accessToken,omitempty"`
	SessionToken string    `json:"sessionToken,omitempty"`
}

// Backend is the remote auth API consumed by the client
type Backend interface {
	Login(ctx context.Context, creds Credentials) (*LoginResponse, error)
	Register(ctx context.Context, reg Registration) error
	Logout(ctx context.Context) error
	VerifySession(ctx context.Context, sessionToken string) (*VerifyResponse, error)
	Me(ctx context.Context) (*UserInfo, error)
}

// TokenStore is durable key/value storage for credentials and preferences
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Navigator performs navigation on behalf of the client. Replace must not
// push a history entry.
type Navigator interface {
	Replace(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// Replace implements Navigator.
func (f NavigatorFunc) Replace(path string) {
	if f != nil {
		f(path)
	}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
