package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultLoginPath    = "/api/auth/login"
	DefaultRegisterPath = "/api/auth/register"
	DefaultLogoutPath   = "/api/auth/logout"
	DefaultVerifyPath   = "/api/auth/verify-session"
	DefaultMePath       = "/api/auth/me"
)

// CredentialSource supplies the bearer token for authenticated calls.
// auth.TokenCredentials satisfies it.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Config holds the backend endpoints
type Config struct {
	BaseURL      string        `env:"AUTH_BACKEND_URL" envDefault:"http://localhost:8080"`
	LoginPath    string        `env:"AUTH_BACKEND_LOGIN_PATH"`
	RegisterPath string        `env:"AUTH_BACKEND_REGISTER_PATH"`
	LogoutPath   string        `env:"AUTH_BACKEND_LOGOUT_PATH"`
	VerifyPath   string        `env:"AUTH_BACKEND_VERIFY_PATH"`
	MePath       string        `env:"AUTH_BACKEND_ME_PATH"`
	Timeout      time.Duration `env:"AUTH_BACKEND_TIMEOUT" envDefault:"20s"`
}

// LoadConfigFromEnv reads AUTH_BACKEND_* variables
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse backend env: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	out := c
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if out.LoginPath == "" {
		out.LoginPath = DefaultLoginPath
	}
	if out.RegisterPath == "" {
		out.RegisterPath = DefaultRegisterPath
	}
	if out.LogoutPath == "" {
		out.LogoutPath = DefaultLogoutPath
	}
	if out.VerifyPath == "" {
		out.VerifyPath = DefaultVerifyPath
	}
	if out.MePath == "" {
		out.MePath = DefaultMePath
	}
	if out.Timeout <= 0 {
		out.Timeout = 20 * time.Second
	}
	return out
}
