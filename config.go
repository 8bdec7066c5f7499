package auth

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultSessionTokenKey = "session_token"
	DefaultAccessTokenKey  = "access_token"
	DefaultSidebarKey      = "sidebar_collapsed"
	DefaultLoginPath       = "/login"
	DefaultRegisterPath    = "/register"
	DefaultHomePath        = "/dashboard"

	defaultAccessTokenLeeway = 30 * time.Second
)

// Config holds client auth options
type Config interface {
	GetLoginPath() string
	GetHomePath() string
	GetPublicRoutes() []string
	GetSessionTokenKey() string
	GetAccessTokenKey() string
	GetSidebarKey() string
	GetVerifyTimeout() time.Duration
	GetPasswordMinLength() int
	GetAccessTokenLeeway() time.Duration
}

// Options is the default Config implementation. It can be loaded from the
// environment with LoadOptionsFromEnv.
type Options struct {
	LoginPath         string        `env:"AUTH_CLIENT_LOGIN_PATH" envDefault:"/login"`
	HomePath          string        `env:"AUTH_CLIENT_HOME_PATH" envDefault:"/dashboard"`
	PublicRoutes      []string      `env:"AUTH_CLIENT_PUBLIC_ROUTES" envDefault:"/login,/register" envSeparator:","`
	SessionTokenKey   string        `env:"AUTH_CLIENT_SESSION_TOKEN_KEY" envDefault:"session_token"`
	AccessTokenKey    string        `env:"AUTH_CLIENT_ACCESS_TOKEN_KEY" envDefault:"access_token"`
	SidebarKey        string        `env:"AUTH_CLIENT_SIDEBAR_KEY" envDefault:"sidebar_collapsed"`
	VerifyTimeout     time.Duration `env:"AUTH_CLIENT_VERIFY_TIMEOUT" envDefault:"15s"`
	PasswordMinLength int           `env:"AUTH_CLIENT_PASSWORD_MIN_LENGTH" envDefault:"8"`
	AccessTokenLeeway time.Duration `env:"AUTH_CLIENT_ACCESS_TOKEN_LEEWAY" envDefault:"30s"`
}

var _ Config = Options{}

// DefaultOptions returns the options used when none are provided
func DefaultOptions() Options {
	return Options{AccessTokenLeeway: defaultAccessTokenLeeway}.withDefaults()
}

// LoadOptionsFromEnv reads AUTH_CLIENT_* variables
func LoadOptionsFromEnv() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return DefaultOptions(), fmt.Errorf("parse env: %w", err)
	}
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	out := o
	if out.LoginPath == "" {
		out.LoginPath = DefaultLoginPath
	}
	if out.HomePath == "" {
		out.HomePath = DefaultHomePath
	}
	if len(out.PublicRoutes) == 0 {
		out.PublicRoutes = []string{DefaultLoginPath, DefaultRegisterPath}
	}
	if out.SessionTokenKey == "" {
		out.SessionTokenKey = DefaultSessionTokenKey
	}
	if out.AccessTokenKey == "" {
		out.AccessTokenKey = DefaultAccessTokenKey
	}
	if out.SidebarKey == "" {
		out.SidebarKey = DefaultSidebarKey
	}
	if out.VerifyTimeout <= 0 {
		out.VerifyTimeout = 15 * time.Second
	}
	if out.PasswordMinLength <= 0 {
		out.PasswordMinLength = 8
	}
	if out.AccessTokenLeeway < 0 {
		out.AccessTokenLeeway = 0
	}
	return out
}

func (o Options) GetLoginPath() string {
	return o.LoginPath
}

func (o Options) GetHomePath() string {
	return o.HomePath
}

func (o Options) GetPublicRoutes() []string {
	return o.PublicRoutes
}

func (o Options) GetSessionTokenKey() string {
	return o.SessionTokenKey
}

func (o Options) GetAccessTokenKey() string {
	return o.AccessTokenKey
}

func (o Options) GetSidebarKey() string {
	return o.SidebarKey
}

func (o Options) GetVerifyTimeout() time.Duration {
	return o.VerifyTimeout
}

func (o Options) GetPasswordMinLength() int {
	return o.PasswordMinLength
}

func (o Options) GetAccessTokenLeeway() time.Duration {
	return o.AccessTokenLeeway
}

func normalizeConfig(cfg Config) Config {
	if cfg == nil {
		return DefaultOptions()
	}
	if opts, ok := cfg.(Options); ok {
		return opts.withDefaults()
	}
	if opts, ok := cfg.(*Options); ok && opts != nil {
		return opts.withDefaults()
	}
	return cfg
}
