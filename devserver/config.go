package devserver

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the development backend options
type Config struct {
	Addr              string        `env:"DEVSERVER_ADDR" envDefault:":8080"`
	SigningKey        string        `env:"DEVSERVER_SIGNING_KEY" envDefault:"dev-signing-key-change-me"`
	Issuer            string        `env:"DEVSERVER_ISSUER" envDefault:"go-auth-client-devserver"`
	AccessTokenTTL    time.Duration `env:"DEVSERVER_ACCESS_TOKEN_TTL" envDefault:"15m"`
	SessionTTL        time.Duration `env:"DEVSERVER_SESSION_TTL" envDefault:"24h"`
	RememberMeTTL     time.Duration `env:"DEVSERVER_REMEMBER_ME_TTL" envDefault:"720h"`
	RotateSessions    bool          `env:"DEVSERVER_ROTATE_SESSIONS" envDefault:"false"`
	BcryptCost        int           `env:"DEVSERVER_BCRYPT_COST" envDefault:"10"`
	DefaultRoutes     []string      `env:"DEVSERVER_DEFAULT_ROUTES" envDefault:"/dashboard" envSeparator:","`
	PasswordMinLength int           `env:"DEVSERVER_PASSWORD_MIN_LENGTH" envDefault:"8"`

	SeedEmail     string   `env:"DEVSERVER_SEED_EMAIL"`
	SeedPassword  string   `env:"DEVSERVER_SEED_PASSWORD"`
	SeedFirstName string   `env:"DEVSERVER_SEED_FIRST_NAME" envDefault:"Demo"`
	SeedLastName  string   `env:"DEVSERVER_SEED_LAST_NAME" envDefault:"User"`
	SeedRoutes    []string `env:"DEVSERVER_SEED_ROUTES" envDefault:"/dashboard,/investors,/campaigns" envSeparator:","`
}

// LoadConfigFromEnv reads DEVSERVER_* variables
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse devserver env: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	out := c
	if out.Addr == "" {
		out.Addr = ":8080"
	}
	if out.SigningKey == "" {
		out.SigningKey = "dev-signing-key-change-me"
	}
	if out.AccessTokenTTL <= 0 {
		out.AccessTokenTTL = 15 * time.Minute
	}
	if out.SessionTTL <= 0 {
		out.SessionTTL = 24 * time.Hour
	}
	if out.RememberMeTTL <= 0 {
		out.RememberMeTTL = 30 * 24 * time.Hour
	}
	if out.BcryptCost < bcrypt.MinCost || out.BcryptCost > bcrypt.MaxCost {
		out.BcryptCost = bcrypt.DefaultCost
	}
	if len(out.DefaultRoutes) == 0 {
		out.DefaultRoutes = []string{"/dashboard"}
	}
	if out.PasswordMinLength <= 0 {
		out.PasswordMinLength = 8
	}
	return out
}
