package guardware

import (
	"net/http"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-router"
)

const (
	DefaultLoadingView      = "auth/loading"
	DefaultUnauthorizedView = "errors/403"
	DefaultContextKey       = "current_user"
)

// StateSource returns the auth state to evaluate requests against.
// *auth.StateStore satisfies it; wrap Client.State with StateFunc.
type StateSource interface {
	Snapshot() auth.AuthState
}

// StateFunc adapts a function to StateSource
type StateFunc func() auth.AuthState

// Snapshot implements StateSource.
func (f StateFunc) Snapshot() auth.AuthState {
	return f()
}

type Config struct {
	// Filter skips the guard for matching requests
	Filter func(router.Context) bool
	Guard  *auth.RouteGuard
	State  StateSource

	// ContextKey is the Locals key the confirmed user is stored under
	ContextKey       string
	LoadingView      string
	UnauthorizedView string

	SuccessHandler      router.HandlerFunc
	RedirectHandler     func(c router.Context, d auth.Decision) error
	LoadingHandler      func(c router.Context, d auth.Decision) error
	UnauthorizedHandler func(c router.Context, d auth.Decision) error

	Logger auth.Logger
}

// New returns a middleware that gates every request path with the route
// guard.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			st := cfg.State.Snapshot()
			decision := cfg.Guard.Decide(ctx.Path(), st)

			switch decision.Outcome {
			case auth.OutcomeLoading:
				return cfg.LoadingHandler(ctx, decision)
			case auth.OutcomeRedirect:
				cfg.Logger.Debug("guardware: redirect %s -> %s", decision.Path, decision.RedirectTo)
				return cfg.RedirectHandler(ctx, decision)
			case auth.OutcomeUnauthorized:
				cfg.Logger.Info("guardware: route %s not granted", decision.Path)
				return cfg.UnauthorizedHandler(ctx, decision)
			}

			if st.User != nil {
				ctx.Locals(cfg.ContextKey, st.User.Clone())
				ctx.SetContext(auth.WithContext(ctx.Context(), st.User))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Guard == nil {
		panic("AUTH: guard middleware configuration: Guard is required.")
	}

	if cfg.State == nil {
		panic("AUTH: guard middleware configuration: State is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.LoadingView == "" {
		cfg.LoadingView = DefaultLoadingView
	}

	if cfg.UnauthorizedView == "" {
		cfg.UnauthorizedView = DefaultUnauthorizedView
	}

	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.RedirectHandler == nil {
		cfg.RedirectHandler = func(c router.Context, d auth.Decision) error {
			status := http.StatusSeeOther
			if c.Method() == http.MethodGet {
				status = http.StatusFound
			}
			return c.Redirect(d.RedirectTo, status)
		}
	}

	if cfg.LoadingHandler == nil {
		view := cfg.LoadingView
		cfg.LoadingHandler = func(c router.Context, d auth.Decision) error {
			return c.Status(http.StatusOK).Render(view, router.ViewContext{
				"path": d.Path,
			})
		}
	}

	if cfg.UnauthorizedHandler == nil {
		view := cfg.UnauthorizedView
		cfg.UnauthorizedHandler = func(c router.Context, d auth.Decision) error {
			return c.Status(http.StatusForbidden).Render(view, router.ViewContext{
				"path":  d.Path,
				"error": auth.ErrUnauthorized,
			})
		}
	}

	return cfg
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
