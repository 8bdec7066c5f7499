package auth

import (
	"strings"
)

// Outcome is the guard's verdict for a navigation
type Outcome string

const (
	// OutcomeAllow renders the requested view
	OutcomeAllow Outcome = "allow"
	// OutcomeLoading renders a neutral waiting view, no redirect
	OutcomeLoading Outcome = "loading"
	// OutcomeRedirect replaces the navigation with the login path
	OutcomeRedirect Outcome = "redirect"
	// OutcomeUnauthorized renders the unauthorized view in place
	OutcomeUnauthorized Outcome = "unauthorized"
)

// Decision is the result of evaluating a path against the auth state
type Decision struct {
	Outcome    Outcome
	Path       string
	RedirectTo string
	// Replace is set for redirects: the blocked page must not stay in
	// the navigation history.
	Replace bool
}

// Allowed reports whether the requested view may render
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Route is an entry of the client's static route table
type Route struct {
	Path          string `json:"path"`
	Title         string `json:"title,omitempty"`
	RequiredRoute string `json:"requiredRoute"`
}

// RouteTable is the ordered list of navigable views
type RouteTable []Route

// Lookup returns the first entry whose path prefixes path
func (t RouteTable) Lookup(path string) (Route, bool) {
	path = CleanPath(path)
	for _, r := range t {
		if r.Path != "" && strings.HasPrefix(path, r.Path) {
			return r, true
		}
	}
	return Route{}, false
}

// Visible returns the entries user may navigate to, in table order
func (t RouteTable) Visible(user *UserInfo) []Route {
	out := make([]Route, 0, len(t))
	for _, r := range t {
		required := r.RequiredRoute
		if required == "" {
			required = r.Path
		}
		if CanAccess(user, required) {
			out = append(out, r)
		}
	}
	return out
}

// CanAccess reports whether one of the user's allowed routes is a prefix
// of path. Empty grants never match.
func CanAccess(user *UserInfo, path string) bool {
	if user == nil {
		return false
	}
	path = CleanPath(path)
	for _, allowed := range user.AllowedRoutes {
		if allowed == "" {
			continue
		}
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}
	return false
}

// CleanPath drops the query string and fragment from a navigable path
func CleanPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return raw
}

// RouteGuard decides what a navigation renders. It only reads AuthState.
type RouteGuard struct {
	loginPath string
	public    map[string]struct{}
	table     RouteTable
	logger    Logger
}

// RouteGuardOption customizes the guard
type RouteGuardOption func(*RouteGuard)

// WithRouteTable sets the static route table
func WithRouteTable(table RouteTable) RouteGuardOption {
	return func(g *RouteGuard) {
		g.table = append(RouteTable(nil), table...)
	}
}

// WithPublicRoutes adds paths that bypass every gate
func WithPublicRoutes(paths ...string) RouteGuardOption {
	return func(g *RouteGuard) {
		for _, p := range paths {
			g.public[publicKey(p)] = struct{}{}
		}
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) RouteGuardOption {
	return func(g *RouteGuard) {
		g.logger = normalizeLogger(logger)
	}
}

// NewRouteGuard builds a guard from cfg. The login path is always public.
func NewRouteGuard(cfg Config, opts ...RouteGuardOption) *RouteGuard {
	cfg = normalizeConfig(cfg)
	g := &RouteGuard{
		loginPath: cfg.GetLoginPath(),
		public:    map[string]struct{}{},
		logger:    defLogger{},
	}

	g.public[publicKey(g.loginPath)] = struct{}{}
	for _, p := range cfg.GetPublicRoutes() {
		g.public[publicKey(p)] = struct{}{}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// LoginPath returns the redirect target for unauthenticated navigation
func (g *RouteGuard) LoginPath() string {
	return g.loginPath
}

// Table returns the route table
func (g *RouteGuard) Table() RouteTable {
	return g.table
}

// IsPublic reports whether path bypasses the guard
func (g *RouteGuard) IsPublic(path string) bool {
	_, ok := g.public[publicKey(path)]
	return ok
}

// Decide evaluates path against st. Public routes are allowed even while
// loading; nothing else is decided before the bootstrap resolves.
func (g *RouteGuard) Decide(path string, st AuthState) Decision {
	path = CleanPath(path)

	if g.IsPublic(path) {
		return Decision{Outcome: OutcomeAllow, Path: path}
	}

	if st.Loading {
		return Decision{Outcome: OutcomeLoading, Path: path}
	}

	if !st.Authenticated || st.User == nil {
		return Decision{
			Outcome:    OutcomeRedirect,
			Path:       path,
			RedirectTo: g.loginPath,
			Replace:    true,
		}
	}

	if !CanAccess(st.User, path) {
		g.logger.Debug("guard: user %s denied %s", st.User.ID, path)
		return Decision{Outcome: OutcomeUnauthorized, Path: path}
	}

	return Decision{Outcome: OutcomeAllow, Path: path}
}

func publicKey(path string) string {
	path = CleanPath(path)
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
