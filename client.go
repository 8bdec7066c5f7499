package auth

import (
	"context"
	"sync"
)

// Renderer receives the decision for the view that should be on screen.
// It is called from state transitions too, so it must not start auth
// flows synchronously.
type Renderer interface {
	Render(d Decision)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(d Decision)

// Render implements Renderer.
func (f RendererFunc) Render(d Decision) {
	if f != nil {
		f(d)
	}
}

// Client is the application shell around the auth core: it owns the state
// store, runs the bootstrap on mount and re-evaluates the current view on
// every navigation and every auth state change.
type Client struct {
	cfg       Config
	backend   Backend
	tokens    TokenStore
	state     *StateStore
	guard     *RouteGuard
	boot      *Bootstrapper
	sessions  *SessionManager
	navigator Navigator
	renderer  Renderer
	logger    Logger
	activity  ActivitySink
	routes    RouteTable

	mu          sync.Mutex
	path        string
	denied      string
	task        *BootstrapTask
	unsubscribe func()
}

// Option customizes the client
type Option func(*Client)

// WithConfig sets the client configuration
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = normalizeConfig(cfg)
	}
}

// WithLogger sets the logger shared by every component
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = normalizeLogger(logger)
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) Option {
	return func(c *Client) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithNavigator sets the navigation layer used for redirects
func WithNavigator(nav Navigator) Option {
	return func(c *Client) {
		c.navigator = nav
	}
}

// WithRenderer sets the view layer
func WithRenderer(r Renderer) Option {
	return func(c *Client) {
		c.renderer = r
	}
}

// WithRoutes sets the static route table
func WithRoutes(table RouteTable) Option {
	return func(c *Client) {
		c.routes = append(RouteTable(nil), table...)
	}
}

// WithStateStore shares an existing state store
func WithStateStore(s *StateStore) Option {
	return func(c *Client) {
		if s != nil {
			c.state = s
		}
	}
}

// New wires the auth core around backend and tokens
func New(backend Backend, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		cfg:      DefaultOptions(),
		backend:  backend,
		tokens:   tokens,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.state == nil {
		c.state = NewStateStore(WithStateLogger(c.logger))
	}

	c.guard = NewRouteGuard(c.cfg,
		WithRouteTable(c.routes),
		WithGuardLogger(c.logger),
	)
	c.boot = NewBootstrapper(backend, tokens, c.state, c.cfg,
		WithBootstrapLogger(c.logger),
		WithBootstrapActivitySink(c.activity),
	)
	c.sessions = NewSessionManager(backend, tokens, c.state, c.cfg,
		WithSessionLogger(c.logger),
		WithSessionActivitySink(c.activity),
	)
	c.path = c.cfg.GetHomePath()

	return c
}

// Mount starts the session bootstrap. Mounting again supersedes the
// previous attempt.
func (c *Client) Mount(ctx context.Context) *BootstrapTask {
	c.mu.Lock()
	prev := c.task
	if c.unsubscribe == nil {
		c.unsubscribe = c.state.Subscribe(func(_, _ AuthState) {
			c.Refresh()
		})
	}
	c.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	task := c.boot.Start(ctx)

	c.mu.Lock()
	c.task = task
	c.mu.Unlock()

	return task
}

// Unmount tears the client down. A bootstrap still in flight is retired
// and its result discarded.
func (c *Client) Unmount() {
	c.mu.Lock()
	task := c.task
	unsubscribe := c.unsubscribe
	c.task = nil
	c.unsubscribe = nil
	c.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Navigate records path as the current location and evaluates it. A
// redirect decision replaces the location with the login path.
func (c *Client) Navigate(path string) Decision {
	c.mu.Lock()
	c.path = CleanPath(path)
	c.mu.Unlock()

	return c.Refresh()
}

// Refresh re-evaluates the current location against the current state.
func (c *Client) Refresh() Decision {
	c.mu.Lock()
	path := c.path
	c.mu.Unlock()

	st := c.state.Snapshot()
	decision := c.guard.Decide(path, st)
	rendered := decision

	if decision.Outcome == OutcomeRedirect {
		c.mu.Lock()
		if c.path == path {
			c.path = decision.RedirectTo
		}
		c.mu.Unlock()

		if c.navigator != nil {
			c.navigator.Replace(decision.RedirectTo)
		}
		rendered = c.guard.Decide(decision.RedirectTo, st)
	}

	// a denial is recorded once per stay on the path, not per state change
	c.mu.Lock()
	firstDenial := decision.Outcome == OutcomeUnauthorized && c.denied != path
	if decision.Outcome == OutcomeUnauthorized {
		c.denied = path
	} else {
		c.denied = ""
	}
	c.mu.Unlock()

	if firstDenial {
		userID, _ := st.UserID()
		recordActivity(context.Background(), c.activity, c.logger, ActivityEvent{
			EventType: ActivityEventRouteDenied,
			UserID:    userID,
			Path:      path,
		})
	}

	if c.renderer != nil {
		c.renderer.Render(rendered)
	}
	return decision
}

// Path returns the current location
func (c *Client) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Login runs the login flow and, on success, leaves public pages for the
// home path.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*UserInfo, error) {
	user, err := c.sessions.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.guard.IsPublic(c.Path()) {
		home := c.cfg.GetHomePath()
		if c.navigator != nil {
			c.navigator.Replace(home)
		}
		c.Navigate(home)
	}
	return user, nil
}

// Register runs the registration flow
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.sessions.Register(ctx, req)
}

// Logout clears the session even when the backend cannot be reached and
// sends the user to the login path.
func (c *Client) Logout(ctx context.Context) error {
	login, err := c.sessions.Logout(ctx)
	// the state listener already redirected protected pages
	if c.Path() != login {
		if c.navigator != nil {
			c.navigator.Replace(login)
		}
		c.Navigate(login)
	}
	return err
}

// State returns a snapshot of the auth state
func (c *Client) State() AuthState {
	return c.state.Snapshot()
}

// StateStore exposes the underlying store for readers such as middleware
func (c *Client) StateStore() *StateStore {
	return c.state
}

// Guard returns the route guard
func (c *Client) Guard() *RouteGuard {
	return c.guard
}

// CurrentUserID returns the id of the authenticated user
func (c *Client) CurrentUserID() (string, bool) {
	return c.state.Snapshot().UserID()
}

// Context returns ctx carrying the authenticated user, if any
func (c *Client) Context(ctx context.Context) context.Context {
	st := c.state.Snapshot()
	if st.User == nil {
		return ctx
	}
	return WithContext(ctx, st.User)
}

// VisibleRoutes returns the route table entries the user may open
func (c *Client) VisibleRoutes() []Route {
	st := c.state.Snapshot()
	if !st.Authenticated {
		return nil
	}
	return c.guard.Table().Visible(st.User)
}

// SidebarCollapsed returns the persisted sidebar preference
func (c *Client) SidebarCollapsed(ctx context.Context) (bool, error) {
	return loadBool(ctx, c.tokens, c.cfg.GetSidebarKey())
}

// SetSidebarCollapsed persists the sidebar preference
func (c *Client) SetSidebarCollapsed(ctx context.Context, collapsed bool) error {
	return storeBool(ctx, c.tokens, c.cfg.GetSidebarKey(), collapsed)
}
