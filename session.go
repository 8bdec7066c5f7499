package auth

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// SessionManager runs the user initiated auth flows: login, register and
// logout. It is the only writer of AuthState after the bootstrap.
type SessionManager struct {
	backend  Backend
	tokens   TokenStore
	state    *StateStore
	cfg      Config
	logger   Logger
	activity ActivitySink
}

// SessionManagerOption customizes the session manager
type SessionManagerOption func(*SessionManager)

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.logger = normalizeLogger(logger)
	}
}

// WithSessionActivitySink sets the ActivitySink for login/logout events
func WithSessionActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.activity = normalizeActivitySink(sink)
	}
}

// NewSessionManager returns a session manager writing into state
func NewSessionManager(backend Backend, tokens TokenStore, state *StateStore, cfg Config, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		backend:  backend,
		tokens:   tokens,
		state:    state,
		cfg:      normalizeConfig(cfg),
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Login validates the payload, exchanges the credentials for tokens and
// then confirms the identity with the backend. AuthState only changes
// from the confirmed identity; identity fields in the login response are
// ignored. On failure AuthState is left as it was.
func (m *SessionManager) Login(ctx context.Context, req LoginRequest) (*UserInfo, error) {
	if err := req.validate(m.cfg.GetPasswordMinLength()); err != nil {
		return nil, validationError(OpLogin, err)
	}

	creds := req.Credentials()
	resp, err := m.backend.Login(ctx, creds)
	if err != nil {
		err = NormalizeBackendError(OpLogin, err)
		m.logger.Info("login failed: %v", err)
		m.recordLoginFailure(ctx, creds.Email, err)
		return nil, err
	}

	// Retire any pending bootstrap; from here this flow owns the writer role.
	epoch := m.state.Invalidate()

	var sessionToken, accessToken string
	if resp != nil {
		sessionToken, accessToken = resp.SessionToken, resp.AccessToken
	}

	var prior *savedCredentials
	current, err := m.state.Guard(epoch, func() error {
		saved, err := snapshotCredentials(ctx, m.tokens, m.cfg)
		if err != nil {
			return err
		}
		prior = saved
		return replaceCredentials(ctx, m.tokens, m.cfg, sessionToken, accessToken)
	})
	if !current {
		return nil, ErrSuperseded
	}
	if err != nil {
		m.logger.Error("login persist credentials: %v", err)
		m.abortLogin(ctx, epoch, prior)
		err = goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session credentials")
		m.recordLoginFailure(ctx, creds.Email, err)
		return nil, err
	}

	user, err := m.backend.Me(ctx)
	if err == nil && (user == nil || user.ID == "") {
		err = &BackendError{
			Operation:   OpMe,
			Status:      http.StatusUnauthorized,
			Description: "identity confirmation returned no user",
		}
	}
	if err != nil {
		err = NormalizeBackendError(OpMe, err)
		m.logger.Info("login identity confirmation failed: %v", err)
		m.abortLogin(ctx, epoch, prior)
		m.recordLoginFailure(ctx, creds.Email, err)
		return nil, err
	}

	committed, _ := m.state.Commit(epoch, Authenticated(user), nil)
	if !committed {
		m.logger.Info("login result discarded, superseded by a newer auth action")
		return nil, ErrSuperseded
	}

	recordActivity(ctx, m.activity, m.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID,
		Metadata: map[string]any{
			"remember_me": creds.RememberMe,
		},
	})

	return user.Clone(), nil
}

// abortLogin puts back the credentials a failed login replaced, so an
// earlier session keeps both its state and its tokens. A login racing a
// pending bootstrap also ends the loading window so the guard does not
// wait forever.
func (m *SessionManager) abortLogin(ctx context.Context, epoch uint64, prior *savedCredentials) {
	if prior != nil {
		effectsCtx := context.WithoutCancel(ctx)
		_, err := m.state.Guard(epoch, func() error {
			return prior.restore(effectsCtx, m.tokens, m.cfg)
		})
		if err != nil {
			m.logger.Warn("login restore credentials: %v", err)
		}
	}

	if m.state.Snapshot().Loading {
		m.state.Commit(epoch, Unauthenticated(), nil)
	}
}

// Register validates the payload and creates the account. It never
// changes AuthState.
func (m *SessionManager) Register(ctx context.Context, req RegisterRequest) error {
	if err := req.validate(m.cfg.GetPasswordMinLength()); err != nil {
		return validationError(OpRegister, err)
	}

	reg := req.Registration()
	if err := m.backend.Register(ctx, reg); err != nil {
		err = NormalizeBackendError(OpRegister, err)
		m.logger.Info("register failed: %v", err)
		return err
	}

	recordActivity(ctx, m.activity, m.logger, ActivityEvent{
		EventType: ActivityEventRegister,
		Metadata: map[string]any{
			"email": reg.Email,
		},
	})
	return nil
}

// Logout tells the backend the session ended, then clears the stored
// credentials and AuthState whatever the backend answered. It returns the
// path to redirect to and the backend error, if any, for logging only.
func (m *SessionManager) Logout(ctx context.Context) (string, error) {
	prev := m.state.Snapshot()
	// in-flight verification and login results must not land from here on
	m.state.Invalidate()

	backendErr := m.backend.Logout(ctx)
	if backendErr != nil {
		backendErr = NormalizeBackendError(OpLogout, backendErr)
		m.logger.Warn("logout backend call failed, clearing local session anyway: %v", backendErr)
	}

	effectsCtx := context.WithoutCancel(ctx)
	if err := m.state.Reset(Unauthenticated(), func() error {
		return clearCredentials(effectsCtx, m.tokens, m.cfg)
	}); err != nil {
		m.logger.Error("logout clear credentials: %v", err)
	}

	userID, _ := prev.UserID()
	meta := map[string]any{}
	if backendErr != nil {
		meta["backend_error"] = backendErr.Error()
	}
	recordActivity(effectsCtx, m.activity, m.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    userID,
		Metadata:  meta,
	})

	return m.cfg.GetLoginPath(), backendErr
}

func (m *SessionManager) recordLoginFailure(ctx context.Context, email string, err error) {
	recordActivity(context.WithoutCancel(ctx), m.activity, m.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Metadata: map[string]any{
			"email": email,
			"kind":  Classify(err).String(),
			"error": err.Error(),
		},
	})
}
