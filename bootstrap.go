package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-print"
)

// BootstrapOutcome is the terminal result of a bootstrap attempt
type BootstrapOutcome string

const (
	BootstrapAuthenticated  BootstrapOutcome = "authenticated"
	BootstrapNoSession      BootstrapOutcome = "no_session"
	BootstrapSessionInvalid BootstrapOutcome = "session_invalid"
	BootstrapSuperseded     BootstrapOutcome = "superseded"
)

// BootstrapResult describes how an attempt ended. Redirect is set when the
// navigation layer must send the user to the login entry point.
type BootstrapResult struct {
	Outcome  BootstrapOutcome
	Epoch    uint64
	User     *UserInfo
	Redirect string
	Err      error
}

// Bootstrapper reconciles the persisted session token with the backend
// when the application mounts.
type Bootstrapper struct {
	backend   Backend
	tokens    TokenStore
	state     *StateStore
	cfg       Config
	logger    Logger
	activity  ActivitySink
	navigator Navigator
	now       func() time.Time
}

// BootstrapperOption customizes the bootstrapper
type BootstrapperOption func(*Bootstrapper)

// WithBootstrapLogger sets the logger
func WithBootstrapLogger(logger Logger) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.logger = normalizeLogger(logger)
	}
}

// WithBootstrapActivitySink sets the ActivitySink for bootstrap events
func WithBootstrapActivitySink(sink ActivitySink) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.activity = normalizeActivitySink(sink)
	}
}

// WithBootstrapNavigator makes the bootstrapper redirect to the login path
// itself when the session cannot be restored.
func WithBootstrapNavigator(nav Navigator) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.navigator = nav
	}
}

// WithBootstrapClock injects a custom clock (useful for tests).
func WithBootstrapClock(clock func() time.Time) BootstrapperOption {
	return func(b *Bootstrapper) {
		if clock != nil {
			b.now = clock
		}
	}
}

// NewBootstrapper returns a bootstrapper writing into state
func NewBootstrapper(backend Backend, tokens TokenStore, state *StateStore, cfg Config, opts ...BootstrapperOption) *Bootstrapper {
	b := &Bootstrapper{
		backend:  backend,
		tokens:   tokens,
		state:    state,
		cfg:      normalizeConfig(cfg),
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Run performs one bootstrap attempt synchronously.
func (b *Bootstrapper) Run(ctx context.Context) BootstrapResult {
	return b.run(ctx, b.state.Begin())
}

// BootstrapTask is a running bootstrap attempt
type BootstrapTask struct {
	epoch  uint64
	done   chan BootstrapResult
	cancel context.CancelFunc
	state  *StateStore
}

// Done delivers the attempt's result once
func (t *BootstrapTask) Done() <-chan BootstrapResult {
	return t.done
}

// Epoch returns the epoch owned by this attempt
func (t *BootstrapTask) Epoch() uint64 {
	return t.epoch
}

// Stop retires the attempt and cancels its verification. A result that
// arrives afterwards is discarded.
func (t *BootstrapTask) Stop() {
	t.state.Supersede(t.epoch)
	t.cancel()
}

// Start runs a bootstrap attempt in the background. The state enters the
// loading window before Start returns.
func (b *Bootstrapper) Start(ctx context.Context) *BootstrapTask {
	epoch := b.state.Begin()
	ctx, cancel := context.WithCancel(ctx)

	task := &BootstrapTask{
		epoch:  epoch,
		done:   make(chan BootstrapResult, 1),
		cancel: cancel,
		state:  b.state,
	}

	go func() {
		defer cancel()
		task.done <- b.run(ctx, epoch)
		close(task.done)
	}()

	return task
}

func (b *Bootstrapper) run(ctx context.Context, epoch uint64) BootstrapResult {
	// effects must complete even when the verification was cancelled
	effectsCtx := context.WithoutCancel(ctx)

	token, ok, err := b.tokens.Get(ctx, b.cfg.GetSessionTokenKey())
	if err != nil {
		b.logger.Error("bootstrap read session token: %v", err)
		return b.fail(effectsCtx, epoch, wrapKind(ErrSessionInvalid, "token_store", err))
	}

	if !ok || token == "" {
		committed, _ := b.state.Commit(epoch, Unauthenticated(), nil)
		if !committed {
			return BootstrapResult{Outcome: BootstrapSuperseded, Epoch: epoch}
		}
		b.logger.Debug("bootstrap: no session token")
		b.redirect()
		return BootstrapResult{
			Outcome:  BootstrapNoSession,
			Epoch:    epoch,
			Redirect: b.cfg.GetLoginPath(),
		}
	}

	resp, err := b.verify(ctx, token)
	if err == nil && (resp == nil || resp.UserInfo == nil || resp.UserInfo.ID == "") {
		err = &BackendError{
			Operation:   OpVerifySession,
			Status:      http.StatusUnauthorized,
			Description: "verify response carried no identity",
		}
	}

	if err != nil {
		if !b.state.Current(epoch) {
			return BootstrapResult{Outcome: BootstrapSuperseded, Epoch: epoch, Err: ErrSuperseded}
		}
		b.logger.Info("bootstrap verify session failed: %v", err)
		return b.fail(effectsCtx, epoch, NormalizeBackendError(OpVerifySession, err))
	}

	committed, effErr := b.state.Commit(epoch, Authenticated(resp.UserInfo), func() error {
		return b.persistRenewed(effectsCtx, resp)
	})
	if !committed {
		b.logger.Debug("bootstrap result discarded, epoch %d superseded", epoch)
		return BootstrapResult{Outcome: BootstrapSuperseded, Epoch: epoch, Err: ErrSuperseded}
	}
	if effErr != nil {
		b.logger.Warn("bootstrap persist renewed credentials: %v", effErr)
	}

	b.logger.Debug("bootstrap restored session: %s", print.MaybePrettyJSON(resp.UserInfo))
	recordActivity(effectsCtx, b.activity, b.logger, ActivityEvent{
		EventType: ActivityEventBootstrapSuccess,
		UserID:    resp.UserInfo.ID,
	})

	return BootstrapResult{
		Outcome: BootstrapAuthenticated,
		Epoch:   epoch,
		User:    resp.UserInfo.Clone(),
	}
}

type verifyResult struct {
	resp *VerifyResponse
	err  error
}

// verify bounds the backend call by the verify timeout even when the
// backend ignores its context. A call still running at the deadline is
// abandoned and its result dropped.
func (b *Bootstrapper) verify(ctx context.Context, token string) (*VerifyResponse, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, b.cfg.GetVerifyTimeout())
	defer cancel()

	done := make(chan verifyResult, 1)
	go func() {
		resp, err := b.backend.VerifySession(verifyCtx, token)
		done <- verifyResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-verifyCtx.Done():
		return nil, &BackendError{
			Operation:   OpVerifySession,
			Description: "session verification timed out",
			Err:         verifyCtx.Err(),
		}
	}
}

func (b *Bootstrapper) fail(ctx context.Context, epoch uint64, cause error) BootstrapResult {
	committed, effErr := b.state.Commit(epoch, Unauthenticated(), func() error {
		return clearCredentials(ctx, b.tokens, b.cfg)
	})
	if !committed {
		return BootstrapResult{Outcome: BootstrapSuperseded, Epoch: epoch, Err: ErrSuperseded}
	}
	if effErr != nil {
		b.logger.Warn("bootstrap clear credentials: %v", effErr)
	}

	recordActivity(ctx, b.activity, b.logger, ActivityEvent{
		EventType: ActivityEventBootstrapFailure,
		Metadata: map[string]any{
			"kind":  Classify(cause).String(),
			"error": cause.Error(),
		},
	})

	b.redirect()
	return BootstrapResult{
		Outcome:  BootstrapSessionInvalid,
		Epoch:    epoch,
		Redirect: b.cfg.GetLoginPath(),
		Err:      cause,
	}
}

func (b *Bootstrapper) persistRenewed(ctx context.Context, resp *VerifyResponse) error {
	accessKey := b.cfg.GetAccessTokenKey()

	if resp.AccessToken != "" {
		if err := b.tokens.Set(ctx, accessKey, resp.AccessToken); err != nil {
			return err
		}
	} else {
		stored, ok, err := b.tokens.Get(ctx, accessKey)
		if err != nil {
			return err
		}
		if ok && AccessTokenExpired(stored, b.now(), b.cfg.GetAccessTokenLeeway()) {
			b.logger.Debug("bootstrap dropping expired access token")
			if err := b.tokens.Delete(ctx, accessKey); err != nil {
				return err
			}
		}
	}

	if resp.SessionToken != "" {
		return b.tokens.Set(ctx, b.cfg.GetSessionTokenKey(), resp.SessionToken)
	}
	return nil
}

func (b *Bootstrapper) redirect() {
	if b.navigator != nil {
		b.navigator.Replace(b.cfg.GetLoginPath())
	}
}
