package devserver

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/backend"
	"github.com/goliatone/go-print"
)

// Server is the development auth backend
type Server struct {
	cfg    Config
	app    *fiber.App
	users  *directory
	tokens tokenSigner
	logger Logger
	now    func() time.Time
}

// Option customizes the server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the fiber application and registers the auth routes
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg.withDefaults(),
		logger: defLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	clock := func() time.Time { return s.now() }
	s.users = newDirectory(s.cfg.BcryptCost, clock)
	s.tokens = tokenSigner{
		key:    []byte(s.cfg.SigningKey),
		issuer: s.cfg.Issuer,
		ttl:    s.cfg.AccessTokenTTL,
		now:    clock,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "go-auth-client devserver",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	s.registerRoutes()

	return s
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until ctx is done
func (s *Server) Listen(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("devserver listening on %s", s.cfg.Addr)
		errc <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

// AddUser registers an account with explicit route grants
func (s *Server) AddUser(reg auth.Registration, routes ...string) (*Account, error) {
	if len(routes) == 0 {
		routes = s.cfg.DefaultRoutes
	}
	return s.users.create(reg, routes)
}

// SetAllowedRoutes replaces the route grants of an account
func (s *Server) SetAllowedRoutes(userID string, routes ...string) bool {
	return s.users.setRoutes(userID, routes)
}

// Seed registers the account described by the SEED_* options, if any
func (s *Server) Seed() (*Account, error) {
	if s.cfg.SeedEmail == "" || s.cfg.SeedPassword == "" {
		return nil, nil
	}
	acc, err := s.AddUser(auth.Registration{
		Email:     s.cfg.SeedEmail,
		Password:  s.cfg.SeedPassword,
		FirstName: s.cfg.SeedFirstName,
		LastName:  s.cfg.SeedLastName,
		JobTitle:  "Investor Relations",
	}, s.cfg.SeedRoutes...)
	if err != nil {
		return nil, err
	}
	s.logger.Info("devserver seeded account: %s", print.MaybePrettyJSON(acc.UserInfo()))
	return acc, nil
}

func (s *Server) registerRoutes() {
	api := s.app.Group("")
	api.Post(backend.DefaultLoginPath, s.login)
	api.Post(backend.DefaultRegisterPath, s.register)
	api.Post(backend.DefaultLogoutPath, s.logout)
	api.Post(backend.DefaultVerifyPath, s.verifySession)
	api.Get(backend.DefaultMePath, s.me)
}

type loginResponse struct {
	AccessToken  string         `json:"accessToken"`
	SessionToken string         `json:"sessionToken"`
	User         *auth.UserInfo `json:"user"`
}

func (s *Server) login(c *fiber.Ctx) error {
	var creds auth.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return badPayload(err, nil)
	}

	acc, err := s.users.authenticate(creds.Email, creds.Password)
	if err != nil {
		s.logger.Info("devserver login rejected for %s", creds.Email)
		return err
	}

	ttl := s.cfg.SessionTTL
	if creds.RememberMe {
		ttl = s.cfg.RememberMeTTL
	}
	sess := s.users.openSession(acc.ID, ttl)

	access, err := s.tokens.issue(acc)
	if err != nil {
		return err
	}

	return c.JSON(loginResponse{
		AccessToken:  access,
		SessionToken: sess.token,
		User:         acc.UserInfo(),
	})
}

func (s *Server) register(c *fiber.Ctx) error {
	var reg auth.Registration
	if err := c.BodyParser(&reg); err != nil {
		return badPayload(err, nil)
	}
	reg.Email = strings.TrimSpace(reg.Email)

	if err := validation.ValidateStruct(&reg,
		validation.Field(&reg.Email, validation.Required, is.Email),
		validation.Field(&reg.Password, validation.Required, validation.Length(s.cfg.PasswordMinLength, 100)),
		validation.Field(&reg.FirstName, validation.Required),
		validation.Field(&reg.LastName, validation.Required),
		validation.Field(&reg.JobTitle, validation.Required),
	); err != nil {
		return badPayload(err, auth.FormatValidationErrorToMap(err))
	}

	acc, err := s.AddUser(reg)
	if err != nil {
		return err
	}

	s.logger.Info("devserver registered %s as %s", acc.Email, acc.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": acc.ID})
}

type verifyRequest struct {
	SessionToken string `json:"sessionToken"`
}

type verifyResponse struct {
	UserInfo     *auth.UserInfo `json:"userInfo"`
	AccessToken  string         `json:"accessToken,omitempty"`
	SessionToken string         `json:"sessionToken,omitempty"`
}

func (s *Server) verifySession(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badPayload(err, nil)
	}

	sess, ok := s.users.session(req.SessionToken)
	if !ok {
		return ErrSessionNotFound
	}

	acc, ok := s.users.account(sess.userID)
	if !ok {
		s.users.closeSession(sess.token)
		return ErrSessionNotFound
	}

	access, err := s.tokens.issue(acc)
	if err != nil {
		return err
	}

	resp := verifyResponse{
		UserInfo:    acc.UserInfo(),
		AccessToken: access,
	}

	if s.cfg.RotateSessions {
		s.users.closeSession(sess.token)
		next := s.users.openSession(acc.ID, sess.expiresAt.Sub(s.now()))
		resp.SessionToken = next.token
	}

	return c.JSON(resp)
}

func (s *Server) me(c *fiber.Ctx) error {
	acc, _, err := s.bearer(c)
	if err != nil {
		return err
	}
	return c.JSON(acc.UserInfo())
}

// logout closes every session of the bearer and revokes the access token.
// It answers 204 for unknown callers too.
func (s *Server) logout(c *fiber.Ctx) error {
	acc, claims, err := s.bearer(c)
	if err == nil {
		closed := s.users.closeUserSessions(acc.ID)
		if claims.ExpiresAt != nil {
			s.users.revoke(claims.ID, claims.ExpiresAt.Time)
		}
		s.logger.Debug("devserver logout %s closed %d sessions", acc.ID, closed)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) bearer(c *fiber.Ctx) (*Account, *accessClaims, error) {
	header := c.Get(fiber.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, nil, ErrAccessTokenInvalid
	}

	claims, err := s.tokens.parse(raw)
	if err != nil {
		s.logger.Debug("devserver bearer rejected: %v", err)
		return nil, nil, ErrAccessTokenInvalid
	}
	if s.users.isRevoked(claims.ID) {
		return nil, nil, ErrAccessTokenInvalid
	}

	acc, ok := s.users.account(claims.Subject)
	if !ok {
		return nil, nil, ErrAccessTokenInvalid
	}
	return acc, claims, nil
}
