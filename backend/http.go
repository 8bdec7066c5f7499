package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	auth "github.com/goliatone/go-auth-client"
)

var _ auth.Backend = (*HTTP)(nil)

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 4 << 10

// HTTP is an auth.Backend over the REST auth API
type HTTP struct {
	config      Config
	httpClient  *http.Client
	credentials CredentialSource
	logger      auth.Logger
}

// Option customizes the HTTP backend
type Option func(*HTTP)

// WithHTTPClient sets the client used for every request
func WithHTTPClient(client *http.Client) Option {
	return func(h *HTTP) {
		if client != nil {
			h.httpClient = client
		}
	}
}

// WithCredentials sets where the bearer access token is read from
func WithCredentials(src CredentialSource) Option {
	return func(h *HTTP) {
		h.credentials = src
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(h *HTTP) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a new HTTP backend.
func New(cfg Config, opts ...Option) *HTTP {
	cfg = cfg.withDefaults()
	h := &HTTP{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Login implements auth.Backend.
func (h *HTTP) Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResponse, error) {
	out := &auth.LoginResponse{}
	if err := h.do(ctx, auth.OpLogin, http.MethodPost, h.config.LoginPath, creds, false, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register implements auth.Backend.
func (h *HTTP) Register(ctx context.Context, reg auth.Registration) error {
	return h.do(ctx, auth.OpRegister, http.MethodPost, h.config.RegisterPath, reg, false, nil)
}

// Logout implements auth.Backend.
func (h *HTTP) Logout(ctx context.Context) error {
	return h.do(ctx, auth.OpLogout, http.MethodPost, h.config.LogoutPath, nil, true, nil)
}

type verifyRequest struct {
	SessionToken string `json:"sessionToken"`
}

// VerifySession implements auth.Backend.
func (h *HTTP) VerifySession(ctx context.Context, sessionToken string) (*auth.VerifyResponse, error) {
	out := &auth.VerifyResponse{}
	body := verifyRequest{SessionToken: sessionToken}
	if err := h.do(ctx, auth.OpVerifySession, http.MethodPost, h.config.VerifyPath, body, false, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me implements auth.Backend.
func (h *HTTP) Me(ctx context.Context) (*auth.UserInfo, error) {
	out := &auth.UserInfo{}
	if err := h.do(ctx, auth.OpMe, http.MethodGet, h.config.MePath, nil, true, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HTTP) do(ctx context.Context, op, method, path string, in any, bearer bool, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &auth.BackendError{Operation: op, Description: "failed to encode request", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.config.BaseURL+path, body)
	if err != nil {
		return &auth.BackendError{Operation: op, Description: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if bearer && h.credentials != nil {
		token, err := h.credentials.AccessToken(ctx)
		if err != nil {
			return &auth.BackendError{Operation: op, Description: "failed to read access token", Err: err}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Debug("backend %s transport error: %v", op, err)
		return &auth.BackendError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		code, description := parseError(raw)
		h.logger.Debug("backend %s status %d: %s", op, resp.StatusCode, description)
		return &auth.BackendError{
			Operation:   op,
			Status:      resp.StatusCode,
			Code:        code,
			Description: description,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// a 2xx with an unreadable body is not a confirmed answer
		return &auth.BackendError{
			Operation:   op,
			Status:      http.StatusBadGateway,
			Code:        "invalid_response",
			Description: "failed to decode response",
			Err:         err,
		}
	}
	return nil
}

type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

// parseError extracts a code and human readable description from an error
// body. Both {"error":"..."} and {"error":{"code":..,"message":..}} shapes
// are accepted; anything else falls back to the trimmed raw text.
func parseError(raw []byte) (string, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ""
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", truncate(string(raw))
	}

	code, description := body.Code, body.Message
	if len(body.Error) > 0 {
		var s string
		if err := json.Unmarshal(body.Error, &s); err == nil {
			if description == "" {
				description = s
			} else if code == "" {
				code = s
			}
		} else {
			var nested struct {
				Code    any    `json:"code"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(body.Error, &nested); err == nil {
				if code == "" && nested.Code != nil {
					code = fmt.Sprint(nested.Code)
				}
				if description == "" {
					description = nested.Message
				}
			}
		}
	}
	return code, description
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
