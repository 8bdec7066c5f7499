package devserver

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

var ErrInvalidCredentials = goerrors.New("Invalid email or password", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

var ErrSessionNotFound = goerrors.New("Session expired or invalid", goerrors.CategoryAuth).
	WithTextCode("SESSION_INVALID").
	WithCode(goerrors.CodeUnauthorized)

var ErrAccessTokenInvalid = goerrors.New("Access token missing, expired or revoked", goerrors.CategoryAuth).
	WithTextCode("ACCESS_TOKEN_INVALID").
	WithCode(goerrors.CodeUnauthorized)

var ErrEmailTaken = goerrors.New("Email already registered", goerrors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(fiber.StatusConflict)

var ErrBadPayload = goerrors.New("Invalid request payload", goerrors.CategoryBadInput).
	WithTextCode("BAD_REQUEST").
	WithCode(goerrors.CodeBadRequest)

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// errorHandler renders every error as {"error": TEXT_CODE, "message": ...}
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return c.Status(ferr.Code).JSON(errorResponse{
				Error:   "HTTP_ERROR",
				Message: ferr.Message,
			})
		}
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("devserver %s %s: %v", c.Method(), c.Path(), err)
	}

	body := errorResponse{
		Error:   richErr.TextCode,
		Message: richErr.Message,
	}
	if fields, ok := richErr.Metadata["fields"].(map[string]string); ok {
		body.Fields = map[string]any{}
		for k, v := range fields {
			body.Fields[k] = v
		}
	}
	if body.Error == "" {
		body.Error = "ERROR"
	}

	return c.Status(status).JSON(body)
}

func badPayload(err error, fields map[string]string) error {
	clone := ErrBadPayload.Clone()
	clone.Source = err
	if len(fields) > 0 {
		clone = clone.WithMetadata(map[string]any{"fields": fields})
	}
	return clone
}
