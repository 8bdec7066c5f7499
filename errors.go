package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoSession          = "AUTH_NO_SESSION"
	TextCodeSessionInvalid     = "AUTH_SESSION_INVALID"
	TextCodeNetworkFailure     = "AUTH_NETWORK_FAILURE"
	TextCodeCredentialRejected = "AUTH_CREDENTIAL_REJECTED"
	TextCodeServerFault        = "AUTH_SERVER_FAULT"
	TextCodeUnauthorized       = "AUTH_ROUTE_UNAUTHORIZED"
	TextCodeValidation         = "AUTH_VALIDATION_FAILED"
	TextCodeRequestRejected    = "AUTH_REQUEST_REJECTED"
)

// Backend operation names, used in error metadata and activity events.
const (
	OpLogin         = "login"
	OpRegister      = "register"
	OpLogout        = "logout"
	OpVerifySession = "verify_session"
	OpMe            = "me"
)

// ErrNoSession is returned when there is no session token to restore.
// It is not surfaced to the user.
var ErrNoSession = goerrors.New("no session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionInvalid is returned when the backend rejects the session token
var ErrSessionInvalid = goerrors.New("session expired or invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrNetworkFailure is returned when a backend call did not complete
var ErrNetworkFailure = goerrors.New("unable to reach the server", goerrors.CategoryOperation).
	WithTextCode(TextCodeNetworkFailure).
	WithCode(http.StatusServiceUnavailable)

// ErrCredentialRejected is returned when login is refused
var ErrCredentialRejected = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredentialRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrServerFault is returned for 5xx class responses
var ErrServerFault = goerrors.New("server error", goerrors.CategoryInternal).
	WithTextCode(TextCodeServerFault).
	WithCode(goerrors.CodeInternal)

// ErrUnauthorized describes an authenticated user lacking a route grant.
var ErrUnauthorized = goerrors.New("route not granted", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeForbidden)

// ErrValidation is returned when a form payload is not well formed
var ErrValidation = goerrors.New("invalid form input", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrRequestRejected is returned for non auth 4xx responses, e.g. an email
// that is already registered.
var ErrRequestRejected = goerrors.New("request rejected", goerrors.CategoryBadInput).
	WithTextCode(TextCodeRequestRejected).
	WithCode(goerrors.CodeBadRequest)

// ErrSuperseded is returned when a newer auth action made a result stale.
var ErrSuperseded = errors.New("auth operation superseded")

// ErrorKind is the client side error taxonomy
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnknown
	KindNoSession
	KindSessionInvalid
	KindNetworkFailure
	KindCredentialRejected
	KindServerFault
	KindUnauthorized
	KindValidation
	KindRequestRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNoSession:
		return "no_session"
	case KindSessionInvalid:
		return "session_invalid"
	case KindNetworkFailure:
		return "network_failure"
	case KindCredentialRejected:
		return "credential_rejected"
	case KindServerFault:
		return "server_fault"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindRequestRejected:
		return "request_rejected"
	default:
		return "unknown"
	}
}

// BackendError captures a normalized backend response failure.
type BackendError struct {
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *BackendError) Error() string {
	if e == nil {
		return "backend error"
	}

	scope := "backend"
	if e.Operation != "" {
		scope = "backend " + e.Operation
	}

	switch {
	case e.Description != "":
		return fmt.Sprintf("%s failed (%d): %s", scope, e.Status, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s failed (%d): %s", scope, e.Status, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	default:
		return fmt.Sprintf("%s failed (%d)", scope, e.Status)
	}
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata returns the error attributes for logging
func (e *BackendError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if e.Err != nil {
		meta["error"] = e.Err.Error()
	}
	return meta
}

// NormalizeBackendError maps a raw failure from a backend call to one of
// the taxonomy errors. It returns nil for a nil error.
func NormalizeBackendError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && kindOfTextCode(richErr.TextCode) != KindUnknown {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrapKind(ErrNetworkFailure, operation, err)
	}

	var berr *BackendError
	if !errors.As(err, &berr) || berr == nil {
		return wrapKind(ErrNetworkFailure, operation, err)
	}

	switch {
	case berr.Status == 0:
		return wrapKind(ErrNetworkFailure, operation, err)
	case berr.Status == http.StatusUnauthorized || berr.Status == http.StatusForbidden:
		if operation == OpLogin {
			return wrapKind(ErrCredentialRejected, operation, err)
		}
		return wrapKind(ErrSessionInvalid, operation, err)
	case berr.Status >= http.StatusInternalServerError:
		return wrapKind(ErrServerFault, operation, err)
	default:
		return wrapKind(ErrRequestRejected, operation, err)
	}
}

// Classify returns the taxonomy kind of err
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return kindOfTextCode(richErr.TextCode)
	}

	var berr *BackendError
	if errors.As(err, &berr) {
		return Classify(NormalizeBackendError(berr.Operation, err))
	}

	return KindUnknown
}

// UserMessage returns the message a form banner should show for err
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindCredentialRejected:
		return "Invalid email or password."
	case KindNetworkFailure:
		return "Unable to reach the server. Check your connection and try again."
	case KindServerFault:
		return "Something went wrong. Please try again later."
	case KindValidation:
		return "Please correct the highlighted fields."
	case KindSessionInvalid, KindNoSession:
		return "Your session has expired. Please sign in again."
	case KindUnauthorized:
		return "You do not have access to this page."
	case KindRequestRejected:
		if desc := errorDescription(err); desc != "" {
			return desc
		}
		return "The request could not be completed."
	default:
		return "Something went wrong. Please try again later."
	}
}

func kindOfTextCode(code string) ErrorKind {
	switch code {
	case TextCodeNoSession:
		return KindNoSession
	case TextCodeSessionInvalid:
		return KindSessionInvalid
	case TextCodeNetworkFailure:
		return KindNetworkFailure
	case TextCodeCredentialRejected:
		return KindCredentialRejected
	case TextCodeServerFault:
		return KindServerFault
	case TextCodeUnauthorized:
		return KindUnauthorized
	case TextCodeValidation:
		return KindValidation
	case TextCodeRequestRejected:
		return KindRequestRejected
	default:
		return KindUnknown
	}
}

func errorDescription(err error) string {
	var berr *BackendError
	if errors.As(err, &berr) && berr != nil {
		return berr.Description
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if desc, ok := richErr.Metadata["description"].(string); ok {
			return desc
		}
	}
	return ""
}

func wrapKind(base *goerrors.Error, operation string, err error) *goerrors.Error {
	meta := map[string]any{}
	if operation != "" {
		meta["operation"] = operation
	}

	var berr *BackendError
	if errors.As(err, &berr) && berr != nil {
		for k, v := range berr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	clone := base.Clone()
	if clone == nil {
		return base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone = clone.WithMetadata(meta)
	}
	return clone
}

func richMetadata(err error) map[string]any {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.Metadata
	}
	return nil
}
