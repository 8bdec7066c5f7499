// Package backend talks to the remote auth API over HTTP/JSON.
//
// HTTP implements auth.Backend. Every non 2xx answer and every transport
// failure comes back as *auth.BackendError, so callers can map it to the
// client error taxonomy with auth.NormalizeBackendError.
package backend
