// Package auth is the client side authentication and authorization core of
// the investor relations CRM front end.
//
// Auth state:
//   - StateStore holds the single AuthState (user, authenticated flag,
//     loading flag). Authenticated is derived from the user, so the two can
//     never disagree. Every write replaces the whole state.
//   - Writers carry an epoch. Starting a bootstrap, logging in or logging out
//     retires older epochs, and a commit from a retired epoch is dropped
//     together with its token store side effects.
//
// Bootstrap:
//   - Bootstrapper runs once per mount. Without a session token it resolves
//     to unauthenticated with no network call. With one it asks the backend
//     to verify the session under a timeout; any failure clears the stored
//     credentials and resolves to unauthenticated.
//
// Route guard:
//   - RouteGuard decides Allow, Loading, Redirect or Unauthorized for a path.
//     Public routes always render. A user may open a path when one of the
//     backend issued allowed routes is a prefix of it.
//
// Flows:
//   - SessionManager logs in (credentials, then identity confirmation, then
//     state), registers and logs out. Logout is fail-open.
//   - Client wires everything into an application lifetime and re-evaluates
//     the current view on every state change.
package auth
