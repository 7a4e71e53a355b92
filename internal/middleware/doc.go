// Package middleware provides the HTTP middleware in front of the session
// endpoints.
//
//   - RequestID tags each request and echoes X-Request-ID.
//   - Logger writes one structured line per request.
//   - Recovery turns panics into a 500 problem response.
//   - Session verifies a Bearer token or the kathaghar_session cookie and
//     stores the session in the request context; RequireSession rejects
//     anonymous requests.
//   - Limit throttles credential checks per client address.
//
// Handlers read the session with GetSession(r.Context()).
package middleware
