package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/internal/service"
)

// CookieName is the cookie a browser carries its session token in.
const CookieName = "kathaghar_session"

const sessionHolderKey contextKey = "sessionHolder"

type sessionHolder struct {
	session *model.Session
}

// SessionReader turns a token into a session.
type SessionReader interface {
	Read(token string) (*model.Session, error)
}

// Session reads the token from the Authorization header or the session
// cookie and stores the resulting session in the request context.
// Requests without a token pass through anonymous; a token that fails to
// verify is rejected with 401.
func Session(reader SessionReader) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r)
			if err != nil {
				model.NewUnauthorizedError(err.Error()).WriteJSON(w)
				return
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := reader.Read(token)
			if err != nil {
				detail := "invalid session token"
				if errors.Is(err, service.ErrSessionExpired) {
					detail = "session expired"
				}
				model.NewUnauthorizedError(detail).WriteJSON(w)
				return
			}

			if holder, ok := r.Context().Value(sessionHolderKey).(*sessionHolder); ok {
				holder.session = session
			}
			ctx := context.WithValue(r.Context(), SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that reach it without a session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSession(r.Context()) == nil {
			model.NewUnauthorizedError("authentication required").WriteJSON(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSession returns the request's session, or nil for anonymous requests.
func GetSession(ctx context.Context) *model.Session {
	if s, ok := ctx.Value(SessionKey).(*model.Session); ok {
		return s
	}
	return nil
}

// tokenFromRequest prefers the Authorization header over the cookie. A
// malformed header is an error; no token at all is not.
func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", errors.New("invalid authorization header format")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", nil
}
