package httpapi

import (
	"context"
	"net/http"
)

type userKeyType struct{}

var userKey = userKeyType{}

// User is the resolved owner of a request.
type User struct {
	ID   string
	Name string
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(userKey).(*User)
	return u, ok && u != nil
}

// authMiddleware resolves X-Api-Key to a user and rejects everything else
// with 401. All /api routes are owner-scoped, so there is no anonymous mode.
func (s *Server) authMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Api-Key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing api key", nil)
				return
			}
			entry, ok := s.apiKeys.Lookup(key)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api key", nil)
				return
			}
			ctx := WithUser(r.Context(), &User{ID: entry.UserID, Name: entry.Name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
