package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/chatvault/chatvault/internal/common"
	"github.com/chatvault/chatvault/internal/server/auth"
)

type contextKey string

const usernameKey contextKey = "username"

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", common.ErrorUnauthorized
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", common.ErrInvalidToken
	}
	return token, nil
}

// authenticate verifies the bearer token and returns the session username.
func (s *Server) authenticate(r *http.Request) (string, error) {
	token, err := bearerToken(r)
	if err != nil {
		return "", err
	}
	return auth.GetUsernameFromToken(token, s.jwtSecret)
}

// requireAuth rejects requests without a valid session token and stores the
// username in the request context for the wrapped handler.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), usernameKey, username)
		next(w, r.WithContext(ctx))
	}
}

// sessionUsername returns the username placed in ctx by requireAuth.
func sessionUsername(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}
