package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"biblioteca/internal/patrons"
	"biblioteca/internal/utils"
)

type contextKey string

const patronIDKey contextKey = "patron_id"

// RequireAuth validates the Bearer token and stores the patron id in the
// request context.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				utils.JSONError(w, utils.KindUnauthorized, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := patrons.ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				utils.JSONError(w, utils.KindUnauthorized, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), patronIDKey, claims.PatronID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PatronID returns the authenticated patron id stored by RequireAuth.
func PatronID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(patronIDKey).(uuid.UUID)
	return id, ok
}
