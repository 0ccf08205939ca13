package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/fragmentforge/internal/game"
	"github.com/playperu/fragmentforge/internal/login"
)

type ctxKey int

const (
	ctxKeyEngine ctxKey = iota
	ctxKeyAdmin
)

func sessionMiddleware(logger *slog.Logger, tokens TokenStore, sessions *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := sessionToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or missing session token")
				return
			}

			id, err := tokens.Lookup(r.Context(), token)
			if errors.Is(err, login.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "session not found, please log in again")
				return
			}
			if err != nil {
				logger.Error("resolving session token", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			engine := sessions.Open(r.Context(), id)
			ctx := context.WithValue(r.Context(), ctxKeyEngine, engine)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func engineFrom(r *http.Request) *game.Engine {
	return r.Context().Value(ctxKeyEngine).(*game.Engine)
}

func adminFrom(r *http.Request) string {
	user, _ := r.Context().Value(ctxKeyAdmin).(string)
	return user
}
