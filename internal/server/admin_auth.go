package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials guard the operator endpoints. PasswordHash is a bcrypt hash.
type AdminCredentials struct {
	User         string
	PasswordHash string
}

func (c AdminCredentials) enabled() bool {
	return c.User != "" && c.PasswordHash != ""
}

func (c AdminCredentials) verify(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password))
	return userOK && passErr == nil
}

func adminAuthMiddleware(creds AdminCredentials) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, password, ok := r.BasicAuth()
			if !ok || !creds.verify(user, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="fragment-forge-admin"`)
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAdmin, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
