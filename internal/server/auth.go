package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var errNoSession = errors.New("no valid session")

// TokenStore issues and resolves the opaque bearer tokens handed out at
// login.
type TokenStore interface {
	Issue(ctx context.Context, sessionID string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, sessionID string) error
}

// sessionToken reads the bearer token from the Authorization header, or
// from the token query parameter for EventSource and WebSocket clients
// that cannot set headers.
func sessionToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(auth, "Bearer "); found && token != "" {
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errNoSession
}
