package server

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/fragmentforge/internal/forge"
	"github.com/playperu/fragmentforge/internal/remote"
)

const msgBadCredentials = "Invalid team credentials. Check the email and password from your organiser."

// ProfileReader looks up the team profile stored for a session.
type ProfileReader interface {
	ReadProfile(ctx context.Context, id string) (remote.Profile, error)
}

type LoginRequest struct {
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginResponse struct {
	Token    string          `json:"token"`
	TeamName string          `json:"teamName"`
	State    forge.GameState `json:"state"`
}

func handleLogin(logger *slog.Logger, profiles ProfileReader, tokens TokenStore, sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.SessionID = strings.TrimSpace(req.SessionID)
		req.Email = strings.TrimSpace(req.Email)
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "sessionId is required")
			return
		}
		if req.Password == "" {
			writeError(w, http.StatusUnauthorized, msgBadCredentials)
			return
		}

		p, err := profiles.ReadProfile(r.Context(), req.SessionID)
		if errors.Is(err, remote.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, msgBadCredentials)
			return
		}
		if err != nil {
			logger.Error("reading team profile", "session_id", req.SessionID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "team store unavailable, try again shortly")
			return
		}
		if !checkCredentials(p, req.Email, req.Password) {
			logger.Warn("login rejected", "session_id", req.SessionID)
			writeError(w, http.StatusUnauthorized, msgBadCredentials)
			return
		}

		name := strings.TrimSpace(p.TeamName)
		if name == "" {
			name = fallbackTeamName(cmp.Or(p.Email, req.Email))
		}
		if name == "" {
			writeError(w, http.StatusUnauthorized, "No team name is set for this login. Ask the organiser to finish your team profile.")
			return
		}

		engine := sessions.Open(r.Context(), req.SessionID)
		engine.SetTeamName(name)

		token, err := tokens.Issue(r.Context(), req.SessionID)
		if err != nil {
			logger.Error("issuing session token", "session_id", req.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		state := engine.State()
		writeJSON(w, http.StatusOK, LoginResponse{
			Token:    token,
			TeamName: state.TeamName,
			State:    state,
		})
	}
}

// checkCredentials verifies password against the profile's bcrypt hash.
// When the profile carries an email the request must name the same one.
func checkCredentials(p remote.Profile, email, password string) bool {
	if p.PasswordHash == "" {
		return false
	}
	if p.Email != "" && !strings.EqualFold(p.Email, email) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) == nil
}

// fallbackTeamName derives "<local part>'s Team" from an email address.
func fallbackTeamName(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if local == "" {
		return ""
	}
	return local + "'s Team"
}
