package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/fragmentforge/internal/forge"
	"github.com/playperu/fragmentforge/internal/game"
	"github.com/playperu/fragmentforge/internal/remote"
)

type AdminSessionItem struct {
	SessionID   string        `json:"sessionId"`
	Subscribers int           `json:"subscribers"`
	Summary     forge.Summary `json:"summary"`
}

func handleAdminListSessions(sessions *Registry, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := []AdminSessionItem{}
		for _, id := range sessions.IDs() {
			e, err := sessions.Session(r.Context(), id)
			if err != nil {
				continue
			}
			items = append(items, AdminSessionItem{
				SessionID:   id,
				Subscribers: broker.Subscribers(id),
				Summary:     e.Summary(),
			})
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func adminSession(w http.ResponseWriter, r *http.Request, sessions *Registry) (*game.Engine, bool) {
	e, err := sessions.Session(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, errUnknownSession) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return e, true
}

func handleAdminExport(sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := adminSession(w, r, sessions)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, e.Export())
	}
}

func handleAdminReset(logger *slog.Logger, sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := adminSession(w, r, sessions)
		if !ok {
			return
		}
		e.Reset()
		logger.Info("session reset by operator", "session_id", e.SessionID(), "admin", adminFrom(r))
		writeJSON(w, http.StatusOK, ActionResponse{Applied: true, State: e.State()})
	}
}

// RoundReader reads the round record kept in the remote store.
type RoundReader interface {
	ReadRound(ctx context.Context, id string) (remote.Round1, error)
}

func handleAdminRound(rounds RoundReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		round, err := rounds.ReadRound(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, remote.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no round recorded for this session")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "remote store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, round)
	}
}

type AdminProfileRequest struct {
	TeamName string `json:"teamName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminProfileResponse struct {
	SessionID string `json:"sessionId"`
	TeamName  string `json:"teamName"`
	Email     string `json:"email"`
}

const minTeamPasswordLen = 8

// handleAdminProfile sets the login credentials of a team. Tokens issued
// under the previous credentials stop working.
func handleAdminProfile(logger *slog.Logger, profiles ProfileStore, tokens TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req AdminProfileRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.TeamName = strings.TrimSpace(req.TeamName)
		req.Email = strings.TrimSpace(req.Email)
		if len(req.Password) < minTeamPasswordLen {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minTeamPasswordLen))
			return
		}
		if req.TeamName == "" && req.Email == "" {
			writeError(w, http.StatusBadRequest, "teamName or email is required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "password cannot be hashed")
			return
		}

		err = profiles.WriteProfile(r.Context(), id, remote.Profile{
			TeamName:     req.TeamName,
			Email:        req.Email,
			PasswordHash: string(hash),
		})
		if err != nil {
			logger.Error("writing team profile", "session_id", id, "error", err)
			writeError(w, http.StatusBadGateway, "remote store unavailable")
			return
		}
		if err := tokens.Revoke(r.Context(), id); err != nil {
			logger.Error("revoking session tokens", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("team credentials set", "session_id", id, "admin", adminFrom(r))
		writeJSON(w, http.StatusOK, AdminProfileResponse{
			SessionID: id,
			TeamName:  req.TeamName,
			Email:     req.Email,
		})
	}
}
