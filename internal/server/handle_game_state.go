package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/playperu/fragmentforge/internal/forge"
)

type GameStateResponse struct {
	State     forge.GameState `json:"state"`
	TimeLimit int             `json:"timeLimit"`
	TimeLeft  string          `json:"timeLeft"`
}

// ActionResponse reports whether an operation changed the session. Requests
// whose preconditions do not hold are answered with applied=false.
type ActionResponse struct {
	Applied bool            `json:"applied"`
	State   forge.GameState `json:"state"`
}

type FinishRequest struct {
	Reason forge.Status `json:"reason"`
}

func handleGameState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine := engineFrom(r)
		state := engine.State()

		writeJSON(w, http.StatusOK, GameStateResponse{
			State:     state,
			TimeLimit: engine.TimeLimit(),
			TimeLeft:  forge.FormatTime(state.TimeRemaining),
		})
	}
}

func handleStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine := engineFrom(r)
		applied := engine.Start()
		writeJSON(w, http.StatusOK, ActionResponse{Applied: applied, State: engine.State()})
	}
}

func handleFinish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FinishRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Reason != "" && !req.Reason.Terminal() {
			writeError(w, http.StatusBadRequest, "reason must be completed or timeout")
			return
		}

		engine := engineFrom(r)
		applied := engine.Finish(req.Reason)
		writeJSON(w, http.StatusOK, ActionResponse{Applied: applied, State: engine.State()})
	}
}

func handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine := engineFrom(r)
		engine.Reset()
		writeJSON(w, http.StatusOK, ActionResponse{Applied: true, State: engine.State()})
	}
}

func handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engineFrom(r).Export())
	}
}

func handleSummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engineFrom(r).Summary())
	}
}
