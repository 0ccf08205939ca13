package server

import (
	"net/http"

	"github.com/playperu/fragmentforge/internal/forge"
	"github.com/playperu/fragmentforge/internal/game"
)

type AnswerRequest struct {
	Room          int `json:"room"`
	Door          int `json:"door"`
	SelectedIndex int `json:"selectedIndex"`
}

type AnswerResponse struct {
	Applied bool                `json:"applied"`
	Record  *forge.AnswerRecord `json:"record,omitempty"`
	State   forge.GameState     `json:"state"`
}

func handleAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Room < 1 || req.Room > forge.Rooms || req.Door < 1 || req.Door > forge.DoorsPerRoom {
			writeError(w, http.StatusBadRequest, "room must be 1-10 and door 1-5")
			return
		}

		engine := engineFrom(r)
		if state := engine.State(); state.GameStatus == forge.StatusPlaying && req.Room > state.MaxRoomUnlocked {
			writeError(w, http.StatusConflict, "room is locked")
			return
		}

		rec, applied := engine.Answer(game.AnswerInput{
			Room:            req.Room,
			Door:            req.Door,
			DoorGlobalIndex: forge.GlobalDoor(req.Room, req.Door),
			SelectedIndex:   req.SelectedIndex,
		})

		resp := AnswerResponse{Applied: applied, State: engine.State()}
		if applied {
			resp.Record = &rec
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
