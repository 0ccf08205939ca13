package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/fragmentforge/internal/forge"
)

// DoorView is one door as the team sees it. The correct index and trap
// flag stay hidden until the door has been answered.
type DoorView struct {
	Door            int                 `json:"door"`
	DoorGlobalIndex int                 `json:"doorGlobalIndex"`
	QuestionID      int                 `json:"questionId"`
	Prompt          string              `json:"prompt"`
	Options         []string            `json:"options"`
	Answered        bool                `json:"answered"`
	Answer          *forge.AnswerRecord `json:"answer,omitempty"`
}

type RoomResponse struct {
	Room            int        `json:"room"`
	Complete        bool       `json:"complete"`
	MaxRoomUnlocked int        `json:"maxRoomUnlocked"`
	Doors           []DoorView `json:"doors"`
}

func handleRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := strconv.Atoi(chi.URLParam(r, "room"))
		if err != nil || room < 1 || room > forge.Rooms {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}

		engine := engineFrom(r)
		state := engine.State()
		if room > max(state.MaxRoomUnlocked, 1) {
			writeError(w, http.StatusConflict, "room is locked")
			return
		}

		answers := make(map[int]forge.AnswerRecord, len(state.Answers))
		for _, a := range state.Answers {
			answers[a.DoorGlobalIndex] = a
		}

		resp := RoomResponse{
			Room:            room,
			Complete:        forge.RoomComplete(state.AnsweredDoorIDs, room),
			MaxRoomUnlocked: state.MaxRoomUnlocked,
			Doors:           make([]DoorView, 0, forge.DoorsPerRoom),
		}
		for door := 1; door <= forge.DoorsPerRoom; door++ {
			d := forge.GlobalDoor(room, door)
			q, _ := engine.Question(d)
			v := DoorView{
				Door:            door,
				DoorGlobalIndex: d,
				QuestionID:      q.ID,
				Prompt:          q.Prompt,
				Options:         q.Options,
			}
			if a, ok := answers[d]; ok {
				v.Answered = true
				v.Answer = &a
			}
			resp.Doors = append(resp.Doors, v)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
