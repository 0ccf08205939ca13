// Package forge defines the core domain types and the scoring, unlock and
// reward rules of the Fragment Forge round.
// It does no I/O and has no external dependencies.
package forge

import (
	"fmt"
	"slices"
	"time"
)

const (
	GameName = "Fragment Forge"
	Tagline  = "Where the first piece of the ultimate code is shaped."

	Rooms        = 10
	DoorsPerRoom = 5
	TotalDoors   = Rooms * DoorsPerRoom

	PointsCorrect = 5
	PenaltyTrap   = -5

	// HighScoreAnswers is the number of correct answers that counts as a high score.
	HighScoreAnswers = 40

	DefaultRoundMinutes = 30
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusPlaying    Status = "playing"
	StatusCompleted  Status = "completed"
	StatusTimeout    Status = "timeout"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusPlaying, StatusCompleted, StatusTimeout:
		return true
	}
	return false
}

// Terminal reports whether s ends a round.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTimeout
}

type DoorKind string

const (
	DoorTrap   DoorKind = "trap"
	DoorNormal DoorKind = "normal"
)

type Question struct {
	ID           int      `json:"id" yaml:"id"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correctIndex"`
	IsTrap       bool     `json:"isTrap" yaml:"isTrap"`
}

type AnswerRecord struct {
	Room            int       `json:"room"`
	Door            int       `json:"door"`
	DoorGlobalIndex int       `json:"doorGlobalIndex"`
	QuestionID      int       `json:"questionId"`
	Prompt          string    `json:"prompt"`
	Options         []string  `json:"options"`
	CorrectIndex    int       `json:"correctIndex"`
	SelectedIndex   int       `json:"selectedIndex"`
	Correct         bool      `json:"correct"`
	DoorType        DoorKind  `json:"doorType"`
	DeltaScore      int       `json:"deltaScore"`
	AnsweredAt      time.Time `json:"answeredAt"`
}

type GameState struct {
	TeamName        string         `json:"teamName"`
	StartTime       *time.Time     `json:"startTime,omitempty"`
	EndTime         *time.Time     `json:"endTime,omitempty"`
	Score           int            `json:"score"`
	Answers         []AnswerRecord `json:"answers"`
	AnsweredDoorIDs []int          `json:"answeredDoorIds"`
	MaxRoomUnlocked int            `json:"maxRoomUnlocked"`
	HasFragment     bool           `json:"hasFragment"`
	FragmentEarned  bool           `json:"fragmentEarned"`
	TimeRemaining   int            `json:"timeRemaining"`
	GameStatus      Status         `json:"gameStatus"`
}

// DefaultState returns the state of a session that has never been started.
func DefaultState(limitSeconds int) GameState {
	return GameState{
		Answers:         []AnswerRecord{},
		AnsweredDoorIDs: []int{},
		TimeRemaining:   limitSeconds,
		GameStatus:      StatusNotStarted,
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s GameState) Clone() GameState {
	out := s
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	out.AnsweredDoorIDs = slices.Clone(s.AnsweredDoorIDs)
	if out.AnsweredDoorIDs == nil {
		out.AnsweredDoorIDs = []int{}
	}
	out.Answers = make([]AnswerRecord, len(s.Answers))
	for i, a := range s.Answers {
		a.Options = slices.Clone(a.Options)
		out.Answers[i] = a
	}
	return out
}

// IsDoorAnswered reports whether door has already been resolved.
func (s GameState) IsDoorAnswered(door int) bool {
	return slices.Contains(s.AnsweredDoorIDs, door)
}

// CorrectCount returns the number of correct answers given so far.
func (s GameState) CorrectCount() int {
	n := 0
	for _, a := range s.Answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// ScoreDelta is the score change for one resolved door.
// Wrong answers only cost points behind trap doors.
func ScoreDelta(correct, trap bool) int {
	switch {
	case correct:
		return PointsCorrect
	case trap:
		return PenaltyTrap
	default:
		return 0
	}
}

// RoomOf returns the 1-based room holding the global door index.
func RoomOf(door int) int {
	return door/DoorsPerRoom + 1
}

// DoorInRoom returns the 1-based position of the global door index inside its room.
func DoorInRoom(door int) int {
	return door%DoorsPerRoom + 1
}

// GlobalDoor converts a room and 1-based door position into a global door index.
func GlobalDoor(room, door int) int {
	return (room-1)*DoorsPerRoom + door - 1
}

// RoomComplete reports whether every door of room appears in answered.
func RoomComplete(answered []int, room int) bool {
	first := (room - 1) * DoorsPerRoom
	n := 0
	for _, id := range answered {
		if id >= first && id < first+DoorsPerRoom {
			n++
		}
	}
	return n == DoorsPerRoom
}

// NextUnlocked returns the highest unlocked room after resolving a door in
// room. It never returns less than current.
func NextUnlocked(current int, answered []int, room int) int {
	if !RoomComplete(answered, room) {
		return current
	}
	return max(current, min(Rooms, room+1))
}

// FragmentEarned evaluates the reward table. Only completed rounds can earn
// a fragment; the bands are closed intervals in minutes.
func FragmentEarned(reason Status, elapsed time.Duration, correct int) bool {
	if reason != StatusCompleted {
		return false
	}
	minutes := float64(elapsed.Milliseconds()) / 60000
	high := correct >= HighScoreAnswers
	low := !high

	switch {
	case minutes >= 10 && minutes <= 15 && high:
		return true
	case minutes >= 15 && minutes <= 20 && low:
		return false
	case minutes >= 20 && minutes <= 25 && high:
		return true
	case minutes >= 20 && minutes <= 25 && low:
		return false
	}
	return false
}

// FormatTime renders seconds as MM:SS.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// SessionExport is the flattened report of a session.
type SessionExport struct {
	GameName       string         `json:"gameName"`
	Tagline        string         `json:"tagline"`
	TeamName       string         `json:"teamName"`
	StartTime      *time.Time     `json:"startTime,omitempty"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	TotalScore     int            `json:"totalScore"`
	Answers        []AnswerRecord `json:"answers"`
	HasFragment    bool           `json:"hasFragment"`
	FragmentEarned bool           `json:"fragmentEarned"`
}

// Export projects s onto the report shape.
func (s GameState) Export() SessionExport {
	c := s.Clone()
	return SessionExport{
		GameName:       GameName,
		Tagline:        Tagline,
		TeamName:       c.TeamName,
		StartTime:      c.StartTime,
		EndTime:        c.EndTime,
		TotalScore:     c.Score,
		Answers:        c.Answers,
		HasFragment:    c.HasFragment,
		FragmentEarned: c.FragmentEarned,
	}
}

// Summary is the game-over overview shown to the team.
type Summary struct {
	TeamName       string `json:"teamName"`
	Status         Status `json:"status"`
	Score          int    `json:"score"`
	Answered       int    `json:"answered"`
	Correct        int    `json:"correct"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
	Elapsed        string `json:"elapsed"`
	Remaining      string `json:"remaining"`
	RoomsCleared   string `json:"roomsCleared"`
	HasFragment    bool   `json:"hasFragment"`
	FragmentEarned bool   `json:"fragmentEarned"`
}

// Summarize builds the overview for s given the round limit in seconds.
func (s GameState) Summarize(limitSeconds int) Summary {
	elapsed := max(limitSeconds-s.TimeRemaining, 0)
	return Summary{
		TeamName:       s.TeamName,
		Status:         s.GameStatus,
		Score:          s.Score,
		Answered:       len(s.AnsweredDoorIDs),
		Correct:        s.CorrectCount(),
		ElapsedSeconds: elapsed,
		Elapsed:        FormatTime(elapsed),
		Remaining:      FormatTime(s.TimeRemaining),
		RoomsCleared:   fmt.Sprintf("%d/%d", s.MaxRoomUnlocked, Rooms),
		HasFragment:    s.HasFragment,
		FragmentEarned: s.FragmentEarned,
	}
}
