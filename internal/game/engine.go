// Package game runs the session state machine of a Fragment Forge round.
//
// An Engine owns one team's GameState. Every mutation, whether it comes from
// a player operation or a countdown tick, goes through the engine's lock, is
// written to the local snapshot before the lock is released, and is then
// offered to the remote store through a Dispatcher without waiting for it.
package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/playperu/fragmentforge/internal/forge"
)

// Snapshots persists the serialized state in a named slot.
type Snapshots interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, data []byte) error
}

// Remote is the shared team store.
type Remote interface {
	CreateSession(ctx context.Context, id string) error
	UpdateScore(ctx context.Context, id string, score int) error
	FinalizeSession(ctx context.Context, id string, score int) error
}

// Dispatcher runs remote calls in the background.
type Dispatcher interface {
	Dispatch(op string, fn func(ctx context.Context) error)
}

type Options struct {
	// SessionID identifies the team in the remote store. Remote calls are
	// skipped when it is empty.
	SessionID string
	// Slot names the snapshot slot.
	Slot string
	// TimeLimit is the length of a round. Defaults to 30 minutes.
	TimeLimit time.Duration
	// Doors holds one question per global door index.
	Doors []forge.Question

	Snapshots  Snapshots
	Remote     Remote
	Dispatcher Dispatcher
	Clock      clockwork.Clock
	Logger     *slog.Logger

	// OnChange receives a copy of the state after every mutation. It is
	// called with the engine locked and must not block or call back into
	// the engine.
	OnChange func(forge.GameState)
}

type Engine struct {
	mu    sync.Mutex
	state forge.GameState
	timer *countdown

	sessionID  string
	slot       string
	limit      int
	doors      []forge.Question
	snapshots  Snapshots
	remote     Remote
	dispatcher Dispatcher
	clock      clockwork.Clock
	logger     *slog.Logger
	onChange   func(forge.GameState)
}

// New creates an engine and restores its state from the snapshot slot. A
// missing or unreadable snapshot starts from defaults. A restored round that
// was still playing resumes its countdown from the saved time.
func New(ctx context.Context, opts Options) *Engine {
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = forge.DefaultRoundMinutes * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		timer:      newCountdown(opts.Clock),
		sessionID:  opts.SessionID,
		slot:       opts.Slot,
		limit:      int(opts.TimeLimit / time.Second),
		doors:      opts.Doors,
		snapshots:  opts.Snapshots,
		remote:     opts.Remote,
		dispatcher: opts.Dispatcher,
		clock:      opts.Clock,
		logger:     opts.Logger.With("session_id", opts.SessionID),
		onChange:   opts.OnChange,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.restore(ctx)
	if e.state.GameStatus == forge.StatusPlaying {
		e.logger.Info("resuming round", "time_remaining", e.state.TimeRemaining)
		e.timer.start(e.tick)
	}
	return e
}

func (e *Engine) restore(ctx context.Context) forge.GameState {
	defaults := forge.DefaultState(e.limit)
	if e.snapshots == nil {
		return defaults
	}

	data, err := e.snapshots.Load(ctx, e.slot)
	if err != nil {
		e.logger.Debug("no snapshot, starting fresh", "slot", e.slot, "error", err)
		return defaults
	}

	var s forge.GameState
	if err := json.Unmarshal(data, &s); err != nil {
		e.logger.Warn("discarding unreadable snapshot", "slot", e.slot, "error", err)
		return defaults
	}
	if !s.GameStatus.Valid() || len(s.Answers) != len(s.AnsweredDoorIDs) || !distinctDoors(s.AnsweredDoorIDs) {
		e.logger.Warn("discarding inconsistent snapshot", "slot", e.slot)
		return defaults
	}
	if s.Answers == nil {
		s.Answers = []forge.AnswerRecord{}
	}
	if s.AnsweredDoorIDs == nil {
		s.AnsweredDoorIDs = []int{}
	}
	// The limit may have shrunk since the snapshot was written.
	s.TimeRemaining = min(max(s.TimeRemaining, 0), e.limit)
	return s
}

// distinctDoors reports whether every id is a valid door index and none
// repeats.
func distinctDoors(ids []int) bool {
	var seen [forge.TotalDoors]bool
	for _, id := range ids {
		if id < 0 || id >= forge.TotalDoors || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// mutate applies fn under the lock. When fn reports a change the new state
// is snapshotted and published.
func (e *Engine) mutate(fn func() bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !fn() {
		return false
	}
	e.commitLocked()
	return true
}

func (e *Engine) commitLocked() {
	e.persistLocked()
	if e.onChange != nil {
		e.onChange(e.state.Clone())
	}
}

func (e *Engine) persistLocked() {
	if e.snapshots == nil {
		return
	}
	data, err := json.Marshal(e.state)
	if err != nil {
		e.logger.Error("encoding snapshot", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.snapshots.Save(ctx, e.slot, data); err != nil {
		e.logger.Error("snapshot write failed", "slot", e.slot, "error", err)
	}
}

// sync hands a remote call to the dispatcher.
func (e *Engine) sync(op string, fn func(ctx context.Context, r Remote, id string) error) {
	if e.sessionID == "" || e.remote == nil || e.dispatcher == nil {
		return
	}
	r, id := e.remote, e.sessionID
	e.dispatcher.Dispatch(op, func(ctx context.Context) error {
		return fn(ctx, r, id)
	})
}

// SetTeamName names the team. Ignored while a round is running.
func (e *Engine) SetTeamName(name string) bool {
	name = strings.TrimSpace(name)
	return e.mutate(func() bool {
		if name == "" || e.state.GameStatus == forge.StatusPlaying || name == e.state.TeamName {
			return false
		}
		e.state.TeamName = name
		return true
	})
}

// Start begins a fresh round. It requires a team name.
func (e *Engine) Start() bool {
	return e.mutate(func() bool {
		if e.state.TeamName == "" {
			return false
		}

		now := e.clock.Now()
		e.state = forge.GameState{
			TeamName:        e.state.TeamName,
			StartTime:       &now,
			Answers:         []forge.AnswerRecord{},
			AnsweredDoorIDs: []int{},
			MaxRoomUnlocked: 1,
			TimeRemaining:   e.limit,
			GameStatus:      forge.StatusPlaying,
		}
		e.timer.start(e.tick)

		e.sync("create_session", func(ctx context.Context, r Remote, id string) error {
			return r.CreateSession(ctx, id)
		})
		e.logger.Info("round started", "team", e.state.TeamName, "time_limit", e.limit)
		return true
	})
}

type AnswerInput struct {
	Room            int `json:"room"`
	Door            int `json:"door"`
	DoorGlobalIndex int `json:"doorGlobalIndex"`
	SelectedIndex   int `json:"selectedIndex"`
}

// Answer resolves a door. It reports false, without touching the state,
// when no round is running, the door has no question, the room and door do
// not match the global index, or the door was already answered.
func (e *Engine) Answer(in AnswerInput) (forge.AnswerRecord, bool) {
	var rec forge.AnswerRecord
	ok := e.mutate(func() bool {
		if e.state.GameStatus != forge.StatusPlaying {
			return false
		}
		d := in.DoorGlobalIndex
		if d < 0 || d >= len(e.doors) {
			return false
		}
		if forge.RoomOf(d) != in.Room || forge.DoorInRoom(d) != in.Door {
			return false
		}
		if e.state.IsDoorAnswered(d) {
			return false
		}

		q := e.doors[d]
		correct := in.SelectedIndex == q.CorrectIndex
		kind := forge.DoorNormal
		if q.IsTrap {
			kind = forge.DoorTrap
		}
		rec = forge.AnswerRecord{
			Room:            in.Room,
			Door:            in.Door,
			DoorGlobalIndex: d,
			QuestionID:      q.ID,
			Prompt:          q.Prompt,
			Options:         append([]string(nil), q.Options...),
			CorrectIndex:    q.CorrectIndex,
			SelectedIndex:   in.SelectedIndex,
			Correct:         correct,
			DoorType:        kind,
			DeltaScore:      forge.ScoreDelta(correct, q.IsTrap),
			AnsweredAt:      e.clock.Now(),
		}

		e.state.Answers = append(e.state.Answers, rec)
		e.state.AnsweredDoorIDs = append(e.state.AnsweredDoorIDs, d)
		e.state.MaxRoomUnlocked = forge.NextUnlocked(e.state.MaxRoomUnlocked, e.state.AnsweredDoorIDs, in.Room)
		e.state.Score += rec.DeltaScore

		score := e.state.Score
		e.sync("update_score", func(ctx context.Context, r Remote, id string) error {
			return r.UpdateScore(ctx, id, score)
		})

		if len(e.state.AnsweredDoorIDs) == forge.TotalDoors {
			e.finishLocked(forge.StatusCompleted)
		}
		return true
	})
	return rec, ok
}

// Finish ends a running round with reason, completed when empty. Calls on a
// round that is not running are ignored.
func (e *Engine) Finish(reason forge.Status) bool {
	if reason == "" {
		reason = forge.StatusCompleted
	}
	if !reason.Terminal() {
		return false
	}
	return e.mutate(func() bool {
		if e.state.GameStatus != forge.StatusPlaying {
			return false
		}
		e.finishLocked(reason)
		return true
	})
}

func (e *Engine) finishLocked(reason forge.Status) {
	e.timer.cancel()

	now := e.clock.Now()
	start := now
	if e.state.StartTime != nil {
		start = *e.state.StartTime
	}
	correct := e.state.CorrectCount()

	e.state.EndTime = &now
	e.state.HasFragment = reason == forge.StatusCompleted
	e.state.FragmentEarned = forge.FragmentEarned(reason, now.Sub(start), correct)
	e.state.GameStatus = reason

	score := e.state.Score
	e.sync("finalize_session", func(ctx context.Context, r Remote, id string) error {
		return r.FinalizeSession(ctx, id, score)
	})
	e.logger.Info("round finished",
		"reason", reason,
		"score", score,
		"correct", correct,
		"elapsed", now.Sub(start).Round(time.Second).String(),
		"fragment_earned", e.state.FragmentEarned,
	)
}

// tick runs once per second on the countdown goroutine. It reports whether
// the countdown should keep going.
func (e *Engine) tick(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.timer.current(gen) || e.state.GameStatus != forge.StatusPlaying {
		return false
	}

	if e.state.TimeRemaining-1 <= 0 {
		e.state.TimeRemaining = 0
		e.finishLocked(forge.StatusTimeout)
		e.commitLocked()
		return false
	}
	e.state.TimeRemaining--
	e.commitLocked()
	return true
}

// Reset stops the countdown and restores defaults, whatever the status.
func (e *Engine) Reset() {
	e.mutate(func() bool {
		e.timer.cancel()
		e.state = forge.DefaultState(e.limit)
		e.logger.Info("session reset")
		return true
	})
}

// IsDoorAnswered reports whether the door at the global index is resolved.
func (e *Engine) IsDoorAnswered(door int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsDoorAnswered(door)
}

// State returns a copy of the current state.
func (e *Engine) State() forge.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Export returns the report view of the current state.
func (e *Engine) Export() forge.SessionExport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Export()
}

// Summary returns the game-over overview of the current state.
func (e *Engine) Summary() forge.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Summarize(e.limit)
}

// Question returns the question behind a global door index.
func (e *Engine) Question(door int) (forge.Question, bool) {
	if door < 0 || door >= len(e.doors) {
		return forge.Question{}, false
	}
	return e.doors[door], true
}

// TimeLimit is the round length in seconds.
func (e *Engine) TimeLimit() int {
	return e.limit
}

func (e *Engine) SessionID() string {
	return e.sessionID
}

// Close stops the countdown. The state is left as it is.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timer.cancel()
}
