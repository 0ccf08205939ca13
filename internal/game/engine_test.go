package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/playperu/fragmentforge/internal/forge"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type memSnapshots struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
	err   error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{data: map[string][]byte{}}
}

func (m *memSnapshots) Load(_ context.Context, slot string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[slot]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (m *memSnapshots) Save(_ context.Context, slot string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[slot] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memSnapshots) state(t *testing.T, slot string) forge.GameState {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var s forge.GameState
	if err := json.Unmarshal(m.data[slot], &s); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	return s
}

type call struct {
	op    string
	id    string
	score int
}

type fakeRemote struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeRemote) CreateSession(_ context.Context, id string) error {
	f.record(call{"create", id, 0})
	return nil
}

func (f *fakeRemote) UpdateScore(_ context.Context, id string, score int) error {
	f.record(call{"update", id, score})
	return nil
}

func (f *fakeRemote) FinalizeSession(_ context.Context, id string, score int) error {
	f.record(call{"finalize", id, score})
	return nil
}

func (f *fakeRemote) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeRemote) ops() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeRemote) count(op string) int {
	n := 0
	for _, c := range f.ops() {
		if c.op == op {
			n++
		}
	}
	return n
}

// inline runs remote calls on the caller's goroutine.
type inline struct{}

func (inline) Dispatch(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

type fixture struct {
	engine *Engine
	clock  *clockwork.FakeClock
	snaps  *memSnapshots
	remote *fakeRemote
}

// testDoors builds a bank where door d has correct index d%4 and every
// fifth door is a trap.
func testDoors() []forge.Question {
	doors := make([]forge.Question, forge.TotalDoors)
	for d := range doors {
		doors[d] = forge.Question{
			ID:           d + 1,
			Prompt:       "prompt",
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: d % 4,
			IsTrap:       d%5 == 4,
		}
	}
	return doors
}

func right(d int) int { return d % 4 }
func wrong(d int) int { return (d + 1) % 4 }

func newFixture(t *testing.T, limit time.Duration, snaps *memSnapshots) *fixture {
	t.Helper()
	if snaps == nil {
		snaps = newMemSnapshots()
	}
	f := &fixture{
		clock:  clockwork.NewFakeClockAt(t0),
		snaps:  snaps,
		remote: &fakeRemote{},
	}
	f.engine = New(context.Background(), Options{
		SessionID:  "s1",
		Slot:       "slot",
		TimeLimit:  limit,
		Doors:      testDoors(),
		Snapshots:  snaps,
		Remote:     f.remote,
		Dispatcher: inline{},
		Clock:      f.clock,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) answer(d, selected int) (forge.AnswerRecord, bool) {
	return f.engine.Answer(AnswerInput{
		Room:            forge.RoomOf(d),
		Door:            forge.DoorInRoom(d),
		DoorGlobalIndex: d,
		SelectedIndex:   selected,
	})
}

func (f *fixture) started(t *testing.T) {
	t.Helper()
	f.engine.SetTeamName("Cipher")
	if !f.engine.Start() {
		t.Fatal("Start returned false")
	}
}

func TestNewEngineDefaults(t *testing.T) {
	f := newFixture(t, 0, nil)
	s := f.engine.State()

	if s.GameStatus != forge.StatusNotStarted || s.TimeRemaining != 1800 {
		t.Errorf("unexpected defaults %+v", s)
	}
	if s.Answers == nil || s.AnsweredDoorIDs == nil {
		t.Error("defaults should use empty slices")
	}
	if f.engine.TimeLimit() != 1800 {
		t.Errorf("TimeLimit = %d, want 1800", f.engine.TimeLimit())
	}
}

func TestStartRequiresTeamName(t *testing.T) {
	f := newFixture(t, 0, nil)
	if f.engine.Start() {
		t.Fatal("Start without a team name should be a no-op")
	}
	if got := f.engine.State().GameStatus; got != forge.StatusNotStarted {
		t.Errorf("status = %s, want not_started", got)
	}
	if n := len(f.remote.ops()); n != 0 {
		t.Errorf("remote calls = %d, want 0", n)
	}
}

func TestStart(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)

	s := f.engine.State()
	if s.GameStatus != forge.StatusPlaying || s.TeamName != "Cipher" {
		t.Fatalf("unexpected state %+v", s)
	}
	if s.StartTime == nil || !s.StartTime.Equal(t0) {
		t.Errorf("startTime = %v, want %v", s.StartTime, t0)
	}
	if s.MaxRoomUnlocked != 1 || s.TimeRemaining != 1800 || s.Score != 0 {
		t.Errorf("unexpected fresh round %+v", s)
	}
	if got := f.remote.ops(); len(got) != 1 || got[0] != (call{"create", "s1", 0}) {
		t.Errorf("remote calls = %+v, want one create", got)
	}
	if saved := f.snaps.state(t, "slot"); saved.GameStatus != forge.StatusPlaying {
		t.Errorf("snapshot status = %s, want playing", saved.GameStatus)
	}
}

func TestSetTeamName(t *testing.T) {
	f := newFixture(t, 0, nil)

	if f.engine.SetTeamName("   ") {
		t.Error("blank name should be ignored")
	}
	if !f.engine.SetTeamName(" Cipher ") {
		t.Fatal("SetTeamName returned false")
	}
	if got := f.engine.State().TeamName; got != "Cipher" {
		t.Errorf("team = %q, want Cipher", got)
	}

	f.engine.Start()
	if f.engine.SetTeamName("Other") {
		t.Error("renaming during play should be ignored")
	}
}

func TestAnswerBeforeStartIsNoop(t *testing.T) {
	f := newFixture(t, 0, nil)
	if _, ok := f.answer(0, right(0)); ok {
		t.Fatal("answer before start should be a no-op")
	}
	if s := f.engine.State(); len(s.Answers) != 0 || s.Score != 0 {
		t.Errorf("state changed: %+v", s)
	}
}

func TestAnswerScoring(t *testing.T) {
	tests := []struct {
		name      string
		door      int
		selected  int
		wantDelta int
		wantKind  forge.DoorKind
	}{
		{"correct normal", 0, right(0), 5, forge.DoorNormal},
		{"wrong normal", 1, wrong(1), 0, forge.DoorNormal},
		{"correct trap", 4, right(4), 5, forge.DoorTrap},
		{"wrong trap", 4, wrong(4), -5, forge.DoorTrap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0, nil)
			f.started(t)

			rec, ok := f.answer(tt.door, tt.selected)
			if !ok {
				t.Fatal("Answer returned false")
			}
			if rec.DeltaScore != tt.wantDelta || rec.DoorType != tt.wantKind {
				t.Errorf("record = %+v", rec)
			}
			if rec.Correct != (tt.wantDelta > 0) {
				t.Errorf("correct = %v", rec.Correct)
			}
			if rec.QuestionID != tt.door+1 || rec.Room != 1 || rec.Door != tt.door+1 {
				t.Errorf("record addresses wrong door: %+v", rec)
			}

			s := f.engine.State()
			if s.Score != tt.wantDelta {
				t.Errorf("score = %d, want %d", s.Score, tt.wantDelta)
			}
			if !f.engine.IsDoorAnswered(tt.door) {
				t.Error("door not marked answered")
			}
			calls := f.remote.ops()
			if last := calls[len(calls)-1]; last != (call{"update", "s1", tt.wantDelta}) {
				t.Errorf("last remote call = %+v", last)
			}
		})
	}
}

func TestAnswerTwiceIsIgnored(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)

	f.answer(0, right(0))
	if _, ok := f.answer(0, wrong(0)); ok {
		t.Fatal("second answer to the same door should be ignored")
	}

	s := f.engine.State()
	if len(s.Answers) != 1 || s.Score != 5 {
		t.Errorf("answers = %d, score = %d; want 1, 5", len(s.Answers), s.Score)
	}
	if n := f.remote.count("update"); n != 1 {
		t.Errorf("update calls = %d, want 1", n)
	}
}

func TestAnswerRejectsMismatchedDoor(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)

	tests := []AnswerInput{
		{Room: 2, Door: 1, DoorGlobalIndex: 0},
		{Room: 1, Door: 3, DoorGlobalIndex: 0},
		{Room: 11, Door: 1, DoorGlobalIndex: 50},
		{Room: 0, Door: 0, DoorGlobalIndex: -1},
	}
	for _, in := range tests {
		if _, ok := f.engine.Answer(in); ok {
			t.Errorf("Answer(%+v) should be rejected", in)
		}
	}
}

func TestRoomUnlock(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)

	for d := 0; d < 4; d++ {
		f.answer(d, wrong(d))
	}
	if got := f.engine.State().MaxRoomUnlocked; got != 1 {
		t.Fatalf("maxRoomUnlocked = %d before room complete, want 1", got)
	}

	f.answer(4, wrong(4))
	if got := f.engine.State().MaxRoomUnlocked; got != 2 {
		t.Errorf("maxRoomUnlocked = %d, want 2", got)
	}
}

func TestScoreIsSumOfDeltas(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)

	for d := 0; d < 20; d++ {
		sel := right(d)
		if d%3 == 0 {
			sel = wrong(d)
		}
		f.answer(d, sel)
	}

	s := f.engine.State()
	sum := 0
	for _, a := range s.Answers {
		sum += a.DeltaScore
	}
	if s.Score != sum {
		t.Errorf("score = %d, sum of deltas = %d", s.Score, sum)
	}
	if len(s.Answers) != len(s.AnsweredDoorIDs) {
		t.Errorf("answers = %d, ids = %d", len(s.Answers), len(s.AnsweredDoorIDs))
	}
}

func TestFinish(t *testing.T) {
	tests := []struct {
		name         string
		elapsed      time.Duration
		correct      int
		reason       forge.Status
		wantEarned   bool
		wantFragment bool
	}{
		{"fast and accurate", 12 * time.Minute, 45, forge.StatusCompleted, true, true},
		{"fast but inaccurate", 12 * time.Minute, 5, forge.StatusCompleted, false, true},
		{"middle band", 17 * time.Minute, 48, forge.StatusCompleted, false, true},
		{"late band", 22 * time.Minute, 42, forge.StatusCompleted, true, true},
		{"timeout", 22 * time.Minute, 45, forge.StatusTimeout, false, false},
		{"empty reason completes", 12 * time.Minute, 45, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Hour, nil)
			f.started(t)
			for d := 0; d < tt.correct; d++ {
				f.answer(d, right(d))
			}
			f.clock.Advance(tt.elapsed)

			if !f.engine.Finish(tt.reason) {
				t.Fatal("Finish returned false")
			}

			s := f.engine.State()
			want := tt.reason
			if want == "" {
				want = forge.StatusCompleted
			}
			if s.GameStatus != want {
				t.Errorf("status = %s, want %s", s.GameStatus, want)
			}
			if s.FragmentEarned != tt.wantEarned || s.HasFragment != tt.wantFragment {
				t.Errorf("earned/hasFragment = %v/%v, want %v/%v",
					s.FragmentEarned, s.HasFragment, tt.wantEarned, tt.wantFragment)
			}
			if s.EndTime == nil || !s.EndTime.Equal(t0.Add(tt.elapsed)) {
				t.Errorf("endTime = %v", s.EndTime)
			}
			if n := f.remote.count("finalize"); n != 1 {
				t.Errorf("finalize calls = %d, want 1", n)
			}
		})
	}
}

func TestFinishOnlyWhilePlaying(t *testing.T) {
	f := newFixture(t, 0, nil)
	if f.engine.Finish(forge.StatusCompleted) {
		t.Error("Finish before start should be ignored")
	}

	f.started(t)
	if f.engine.Finish(forge.StatusPlaying) {
		t.Error("Finish with a non-terminal reason should be ignored")
	}
	f.engine.Finish(forge.StatusCompleted)
	if f.engine.Finish(forge.StatusTimeout) {
		t.Error("second Finish should be ignored")
	}

	if got := f.engine.State().GameStatus; got != forge.StatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
	if n := f.remote.count("finalize"); n != 1 {
		t.Errorf("finalize calls = %d, want 1", n)
	}
}

func TestLastDoorCompletesRound(t *testing.T) {
	f := newFixture(t, time.Hour, nil)
	f.started(t)
	f.clock.Advance(12 * time.Minute)

	for d := 0; d < forge.TotalDoors; d++ {
		if _, ok := f.answer(d, right(d)); !ok {
			t.Fatalf("answer %d rejected", d)
		}
	}

	s := f.engine.State()
	if s.GameStatus != forge.StatusCompleted || !s.HasFragment || !s.FragmentEarned {
		t.Errorf("unexpected end state %+v", s.Summarize(3600))
	}
	if s.Score != forge.TotalDoors*forge.PointsCorrect || s.MaxRoomUnlocked != forge.Rooms {
		t.Errorf("score = %d, maxRoom = %d", s.Score, s.MaxRoomUnlocked)
	}
	calls := f.remote.ops()
	if last := calls[len(calls)-1]; last.op != "finalize" || last.score != 250 {
		t.Errorf("last remote call = %+v, want finalize with 250", last)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)
	f.answer(0, right(0))

	f.engine.Reset()

	s := f.engine.State()
	want := forge.DefaultState(1800)
	if s.GameStatus != want.GameStatus || s.TeamName != "" || s.Score != 0 ||
		len(s.Answers) != 0 || s.StartTime != nil || s.TimeRemaining != 1800 {
		t.Errorf("state after reset = %+v", s)
	}
	if saved := f.snaps.state(t, "slot"); saved.GameStatus != forge.StatusNotStarted {
		t.Errorf("snapshot not reset: %+v", saved)
	}
}

func TestStateIsACopy(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)
	f.answer(0, right(0))

	s := f.engine.State()
	s.AnsweredDoorIDs[0] = 42
	s.Answers[0].Options[0] = "mutated"

	again := f.engine.State()
	if again.AnsweredDoorIDs[0] != 0 || again.Answers[0].Options[0] != "a" {
		t.Error("engine state leaked through State()")
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	snaps := newMemSnapshots()
	first := newFixture(t, 0, snaps)
	first.started(t)
	first.answer(0, right(0))
	first.engine.Finish(forge.StatusCompleted)
	first.engine.Close()

	second := newFixture(t, 0, snaps)
	s := second.engine.State()
	if s.TeamName != "Cipher" || s.Score != 5 || s.GameStatus != forge.StatusCompleted {
		t.Errorf("restored state = %+v", s)
	}
	if !second.engine.IsDoorAnswered(0) {
		t.Error("restored state lost answered door")
	}
}

func TestRestoreFallsBackToDefaults(t *testing.T) {
	tests := map[string]string{
		"malformed":      "{not json",
		"unknown status": `{"gameStatus":"paused","answers":[],"answeredDoorIds":[]}`,
		"inconsistent":   `{"gameStatus":"completed","answers":[],"answeredDoorIds":[3]}`,
		"duplicate door": `{"gameStatus":"completed","answers":[{},{}],"answeredDoorIds":[3,3]}`,
		"door too high":  `{"gameStatus":"completed","answers":[{}],"answeredDoorIds":[50]}`,
		"negative door":  `{"gameStatus":"completed","answers":[{}],"answeredDoorIds":[-1]}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			snaps := newMemSnapshots()
			snaps.data["slot"] = []byte(raw)

			f := newFixture(t, 0, snaps)
			if s := f.engine.State(); s.GameStatus != forge.StatusNotStarted || s.TimeRemaining != 1800 {
				t.Errorf("state = %+v, want defaults", s)
			}
		})
	}
}

func TestRestoreClampsTimeRemaining(t *testing.T) {
	tests := []struct {
		name string
		raw  int
		want int
	}{
		{"above a shrunk limit", 5400, 1800},
		{"negative", -4, 0},
		{"in range", 600, 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps := newMemSnapshots()
			snaps.data["slot"] = []byte(fmt.Sprintf(
				`{"teamName":"Cipher","gameStatus":"completed","answers":[],"answeredDoorIds":[],"timeRemaining":%d}`, tt.raw))

			f := newFixture(t, 0, snaps)
			s := f.engine.State()
			if s.TeamName != "Cipher" {
				t.Fatalf("snapshot was discarded: %+v", s)
			}
			if s.TimeRemaining != tt.want {
				t.Errorf("timeRemaining = %d, want %d", s.TimeRemaining, tt.want)
			}
		})
	}
}

func TestSnapshotWriteFailureKeepsState(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.err = errors.New("disk full")

	f := newFixture(t, 0, snaps)
	f.started(t)
	f.answer(0, right(0))

	if s := f.engine.State(); s.Score != 5 {
		t.Errorf("score = %d, want 5", s.Score)
	}
}

func TestNoRemoteWithoutSessionID(t *testing.T) {
	r := &fakeRemote{}
	e := New(context.Background(), Options{
		Doors:      testDoors(),
		Remote:     r,
		Dispatcher: inline{},
		Clock:      clockwork.NewFakeClockAt(t0),
	})
	defer e.Close()

	e.SetTeamName("Cipher")
	e.Start()
	e.Finish(forge.StatusCompleted)

	if n := len(r.ops()); n != 0 {
		t.Errorf("remote calls = %d, want 0", n)
	}
}

func TestOnChange(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []forge.Status
	)
	e := New(context.Background(), Options{
		Doors: testDoors(),
		Clock: clockwork.NewFakeClockAt(t0),
		OnChange: func(s forge.GameState) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, s.GameStatus)
		},
	})
	defer e.Close()

	e.Start() // no team: no change
	e.SetTeamName("Cipher")
	e.Start()
	e.Finish(forge.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	want := []forge.Status{forge.StatusNotStarted, forge.StatusPlaying, forge.StatusCompleted}
	if len(seen) != len(want) {
		t.Fatalf("notifications = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("notification %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestExportAndSummary(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.started(t)
	f.answer(0, right(0))
	f.answer(4, wrong(4))

	exp := f.engine.Export()
	if exp.GameName != forge.GameName || exp.TeamName != "Cipher" || exp.TotalScore != 0 || len(exp.Answers) != 2 {
		t.Errorf("export = %+v", exp)
	}

	sum := f.engine.Summary()
	if sum.Answered != 2 || sum.Correct != 1 || sum.Status != forge.StatusPlaying {
		t.Errorf("summary = %+v", sum)
	}
}

func TestQuestion(t *testing.T) {
	f := newFixture(t, 0, nil)
	if q, ok := f.engine.Question(7); !ok || q.ID != 8 {
		t.Errorf("Question(7) = %+v, %v", q, ok)
	}
	if _, ok := f.engine.Question(forge.TotalDoors); ok {
		t.Error("Question out of range should report false")
	}
}
