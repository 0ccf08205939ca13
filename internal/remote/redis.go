// Package remote synchronizes round progress to the shared team store and
// reads team profiles from it. Gameplay never waits on this package: the
// engine hands calls to a Queue and moves on.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("not found")

// TimestampLayout is local time with an explicit UTC offset, second precision.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

const (
	fieldStartedAt  = "started_at"
	fieldScore      = "score"
	fieldFinishedAt = "finished_at"
	fieldTeamName   = "teamName"
	fieldEmail      = "email"
	fieldPassword   = "passwordHash"
)

// Profile is the team info consulted at login. PasswordHash is a bcrypt
// hash; an empty hash means the team cannot log in.
type Profile struct {
	TeamName     string `json:"teamName"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`
}

// Round1 mirrors the round record kept for a team.
type Round1 struct {
	StartedAt  string `json:"started_at,omitempty"`
	Score      int    `json:"score"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// RedisStore keeps team records as Redis hashes under teams/{id}/....
type RedisStore struct {
	rdb   *redis.Client
	zone  *time.Location
	clock clockwork.Clock
}

// NewRedisStore stamps times in a fixed zone offsetMinutes east of UTC.
func NewRedisStore(rdb *redis.Client, offsetMinutes int, clock clockwork.Clock) *RedisStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisStore{
		rdb:   rdb,
		zone:  time.FixedZone("", offsetMinutes*60),
		clock: clock,
	}
}

func roundKey(id string) string { return "teams/" + id + "/round1" }
func infoKey(id string) string  { return "teams/" + id + "/info" }

func (s *RedisStore) now() string {
	return s.clock.Now().In(s.zone).Format(TimestampLayout)
}

// CreateSession overwrites the round record with a fresh start time and a zero score.
func (s *RedisStore) CreateSession(ctx context.Context, id string) error {
	key := roundKey(id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldStartedAt, s.now(), fieldScore, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating round for %s: %w", id, err)
	}
	return nil
}

// UpdateScore sets the running score.
func (s *RedisStore) UpdateScore(ctx context.Context, id string, score int) error {
	if err := s.rdb.HSet(ctx, roundKey(id), fieldScore, score).Err(); err != nil {
		return fmt.Errorf("updating score for %s: %w", id, err)
	}
	return nil
}

// FinalizeSession overwrites the round record with the final score and a
// finish time. started_at is read first so the overwrite keeps it.
func (s *RedisStore) FinalizeSession(ctx context.Context, id string, score int) error {
	key := roundKey(id)
	startedAt, err := s.rdb.HGet(ctx, key, fieldStartedAt).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reading round for %s: %w", id, err)
	}

	values := []any{fieldScore, score, fieldFinishedAt, s.now()}
	if startedAt != "" {
		values = append(values, fieldStartedAt, startedAt)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("finishing round for %s: %w", id, err)
	}
	return nil
}

// ReadProfile returns the team info for id, or ErrNotFound.
func (s *RedisStore) ReadProfile(ctx context.Context, id string) (Profile, error) {
	m, err := s.rdb.HGetAll(ctx, infoKey(id)).Result()
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile for %s: %w", id, err)
	}
	if len(m) == 0 {
		return Profile{}, ErrNotFound
	}
	return Profile{
		TeamName:     m[fieldTeamName],
		Email:        m[fieldEmail],
		PasswordHash: m[fieldPassword],
	}, nil
}

// WriteProfile replaces the team info for id. The game never calls it; the
// operator endpoints and the demo seeder do.
func (s *RedisStore) WriteProfile(ctx context.Context, id string, p Profile) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, infoKey(id))
		pipe.HSet(ctx, infoKey(id),
			fieldTeamName, p.TeamName,
			fieldEmail, p.Email,
			fieldPassword, p.PasswordHash,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing profile for %s: %w", id, err)
	}
	return nil
}

// ReadRound returns the round record for id, or ErrNotFound.
func (s *RedisStore) ReadRound(ctx context.Context, id string) (Round1, error) {
	m, err := s.rdb.HGetAll(ctx, roundKey(id)).Result()
	if err != nil {
		return Round1{}, fmt.Errorf("reading round for %s: %w", id, err)
	}
	if len(m) == 0 {
		return Round1{}, ErrNotFound
	}
	score, _ := strconv.Atoi(m[fieldScore])
	return Round1{
		StartedAt:  m[fieldStartedAt],
		Score:      score,
		FinishedAt: m[fieldFinishedAt],
	}, nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
