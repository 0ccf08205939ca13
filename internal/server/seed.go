package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/fragmentforge/internal/remote"
)

const (
	DemoSessionID = "demo"
	DemoTeamName  = "Demo Forgers"
	DemoEmail     = "demo@fragmentforge.local"
)

type ProfileStore interface {
	ProfileReader
	WriteProfile(ctx context.Context, id string, p remote.Profile) error
}

// SeedDemo writes the demo team profile, logging in with DemoEmail and
// password, if it does not exist yet. An existing profile is left untouched.
func SeedDemo(ctx context.Context, logger *slog.Logger, profiles ProfileStore, password string) error {
	if password == "" {
		return errors.New("demo password is required")
	}

	_, err := profiles.ReadProfile(ctx, DemoSessionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing demo password: %w", err)
	}
	err = profiles.WriteProfile(ctx, DemoSessionID, remote.Profile{
		TeamName:     DemoTeamName,
		Email:        DemoEmail,
		PasswordHash: string(hash),
	})
	if err != nil {
		return err
	}

	logger.Info("demo team profile seeded", "session_id", DemoSessionID)
	return nil
}
