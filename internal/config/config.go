package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBDir    string     `env:"DB_DIR" envDefault:"data"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../web/dist"`
	RedisURL string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	QuestionsPath string `env:"QUESTIONS_PATH" envDefault:"data/questions.json"`
	// RoundMinutes is the countdown length of a round.
	RoundMinutes int `env:"ROUND_TIME_LIMIT" envDefault:"30"`

	RemoteUTCOffsetMinutes int `env:"REMOTE_UTC_OFFSET_MINUTES" envDefault:"330"`
	SyncQueueSize          int `env:"SYNC_QUEUE_SIZE" envDefault:"256"`

	AdminUser         string `env:"ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	SeedDemo    bool     `env:"SEED_DEMO" envDefault:"false"`
	// DemoPassword is the login password given to the seeded demo team.
	DemoPassword string `env:"DEMO_PASSWORD"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.RoundMinutes <= 0 {
		return nil, fmt.Errorf("ROUND_TIME_LIMIT must be positive, got %d", cfg.RoundMinutes)
	}
	if cfg.SyncQueueSize <= 0 {
		return nil, fmt.Errorf("SYNC_QUEUE_SIZE must be positive, got %d", cfg.SyncQueueSize)
	}
	if cfg.SeedDemo && cfg.DemoPassword == "" {
		return nil, errors.New("SEED_DEMO requires DEMO_PASSWORD")
	}
	return &cfg, nil
}

// RoundTimeLimit is the round length as a duration.
func (c *Config) RoundTimeLimit() time.Duration {
	return time.Duration(c.RoundMinutes) * time.Minute
}
