// Package questions loads the question bank and lays it out over the
// fifty doors of a round.
package questions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/playperu/fragmentforge/internal/forge"
)

type Level struct {
	Level     int              `json:"level" yaml:"level"`
	Questions []forge.Question `json:"questions" yaml:"questions"`
}

type Bank struct {
	Levels []Level `json:"levels" yaml:"levels"`
}

// Load reads a bank from path. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func Load(path string) (Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bank{}, fmt.Errorf("reading question bank: %w", err)
	}

	var bank Bank
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &bank)
	default:
		err = json.Unmarshal(data, &bank)
	}
	if err != nil {
		return Bank{}, fmt.Errorf("parsing question bank %s: %w", path, err)
	}
	return bank, nil
}

// Doors returns one question per global door index. Room r reads from level
// r-1, rooms past the last level reuse it, and each door takes the question
// at its own global index within that level. Gaps become placeholders.
func Doors(bank Bank) []forge.Question {
	out := make([]forge.Question, forge.TotalDoors)
	for d := range out {
		out[d] = pick(bank, d)
	}
	return out
}

func pick(bank Bank, door int) forge.Question {
	if len(bank.Levels) == 0 {
		return Placeholder(door)
	}
	levelIx := min(forge.RoomOf(door)-1, len(bank.Levels)-1)
	qs := bank.Levels[levelIx].Questions
	if door >= len(qs) || len(qs[door].Options) == 0 {
		return Placeholder(door)
	}
	return qs[door]
}

// Placeholder stands in for a missing question so that a door can always be opened.
func Placeholder(door int) forge.Question {
	return forge.Question{
		ID:           door + 1,
		Prompt:       "Question not available",
		Options:      []string{"Option 1", "Option 2", "Option 3", "Option 4"},
		CorrectIndex: 0,
		IsTrap:       false,
	}
}
