package quiz

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	logger "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// document is the on-disk YAML layout of a quiz. Answers are numbered from 1,
// the same way authors pick them.
type document struct {
	ID               string `yaml:"id"`
	Title            string `yaml:"title"`
	Description      string `yaml:"description"`
	TimeLimit        int    `yaml:"time_limit"`
	TimeLimitMinutes int    `yaml:"time_limit_minutes"`
	Questions        []struct {
		Text     string   `yaml:"text"`
		Options  []string `yaml:"options"`
		Answer   int      `yaml:"answer"`
		Points   int      `yaml:"points"`
		Category string   `yaml:"category"`
	} `yaml:"questions"`
}

// Parse decodes and validates a single YAML quiz document.
func Parse(data []byte) (*Definition, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalidQuiz, err.Error())
	}

	b := NewBuilder(doc.Title, doc.Description).ID(doc.ID)
	switch {
	case doc.TimeLimit > 0:
		b.TimeLimitSeconds(doc.TimeLimit)
	default:
		b.TimeLimitMinutes(doc.TimeLimitMinutes)
	}
	for _, q := range doc.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		b.AddQuestion(strings.TrimSpace(q.Text), q.Options, q.Answer-1, points, strings.TrimSpace(q.Category))
	}
	return b.Build()
}

// LoadFile reads one quiz file.
func LoadFile(filename string) (*Definition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	def, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "error parsing %s", filename)
	}
	return def, nil
}

// LoadDir reads every .yaml/.yml file in dir, in name order.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read quiz directory")
	}

	var defs []*Definition
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		def, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	if len(defs) == 0 {
		return nil, errors.Errorf("no valid quizzes found in %s", dir)
	}
	return defs, nil
}

// LoadQuizzes loads quizzes from dir, falling back to DefaultQuizzes.
func LoadQuizzes(dir string) []*Definition {
	defs, err := LoadDir(dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to load quizzes, using defaults.")
		return DefaultQuizzes()
	}

	logger.Info().Int("count", len(defs)).Str("dir", dir).Msg("Loaded quizzes.")
	return defs
}

func DefaultQuizzes() []*Definition {
	def, err := NewBuilder("Go basics", "A warm-up on the Go language and its toolchain.").
		ID("go-basics").
		TimeLimitMinutes(2).
		AddQuestion("Which keyword starts a goroutine?",
			[]string{"async", "go", "spawn", "thread"}, 1, 10, "concurrency").
		AddQuestion("What does a receive from a closed channel return?",
			[]string{"It panics", "It blocks forever", "The zero value", "An error"}, 2, 10, "concurrency").
		AddQuestion("Which command formats Go source?",
			[]string{"go vet", "go fmt", "go lint", "go tidy"}, 1, 5, "tooling").
		AddQuestion("Which type has a built-in len and cap?",
			[]string{"map", "struct", "slice", "func"}, 2, 5, "language").
		Build()
	if err != nil {
		panic(err)
	}
	return []*Definition{def}
}
