package quiz

import (
	"strings"

	"github.com/pkg/errors"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// ErrInvalidQuiz is returned for definitions that cannot be started.
var ErrInvalidQuiz = errors.New("invalid quiz")

type Question struct {
	Text     string   `yaml:"text" json:"text"`
	Options  []string `yaml:"options" json:"options"`
	Correct  int      `yaml:"correct" json:"correct"`
	Points   int      `yaml:"points" json:"points"`
	Category string   `yaml:"category" json:"category"`
}

// Check reports whether index is the correct option.
func (q *Question) Check(index int) bool {
	return index == q.Correct
}

func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.Wrap(ErrInvalidQuiz, "question text cannot be empty")
	}
	if len(q.Options) != OptionCount {
		return errors.Wrapf(ErrInvalidQuiz, "question %q has %d options, want %d", q.Text, len(q.Options), OptionCount)
	}
	if q.Correct < 0 || q.Correct >= len(q.Options) {
		return errors.Wrapf(ErrInvalidQuiz, "question %q: correct index %d out of range", q.Text, q.Correct)
	}
	if q.Points <= 0 {
		return errors.Wrapf(ErrInvalidQuiz, "question %q: points must be positive, got %d", q.Text, q.Points)
	}
	return nil
}

// Definition describes a quiz. Sessions treat it as read-only.
type Definition struct {
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	TimeLimit   int        `yaml:"time_limit" json:"time_limit"` // seconds
	Questions   []Question `yaml:"questions" json:"questions"`
}

// Validate checks everything a session needs before it can start.
func (d *Definition) Validate() error {
	if d == nil {
		return errors.Wrap(ErrInvalidQuiz, "nil definition")
	}
	if strings.TrimSpace(d.Title) == "" {
		return errors.Wrap(ErrInvalidQuiz, "title cannot be empty")
	}
	if d.TimeLimit <= 0 {
		return errors.Wrapf(ErrInvalidQuiz, "time limit must be positive, got %d", d.TimeLimit)
	}
	if len(d.Questions) == 0 {
		return errors.Wrap(ErrInvalidQuiz, "no questions")
	}
	for i := range d.Questions {
		if err := d.Questions[i].Validate(); err != nil {
			return errors.WithMessagef(err, "question %d", i+1)
		}
	}
	return nil
}

// MaxScore is the sum of points over all questions.
func (d *Definition) MaxScore() int {
	total := 0
	for _, q := range d.Questions {
		total += q.Points
	}
	return total
}

// Clone returns a deep copy, so callers can reorder questions without
// touching a definition a running session may hold.
func (d *Definition) Clone() *Definition {
	c := *d
	c.Questions = make([]Question, len(d.Questions))
	for i, q := range d.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	return &c
}
