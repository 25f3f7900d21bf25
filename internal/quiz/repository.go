package quiz

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("quiz not found")

// MaxIDLength bounds quiz IDs so they fit into Telegram callback data
// (64 bytes) behind a short prefix.
const MaxIDLength = 48

// Repository is where sessions fetch quiz definitions from.
type Repository interface {
	Fetch(id string) (*Definition, error)
	List() []*Definition
	Add(def *Definition) (string, error)
}

// MemoryRepository keeps quizzes for the lifetime of the process.
type MemoryRepository struct {
	mu      sync.RWMutex
	quizzes map[string]*Definition
	order   []string
}

func NewMemoryRepository(defs ...*Definition) (*MemoryRepository, error) {
	r := &MemoryRepository{quizzes: make(map[string]*Definition)}
	for _, d := range defs {
		if _, err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates def and stores a private copy. An empty ID is replaced by a
// generated one; a duplicate or overlong ID is rejected.
func (r *MemoryRepository) Add(def *Definition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}
	c := def.Clone()
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = uuid.NewString()[:8]
	}
	if len(c.ID) > MaxIDLength {
		return "", errors.Wrapf(ErrInvalidQuiz, "id longer than %d bytes", MaxIDLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.quizzes[c.ID]; exists {
		return "", errors.Errorf("quiz %q already exists", c.ID)
	}
	r.quizzes[c.ID] = c
	r.order = append(r.order, c.ID)
	return c.ID, nil
}

// Fetch returns a copy of the quiz so callers cannot alter the stored one.
func (r *MemoryRepository) Fetch(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.quizzes[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %q", id)
	}
	return d.Clone(), nil
}

// List returns the quizzes in the order they were added.
func (r *MemoryRepository) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.quizzes[id].Clone())
	}
	return out
}
