package quiz

import (
	"math/rand"
	"time"
)

// Shuffle returns a copy of def with its questions in random order.
func Shuffle(def *Definition) *Definition {
	return ShuffleWithLimit(def, 0)
}

// ShuffleWithLimit shuffles and keeps at most limit questions; limit <= 0
// keeps them all.
func ShuffleWithLimit(def *Definition, limit int) *Definition {
	shuffled := def.Clone()
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Fisher-Yates
	qs := shuffled.Questions
	for i := len(qs) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}

	if limit > 0 && limit < len(qs) {
		shuffled.Questions = qs[:limit]
	}
	return shuffled
}
