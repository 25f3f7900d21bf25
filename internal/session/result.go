package session

import "time"

// Reason tells which path finalized a session.
type Reason int

const (
	ReasonCompleted Reason = iota + 1
	ReasonExpired
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonCompleted:
		return "completed"
	case ReasonExpired:
		return "expired"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type CategoryScore struct {
	Category string `json:"category"`
	Points   int    `json:"points"`
}

// Result is the outcome of a finished session. Breakdown keeps categories in
// the order they first scored.
type Result struct {
	TotalScore int             `json:"total_score"`
	Breakdown  []CategoryScore `json:"breakdown"`
	MaxScore   int             `json:"max_score"`
	Answered   int             `json:"answered"`
	Correct    int             `json:"correct"`
	Reason     Reason          `json:"reason"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Points returns the points earned in category.
func (r Result) Points(category string) (int, bool) {
	for _, c := range r.Breakdown {
		if c.Category == category {
			return c.Points, true
		}
	}
	return 0, false
}

// Percentage of MaxScore earned, rounded down.
func (r Result) Percentage() int {
	if r.MaxScore <= 0 {
		return 0
	}
	return r.TotalScore * 100 / r.MaxScore
}

func (r Result) clone() Result {
	r.Breakdown = append([]CategoryScore{}, r.Breakdown...)
	return r
}
