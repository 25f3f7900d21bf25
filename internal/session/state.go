package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/PoluyanbIch/quizclock/internal/quiz"
)

type Status int

const (
	StatusRunning Status = iota
	StatusTimedOutPending
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusTimedOutPending:
		return "timed-out-pending"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// State is the progress of one attempt. Both the timer and the controller
// write to it; every read-modify-write goes through mu.
type State struct {
	mu sync.Mutex

	quiz          *quiz.Definition
	currentIndex  int
	scoreTotal    int
	categories    []CategoryScore
	categoryIndex map[string]int
	remaining     int
	answered      int
	correct       int
	status        Status

	// Set exactly once, by the winner of finish.
	result *Result
}

func newState(def *quiz.Definition) *State {
	return &State{
		quiz:          def,
		categoryIndex: make(map[string]int),
		remaining:     def.TimeLimit,
		status:        StatusRunning,
	}
}

// tick takes one second off the clock. expired is true only for the tick
// that moved the session to StatusTimedOutPending; stop tells the timer there
// is nothing left to count down.
func (s *State) tick() (expired, stop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return false, true
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.status = StatusTimedOutPending
		return true, true
	}
	return false, false
}

// answer scores selected against the current question and advances. It
// returns the next question, or terminal when the session should finish.
func (s *State) answer(selected int) (correct bool, next *quiz.Question, terminal bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusFinished:
		return false, nil, false, errors.Wrap(ErrInvalidState, "session already finished")
	case StatusTimedOutPending:
		return false, nil, true, errTimedOut
	}

	q := &s.quiz.Questions[s.currentIndex]
	if selected < 0 || selected >= len(q.Options) {
		return false, nil, false, errors.Wrapf(ErrInvalidInput, "answer index %d out of range [0, %d)", selected, len(q.Options))
	}

	s.answered++
	if q.Check(selected) {
		correct = true
		s.correct++
		s.scoreTotal += q.Points
		i, ok := s.categoryIndex[q.Category]
		if !ok {
			i = len(s.categories)
			s.categoryIndex[q.Category] = i
			s.categories = append(s.categories, CategoryScore{Category: q.Category})
		}
		s.categories[i].Points += q.Points
	}
	s.currentIndex++

	if s.currentIndex == len(s.quiz.Questions) || s.remaining <= 0 {
		return correct, nil, true, nil
	}
	return correct, &s.quiz.Questions[s.currentIndex], false, nil
}

// finish moves the session to StatusFinished from either live status.
// Only the first caller computes the Result and gets won == true; everyone
// else gets the cached one.
func (s *State) finish(reason Reason) (res Result, won bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusFinished {
		return s.result.clone(), false
	}
	s.status = StatusFinished
	s.result = &Result{
		TotalScore: s.scoreTotal,
		Breakdown:  append([]CategoryScore{}, s.categories...),
		MaxScore:   s.quiz.MaxScore(),
		Answered:   s.answered,
		Correct:    s.correct,
		Reason:     reason,
		FinishedAt: time.Now(),
	}
	return s.result.clone(), true
}

func (s *State) current() (*quiz.Question, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return nil, s.status
	}
	return &s.quiz.Questions[s.currentIndex], s.status
}

func (s *State) cachedResult() (Result, Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return Result{}, s.status, false
	}
	return s.result.clone(), s.status, true
}

// Snapshot is a consistent copy of a session's progress.
type Snapshot struct {
	CurrentIndex     int
	TotalQuestions   int
	ScoreTotal       int
	CategoryScores   []CategoryScore
	RemainingSeconds int
	Status           Status
}

func (s *State) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		CurrentIndex:     s.currentIndex,
		TotalQuestions:   len(s.quiz.Questions),
		ScoreTotal:       s.scoreTotal,
		CategoryScores:   append([]CategoryScore{}, s.categories...),
		RemainingSeconds: s.remaining,
		Status:           s.status,
	}
}
