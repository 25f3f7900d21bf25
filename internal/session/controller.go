package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	logger "github.com/rs/zerolog/log"

	"github.com/PoluyanbIch/quizclock/internal/quiz"
)

type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseAwaitingAnswer
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhaseAwaitingAnswer:
		return "awaiting-answer"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Hooks are notified at most once each. OnTimeExpired runs on the timer
// goroutine before the session is finalized. OnSessionFinished runs on a
// goroutine of its own, so a slow hook never holds up Submit, Cancel or the
// timer. Neither is called with a lock held.
type Hooks struct {
	OnTimeExpired     func()
	OnSessionFinished func(Result)
}

type Options struct {
	// TickInterval is how long one countdown second lasts. Defaults to time.Second.
	TickInterval time.Duration
	Hooks        Hooks
}

// Outcome of a submitted answer: either the next question or the Result.
type Outcome struct {
	Correct bool
	Next    *quiz.Question
	Result  *Result
}

// Controller runs a single quiz attempt against its countdown.
type Controller struct {
	id   string
	opts Options

	// Guards state and timer, which are assigned once by Start, and
	// cancelled, set by a Cancel that came before Start.
	mu        sync.Mutex
	state     *State
	timer     *Timer
	cancelled bool
}

func NewController(opts Options) *Controller {
	return &Controller{
		id:   uuid.NewString(),
		opts: opts,
	}
}

func (c *Controller) ID() string {
	return c.id
}

// Start begins the attempt and returns the first question. A quiz with no
// questions or a non-positive time limit is rejected before any state or
// timer exists.
func (c *Controller) Start(def *quiz.Definition) (*quiz.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil {
		return nil, errors.Wrap(ErrInvalidState, "session already started")
	}
	if c.cancelled {
		return nil, errors.Wrap(ErrInvalidState, "session cancelled")
	}
	if def == nil || len(def.Questions) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "quiz has no questions")
	}
	if err := def.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}

	st := newState(def)
	t, err := StartTimer(def.TimeLimit, c.opts.TickInterval, st.tick, c.expire)
	if err != nil {
		return nil, err
	}
	c.state, c.timer = st, t

	logger.Info().
		Str("session", c.id).
		Str("quiz", def.ID).
		Int("questions", len(def.Questions)).
		Int("timeLimit", def.TimeLimit).
		Msg("Session started.")

	q, _ := st.current()
	return q, nil
}

func (c *Controller) session() (*State, *Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.timer
}

func (c *Controller) CurrentQuestion() (*quiz.Question, error) {
	st, t := c.session()
	if st == nil {
		return nil, errors.Wrap(ErrInvalidState, "session not started")
	}

	q, status := st.current()
	switch status {
	case StatusTimedOutPending:
		c.finalize(st, t, ReasonExpired)
		return nil, errors.Wrap(ErrInvalidState, "time expired")
	case StatusFinished:
		return nil, errors.Wrap(ErrInvalidState, "session finished")
	}
	return q, nil
}

// Submit answers the current question with the option at index. An index
// outside the question's options is rejected without touching the session.
// The answer that ends the quiz, or one that arrives after the clock ran out,
// yields the Result instead of a next question.
func (c *Controller) Submit(index int) (Outcome, error) {
	st, t := c.session()
	if st == nil {
		return Outcome{}, errors.Wrap(ErrInvalidState, "session not started")
	}

	correct, next, terminal, err := st.answer(index)
	switch {
	case errors.Is(err, errTimedOut):
		res := c.finalize(st, t, ReasonExpired)
		return Outcome{Result: &res}, nil
	case err != nil:
		return Outcome{}, err
	}

	if terminal {
		reason := ReasonCompleted
		if st.snapshot().RemainingSeconds <= 0 {
			reason = ReasonExpired
		}
		res := c.finalize(st, t, reason)
		return Outcome{Correct: correct, Result: &res}, nil
	}
	return Outcome{Correct: correct, Next: next}, nil
}

// Cancel ends the session from any phase. Calling it again, or after the
// session finished on its own, changes nothing. A controller cancelled
// before Start is finished without a Result and cannot be started.
func (c *Controller) Cancel() {
	c.mu.Lock()
	st, t := c.state, c.timer
	if st == nil {
		c.cancelled = true
	}
	c.mu.Unlock()

	if st == nil {
		return
	}
	c.finalize(st, t, ReasonCancelled)
}

func (c *Controller) RemainingSeconds() int {
	st, _ := c.session()
	if st == nil {
		return 0
	}
	return st.snapshot().RemainingSeconds
}

// Result is available once the session has finished.
func (c *Controller) Result() (Result, error) {
	st, t := c.session()
	if st == nil {
		return Result{}, errors.Wrap(ErrInvalidState, "session not started")
	}

	res, status, ok := st.cachedResult()
	switch {
	case ok:
		return res, nil
	case status == StatusTimedOutPending:
		return c.finalize(st, t, ReasonExpired), nil
	}
	return Result{}, errors.Wrap(ErrInvalidState, "session still running")
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	st, t, cancelled := c.state, c.timer, c.cancelled
	c.mu.Unlock()

	switch {
	case cancelled:
		return PhaseFinished
	case st == nil:
		return PhaseNotStarted
	}

	switch st.snapshot().Status {
	case StatusRunning:
		return PhaseAwaitingAnswer
	case StatusTimedOutPending:
		c.finalize(st, t, ReasonExpired)
	}
	return PhaseFinished
}

// Snapshot returns the session's progress; the zero Snapshot before Start.
func (c *Controller) Snapshot() Snapshot {
	st, _ := c.session()
	if st == nil {
		return Snapshot{}
	}
	return st.snapshot()
}

// expire runs on the timer goroutine after the clock ran out.
func (c *Controller) expire() {
	st, t := c.session()

	logger.Info().Str("session", c.id).Msg("Session time expired.")
	if h := c.opts.Hooks.OnTimeExpired; h != nil {
		h()
	}
	c.finalize(st, t, ReasonExpired)
}

// finalize moves the session to StatusFinished and stops its timer. Only the
// caller that wins the transition notifies OnSessionFinished, in the
// background.
func (c *Controller) finalize(st *State, t *Timer, reason Reason) Result {
	res, won := st.finish(reason)
	if t != nil {
		t.Cancel()
	}
	if !won {
		return res
	}

	logger.Info().
		Str("session", c.id).
		Stringer("reason", res.Reason).
		Int("score", res.TotalScore).
		Int("maxScore", res.MaxScore).
		Int("answered", res.Answered).
		Msg("Session finished.")

	if h := c.opts.Hooks.OnSessionFinished; h != nil {
		go h(res.clone())
	}
	return res
}
