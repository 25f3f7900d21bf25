package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	logger "github.com/rs/zerolog/log"
)

// TickFunc is called once per tick. expired is reported for the single tick
// that ran the clock out; stop ends the countdown.
type TickFunc func() (expired, stop bool)

// Timer drives a countdown from a background goroutine.
//
// A tick runs entirely under mu, and Cancel takes mu before marking the timer
// cancelled. Once Cancel returns, no tick is running and none will start.
// Cancel never waits for the goroutine itself, so it is safe to call from
// the expiry callback.
type Timer struct {
	mu        sync.Mutex
	cancelled bool

	stop     chan struct{}
	stopOnce sync.Once
}

// StartTimer begins a countdown of totalSeconds, ticking every interval
// (one second if interval is not positive). onExpire runs on the timer
// goroutine after the expiring tick, outside the timer lock.
func StartTimer(totalSeconds int, interval time.Duration, tick TickFunc, onExpire func()) (*Timer, error) {
	if totalSeconds <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "time limit must be positive, got %d", totalSeconds)
	}
	if interval <= 0 {
		interval = time.Second
	}

	t := &Timer{stop: make(chan struct{})}
	go t.run(interval, tick, onExpire)
	return t, nil
}

func (t *Timer) run(interval time.Duration, tick TickFunc, onExpire func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			expired, stop := t.step(tick)
			if expired && onExpire != nil {
				onExpire()
			}
			if stop {
				return
			}
		}
	}
}

// step runs one tick unless the timer was cancelled. A panicking tick
// disables the timer: the session keeps going without further deductions.
func (t *Timer) step(tick TickFunc) (expired, stop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Countdown tick failed, timer disabled.")
			t.cancelled = true
			expired, stop = false, true
		}
	}()

	if t.cancelled {
		return false, true
	}
	return tick()
}

// Cancel stops the countdown. It is idempotent and may be called after the
// timer expired on its own.
func (t *Timer) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()

	t.stopOnce.Do(func() { close(t.stop) })
}

// Cancelled reports whether the timer was cancelled or disabled itself.
func (t *Timer) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
