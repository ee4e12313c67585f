package poller

import (
	"sync"
	"time"
)

// pollTimer is the session's single repeating timer. Cancel may be called
// any number of times; only the first call stops the ticker.
type pollTimer struct {
	ticker   *time.Ticker
	once     sync.Once
	onCancel func()
}

func newPollTimer(interval time.Duration, onCancel func()) *pollTimer {
	return &pollTimer{
		ticker:   time.NewTicker(interval),
		onCancel: onCancel,
	}
}

// C delivers ticks until the timer is cancelled.
func (t *pollTimer) C() <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.ticker.C
}

// Cancel stops the timer and reports whether this call did the stopping.
func (t *pollTimer) Cancel() bool {
	if t == nil {
		return false
	}
	cancelled := false
	t.once.Do(func() {
		t.ticker.Stop()
		if t.onCancel != nil {
			t.onCancel()
		}
		cancelled = true
	})
	return cancelled
}
