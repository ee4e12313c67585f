// Package eta extrapolates a job's remaining time from elapsed time and progress.
package eta

import (
	"math"
	"time"

	"spotdiff-monitor/internal/domain"
)

// DefaultFloor is the percentage at or below which extrapolation is not trusted.
const DefaultFloor = 5.0

// Kind says what the display should do with an estimate.
type Kind int

const (
	// KindNone leaves whatever is displayed untouched.
	KindNone Kind = iota
	// KindPlaceholder shows the fixed placeholder duration.
	KindPlaceholder
	// KindRemaining shows an extrapolated remaining duration.
	KindRemaining
	// KindCleared removes the estimate.
	KindCleared
)

func (k Kind) String() string {
	switch k {
	case KindPlaceholder:
		return "placeholder"
	case KindRemaining:
		return "remaining"
	case KindCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Estimate is one estimator output.
type Estimate struct {
	Kind     Kind
	Duration time.Duration
}

// Seconds rounds the duration up to whole seconds.
func (e Estimate) Seconds() int {
	return int(math.Ceil(e.Duration.Seconds()))
}

// Estimator captures the start time once and extrapolates linearly.
type Estimator struct {
	start       time.Time
	now         func() time.Time
	placeholder time.Duration
	floor       float64
}

// New starts an estimator using the wall clock.
func New(placeholder time.Duration) *Estimator {
	return NewWithClock(placeholder, time.Now)
}

// NewWithClock starts an estimator against an injected clock.
func NewWithClock(placeholder time.Duration, now func() time.Time) *Estimator {
	return &Estimator{
		start:       now(),
		now:         now,
		placeholder: placeholder,
		floor:       DefaultFloor,
	}
}

// Start returns the captured start time.
func (e *Estimator) Start() time.Time {
	return e.start
}

// Estimate computes the display instruction for one poll.
func (e *Estimator) Estimate(percent float64, status domain.JobStatus) Estimate {
	if status.IsTerminal() {
		return Estimate{Kind: KindCleared}
	}
	if percent <= e.floor {
		return Estimate{Kind: KindPlaceholder, Duration: e.placeholder}
	}
	if percent >= 100 {
		return Estimate{Kind: KindNone}
	}

	elapsed := e.now().Sub(e.start)
	total := time.Duration(float64(elapsed) / (percent / 100))
	remaining := total - elapsed
	if remaining <= 0 {
		return Estimate{Kind: KindNone}
	}
	return Estimate{Kind: KindRemaining, Duration: remaining}
}
