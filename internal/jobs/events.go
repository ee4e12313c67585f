package jobs

import (
	"sync"
	"time"

	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/progress"
)

// EventType classifies UI side effects emitted by a monitor session.
type EventType string

const (
	EventTypeState    EventType = "state"
	EventTypeProgress EventType = "progress"
	EventTypeStep     EventType = "step"
	EventTypeETA      EventType = "eta"
	EventTypeRetrying EventType = "retrying"
	EventTypeError    EventType = "error"
	EventTypeNotice   EventType = "notice"
	EventTypeNavigate EventType = "navigate"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq        int64               `json:"seq"`
	Timestamp  time.Time           `json:"timestamp"`
	JobID      string              `json:"jobId"`
	Type       EventType           `json:"type"`
	State      domain.MonitorState `json:"state,omitempty"`
	Percent    float64             `json:"percent"`
	Message    string              `json:"message,omitempty"`
	Stage      string              `json:"stage,omitempty"`
	StageLabel string              `json:"stageLabel,omitempty"`
	StageState progress.State      `json:"stageState,omitempty"`
	ETASeconds int                 `json:"etaSeconds,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Location   string              `json:"location,omitempty"`
}

// Reporter receives UI side effects.
type Reporter interface {
	Report(event Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report calls f.
func (f ReporterFunc) Report(event Event) {
	f(event)
}

// Fanout forwards each event to every reporter in order.
type Fanout []Reporter

// Report forwards event.
func (f Fanout) Report(event Event) {
	for _, r := range f {
		if r != nil {
			r.Report(event)
		}
	}
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Report publishes event, discarding the stored copy.
func (b *EventBus) Report(event Event) {
	b.Publish(event)
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// OfType filters events by type, preserving order.
func OfType(events []Event, want EventType) []Event {
	var out []Event
	for _, event := range events {
		if event.Type == want {
			out = append(out, event)
		}
	}
	return out
}
