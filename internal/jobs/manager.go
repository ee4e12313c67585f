package jobs

import (
	"errors"
	"fmt"
	"sync"

	"spotdiff-monitor/internal/domain"
)

// ErrAlreadyWatching is returned when starting a second polling session.
var ErrAlreadyWatching = errors.New("a job is already being watched")

// ErrNoActiveSession is returned when stop is requested while not polling.
var ErrNoActiveSession = errors.New("no active monitor session")

// Manager guards the monitor session state machine.
type Manager struct {
	mu      sync.RWMutex
	current domain.Session
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Session{
			State: domain.MonitorStateIdle,
		},
	}
}

// Start adopts a job id and moves the session to polling.
func (m *Manager) Start(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State == domain.MonitorStatePolling {
		return ErrAlreadyWatching
	}
	if jobID == "" {
		return fmt.Errorf("cannot start polling without a job id")
	}

	m.current = domain.Session{
		JobID: jobID,
		State: domain.MonitorStatePolling,
	}
	return nil
}

// Transition validates and applies a state change for the current session.
func (m *Manager) Transition(state domain.MonitorState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.JobID == "" && state != domain.MonitorStateIdle {
		return fmt.Errorf("cannot transition without a job id")
	}
	if state == m.current.State {
		return nil
	}
	if !isValidTransition(m.current.State, state) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.State, state)
	}

	m.current.State = state
	return nil
}

// Current returns a snapshot of the session.
func (m *Manager) Current() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears the job id and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Session{State: domain.MonitorStateIdle}
}

// IsPolling reports whether the session is in the polling state.
func (m *Manager) IsPolling() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.State == domain.MonitorStatePolling
}

// Stop moves a polling session to stopped.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State != domain.MonitorStatePolling {
		return ErrNoActiveSession
	}
	m.current.State = domain.MonitorStateStopped
	return nil
}

// IsTerminal reports whether state ends a session.
func IsTerminal(state domain.MonitorState) bool {
	switch state {
	case domain.MonitorStateSucceeded, domain.MonitorStateFailed, domain.MonitorStateStopped:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed session state machine edges.
func isValidTransition(from, to domain.MonitorState) bool {
	switch from {
	case domain.MonitorStateIdle:
		return to == domain.MonitorStatePolling
	case domain.MonitorStatePolling:
		return to == domain.MonitorStateSucceeded || to == domain.MonitorStateFailed || to == domain.MonitorStateStopped
	case domain.MonitorStateSucceeded, domain.MonitorStateFailed, domain.MonitorStateStopped:
		return to == domain.MonitorStateIdle
	default:
		return false
	}
}
