package domain

// JobStatus is the producer-reported status of one puzzle generation job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status ends polling.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Known reports whether the status is one the monitor understands.
func (s JobStatus) Known() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// StatusRecord is the normalized result of one status poll.
type StatusRecord struct {
	Progress    float64   `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// MonitorState tracks the lifecycle of one monitor session.
type MonitorState string

const (
	MonitorStateIdle      MonitorState = "idle"
	MonitorStatePolling   MonitorState = "polling"
	MonitorStateSucceeded MonitorState = "succeeded"
	MonitorStateFailed    MonitorState = "failed"
	MonitorStateStopped   MonitorState = "stopped"
)

// Session stores the watched job identity and monitor state.
type Session struct {
	JobID string       `json:"jobId"`
	State MonitorState `json:"state"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ServerURL         string `json:"serverUrl"`
	PollIntervalMS    int    `json:"pollIntervalMs"`
	RedirectDelayMS   int    `json:"redirectDelayMs"`
	MissingJobDelayMS int    `json:"missingJobDelayMs"`
	PlaceholderETASec int    `json:"placeholderEtaSec"`
	RequestTimeoutSec int    `json:"requestTimeoutSec"`
	Locale            string `json:"locale"`
	LogMode           string `json:"logMode"`
}
