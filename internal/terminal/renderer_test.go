package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/jobs"
	"spotdiff-monitor/internal/progress"
)

func TestRendererPrintsProgressSteps(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)

	r.Report(jobs.Event{Type: jobs.EventTypeProgress, Percent: 45, Message: "segmenting"})
	r.Report(jobs.Event{Type: jobs.EventTypeProgress, Percent: 45, Message: "segmenting"})
	r.Report(jobs.Event{Type: jobs.EventTypeStep, Stage: "load", StageLabel: "Load", StageState: progress.StateComplete})
	r.Report(jobs.Event{Type: jobs.EventTypeStep, Stage: "segment", StageState: progress.StateInProgress})
	r.Report(jobs.Event{Type: jobs.EventTypeETA, Message: "About 10 seconds remaining"})
	r.Report(jobs.Event{Type: jobs.EventTypeETA, Message: "About 10 seconds remaining"})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "[ 45%] segmenting"), "duplicate progress lines are collapsed")
	assert.Contains(t, out, "  ✓ Load\n")
	assert.Contains(t, out, "  … segment\n")
	assert.Equal(t, 1, strings.Count(out, "About 10 seconds remaining"))
	assert.False(t, r.Failed())
}

func TestRendererTracksFailureAndNavigation(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)

	r.Report(jobs.Event{Type: jobs.EventTypeRetrying, Message: "Reconnecting..."})
	r.Report(jobs.Event{Type: jobs.EventTypeError, Message: "An error occurred: corrupt image"})
	r.Report(jobs.Event{Type: jobs.EventTypeNavigate, Location: "/result/job_1"})
	r.Report(jobs.Event{Type: jobs.EventTypeState, State: domain.MonitorStateStopped})

	out := buf.String()
	assert.Contains(t, out, "! Reconnecting...")
	assert.Contains(t, out, "✗ An error occurred: corrupt image")
	assert.Contains(t, out, "stopped")
	assert.True(t, r.Failed())
	assert.Equal(t, "/result/job_1", r.Location())
}

func TestRendererResultSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)
	elapsed := 9.31

	r.Result(domain.Result{
		JobID:       "job_1",
		A4LayoutURL: "/outputs/job_1/a4_layout.png",
		Metadata: domain.ResultMetadata{
			Difficulty:     "easy",
			NumDifferences: 3,
			ElapsedSeconds: &elapsed,
		},
	}, "http://127.0.0.1:5000")

	out := buf.String()
	assert.Contains(t, out, "difficulty:  easy")
	assert.Contains(t, out, "differences: 3")
	assert.Contains(t, out, "elapsed:     9.3s")
	assert.Contains(t, out, "http://127.0.0.1:5000/outputs/job_1/a4_layout.png")
	assert.NotContains(t, out, "original:")
}
