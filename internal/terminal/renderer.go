// Package terminal renders monitor events as colored terminal lines.
package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/jobs"
	"spotdiff-monitor/internal/progress"
)

// Renderer prints one line per meaningful event. Safe for concurrent use.
type Renderer struct {
	out io.Writer

	mu       sync.Mutex
	lastLine string
	lastETA  string
	failed   bool
	location string

	progressColor *color.Color
	doneColor     *color.Color
	activeColor   *color.Color
	warnColor     *color.Color
	errorColor    *color.Color
	dimColor      *color.Color
}

// NewRenderer creates a renderer writing to out (stdout when nil).
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	r := &Renderer{
		out:           out,
		progressColor: color.New(color.FgCyan),
		doneColor:     color.New(color.FgGreen),
		activeColor:   color.New(color.FgYellow),
		warnColor:     color.New(color.FgYellow),
		errorColor:    color.New(color.FgRed, color.Bold),
		dimColor:      color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{r.progressColor, r.doneColor, r.activeColor, r.warnColor, r.errorColor, r.dimColor} {
			c.DisableColor()
		}
	}
	return r
}

// Report renders one event.
func (r *Renderer) Report(event jobs.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Type {
	case jobs.EventTypeProgress:
		line := fmt.Sprintf("[%3.0f%%] %s", event.Percent, event.Message)
		if line == r.lastLine {
			return
		}
		r.lastLine = line
		r.progressColor.Fprintln(r.out, line)

	case jobs.EventTypeStep:
		label := event.StageLabel
		if label == "" {
			label = event.Stage
		}
		switch event.StageState {
		case progress.StateComplete:
			r.doneColor.Fprintf(r.out, "  ✓ %s\n", label)
		case progress.StateInProgress:
			r.activeColor.Fprintf(r.out, "  … %s\n", label)
		}

	case jobs.EventTypeETA:
		if event.Message == r.lastETA {
			return
		}
		r.lastETA = event.Message
		if event.Message != "" {
			r.dimColor.Fprintf(r.out, "  %s\n", event.Message)
		}

	case jobs.EventTypeRetrying, jobs.EventTypeNotice:
		r.lastLine = ""
		r.warnColor.Fprintf(r.out, "! %s\n", event.Message)

	case jobs.EventTypeError:
		r.failed = true
		r.errorColor.Fprintf(r.out, "✗ %s\n", event.Message)

	case jobs.EventTypeNavigate:
		r.location = event.Location
		r.dimColor.Fprintf(r.out, "→ %s\n", event.Location)

	case jobs.EventTypeState:
		if event.State == domain.MonitorStateStopped {
			r.dimColor.Fprintln(r.out, "stopped")
		}
	}
}

// Failed reports whether an error event was rendered.
func (r *Renderer) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// Location returns the last navigation target, if any.
func (r *Renderer) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Result prints the hand-off summary of a completed job.
func (r *Renderer) Result(result domain.Result, serverURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta := result.Metadata
	r.doneColor.Fprintf(r.out, "\n✓ %s\n", result.JobID)
	if meta.Difficulty != "" {
		fmt.Fprintf(r.out, "  difficulty:  %s\n", meta.Difficulty)
	}
	fmt.Fprintf(r.out, "  differences: %d\n", meta.DifferenceCount())
	if meta.ElapsedSeconds != nil {
		fmt.Fprintf(r.out, "  elapsed:     %.1fs\n", *meta.ElapsedSeconds)
	}
	for _, diff := range meta.Differences {
		r.dimColor.Fprintf(r.out, "    - %s %s\n", diff.ChangeType, diff.Description)
	}
	for _, link := range []struct{ name, path string }{
		{"original", result.OriginalImageURL},
		{"modified", result.ModifiedImageURL},
		{"a4 layout", result.A4LayoutURL},
		{"a4 answers", result.A4LayoutWithAnswersURL},
	} {
		if link.path == "" {
			continue
		}
		fmt.Fprintf(r.out, "  %-11s  %s%s\n", link.name+":", serverURL, link.path)
	}
}
