// Package poller watches one job until it reaches a terminal status.
//
// A Poller owns the session's repeating timer, its stage state and its ETA
// estimator. Ticks dispatch status fetches asynchronously; every response is
// funneled back into a single loop goroutine that applies one transition
// function, so late or duplicate responses are handled by an explicit state
// guard rather than by callback ordering.
package poller

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/eta"
	"spotdiff-monitor/internal/jobs"
	"spotdiff-monitor/internal/logger"
	"spotdiff-monitor/internal/progress"
)

// ErrAlreadyStarted is returned when Start is called on a spent poller.
var ErrAlreadyStarted = errors.New("poller already started")

const (
	defaultInterval        = 1500 * time.Millisecond
	defaultRedirectDelay   = 500 * time.Millisecond
	defaultMissingJobDelay = 2 * time.Second
	defaultPlaceholderETA  = 15 * time.Second
	defaultStartLocation   = "/"
	defaultResultPrefix    = "/result/"
)

// Fetcher performs one status request. Errors are treated as transient.
type Fetcher interface {
	Fetch(ctx context.Context, jobID string) (domain.StatusRecord, error)
}

// Config controls poll timing, hand-off locations and texts.
type Config struct {
	Interval        time.Duration
	RedirectDelay   time.Duration
	MissingJobDelay time.Duration
	PlaceholderETA  time.Duration
	StartLocation   string
	ResultPrefix    string
	Stages          []progress.Stage
	Messages        Messages
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.RedirectDelay <= 0 {
		c.RedirectDelay = defaultRedirectDelay
	}
	if c.MissingJobDelay <= 0 {
		c.MissingJobDelay = defaultMissingJobDelay
	}
	if c.PlaceholderETA <= 0 {
		c.PlaceholderETA = defaultPlaceholderETA
	}
	if c.StartLocation == "" {
		c.StartLocation = defaultStartLocation
	}
	if c.ResultPrefix == "" {
		c.ResultPrefix = defaultResultPrefix
	}
	if len(c.Stages) == 0 {
		c.Stages = progress.DefaultStages()
	}
	if c.Messages == (Messages{}) {
		c.Messages = MessagesFor("")
	}
	return c
}

// ResultLocation is the hand-off target for a completed job.
func (c Config) ResultLocation(jobID string) string {
	return c.withDefaults().ResultPrefix + url.PathEscape(jobID)
}

// pollResult carries one fetch outcome back to the loop.
type pollResult struct {
	tick   int64
	record domain.StatusRecord
	err    error
}

// Poller is one monitor session. Create it with New, then call Start once.
type Poller struct {
	cfg      Config
	fetcher  Fetcher
	reporter jobs.Reporter
	log      *logger.Logger
	now      func() time.Time
	session  *jobs.Manager
	done     chan struct{}

	mu      sync.Mutex
	started bool
	jobID   string
	cancel  context.CancelFunc
	mapper  *progress.Mapper

	// Owned by the loop goroutine.
	estimator *eta.Estimator
	timer     *pollTimer
	navigated bool

	cancellations atomic.Int32
	fetches       atomic.Int32
}

// New builds an idle poller. A nil reporter discards events.
func New(cfg Config, fetcher Fetcher, reporter jobs.Reporter, log *logger.Logger) (*Poller, error) {
	if fetcher == nil {
		return nil, errors.New("poller needs a status fetcher")
	}
	cfg = cfg.withDefaults()

	mapper, err := progress.NewMapper(cfg.Stages)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = jobs.ReporterFunc(func(jobs.Event) {})
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Poller{
		cfg:      cfg,
		fetcher:  fetcher,
		reporter: reporter,
		log:      log.With("session_id", uuid.NewString()),
		now:      time.Now,
		session:  jobs.NewManager(),
		done:     make(chan struct{}),
		mapper:   mapper,
	}, nil
}

// Start adopts jobID and begins polling with an immediate first tick. An empty
// jobID never touches the network: the poller reports the missing job and,
// after MissingJobDelay, navigates back to the start location.
func (p *Poller) Start(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.jobID = jobID
	p.mu.Unlock()

	if jobID == "" {
		p.log.Warn("no job id available, returning to start")
		go p.runMissing(runCtx)
		return nil
	}

	if err := p.session.Start(jobID); err != nil {
		cancel()
		close(p.done)
		return err
	}

	p.log = p.log.With("job_id", jobID)
	p.mu.Lock()
	p.mapper.Reset()
	p.mu.Unlock()
	p.estimator = eta.NewWithClock(p.cfg.PlaceholderETA, p.now)

	p.log.Info("polling started", "interval", p.cfg.Interval.String())
	p.emit(jobs.Event{Type: jobs.EventTypeState, State: domain.MonitorStatePolling})

	go p.run(runCtx)
	return nil
}

// Stop ends the session as if the user navigated away. It is safe to call
// repeatedly, before Start and after a terminal state. It blocks until the
// loop has exited, so it must not be called from a Reporter.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.started = true
		p.mu.Unlock()
		close(p.done)
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-p.done
}

// Done is closed once the session has ended.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the session ends or ctx is cancelled.
func (p *Poller) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current monitor state.
func (p *Poller) State() domain.MonitorState {
	return p.session.Current().State
}

// JobID returns the adopted job id, empty when none was supplied.
func (p *Poller) JobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// Steps returns the current per-stage visual states.
func (p *Poller) Steps() []progress.StageStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapper.Snapshot()
}

// run is the session loop: it owns the timer and applies every response.
func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	fetchCtx, stopFetches := context.WithCancel(ctx)
	defer stopFetches()

	results := make(chan pollResult)
	p.timer = newPollTimer(p.cfg.Interval, func() {
		p.cancellations.Add(1)
		stopFetches()
	})
	defer p.timer.Cancel()

	var tick int64
	p.dispatch(fetchCtx, results, tick)

	var redirect <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if err := p.session.Stop(); err == nil {
				p.log.Info("polling stopped")
				p.emit(jobs.Event{Type: jobs.EventTypeState, State: domain.MonitorStateStopped})
			}
			return

		case <-p.timer.C():
			// A tick may already be buffered when the timer is cancelled.
			if !p.session.IsPolling() {
				continue
			}
			tick++
			p.dispatch(fetchCtx, results, tick)

		case res := <-results:
			switch p.apply(res) {
			case domain.MonitorStateSucceeded:
				if redirect == nil {
					redirect = time.After(p.cfg.RedirectDelay)
				}
			case domain.MonitorStateFailed:
				return
			}

		case <-redirect:
			p.navigate(p.cfg.ResultLocation(p.JobID()))
			return
		}
	}
}

// dispatch starts one fetch. Ticks are not request-aware, so several
// fetches may be in flight at once.
func (p *Poller) dispatch(ctx context.Context, results chan<- pollResult, tick int64) {
	jobID := p.JobID()
	p.fetches.Add(1)
	go func() {
		record, err := p.fetcher.Fetch(ctx, jobID)
		select {
		case results <- pollResult{tick: tick, record: record, err: err}:
		case <-ctx.Done():
		}
	}()
}

// apply is the single transition function. It returns the state after the
// response has been handled.
func (p *Poller) apply(res pollResult) domain.MonitorState {
	if !p.session.IsPolling() {
		p.log.Debug("ignoring late status response", "tick", res.tick)
		return p.session.Current().State
	}

	if res.err != nil {
		p.log.Warn("status poll failed, retrying on next tick", "tick", res.tick, "error", res.err)
		p.emit(jobs.Event{Type: jobs.EventTypeRetrying, Message: p.cfg.Messages.Retrying})
		return domain.MonitorStatePolling
	}

	switch res.record.Status {
	case domain.JobStatusCompleted:
		p.succeed(res.record)
	case domain.JobStatusFailed:
		p.fail(res.record)
	default:
		p.advance(res.record)
	}
	return p.session.Current().State
}

// advance reflects a non-terminal record.
func (p *Poller) advance(rec domain.StatusRecord) {
	text := rec.CurrentStep
	if text == "" {
		text = p.cfg.Messages.Processing
	}
	p.emit(jobs.Event{Type: jobs.EventTypeProgress, Percent: rec.Progress, Message: text})

	p.mu.Lock()
	changes := p.mapper.Update(rec.Progress)
	p.mu.Unlock()
	p.emitChanges(changes)

	estimate := p.estimator.Estimate(rec.Progress, rec.Status)
	switch estimate.Kind {
	case eta.KindRemaining:
		p.emit(jobs.Event{Type: jobs.EventTypeETA, ETASeconds: estimate.Seconds(), Message: p.cfg.Messages.remaining(estimate.Seconds())})
	case eta.KindPlaceholder:
		p.emit(jobs.Event{Type: jobs.EventTypeETA, ETASeconds: estimate.Seconds(), Message: p.cfg.Messages.placeholder(estimate.Seconds())})
	}
}

// succeed resolves every stage and schedules the hand-off.
func (p *Poller) succeed(rec domain.StatusRecord) {
	if err := p.session.Transition(domain.MonitorStateSucceeded); err != nil {
		p.log.Debug("completion arrived after session ended", "error", err)
		return
	}
	p.timer.Cancel()

	p.emit(jobs.Event{Type: jobs.EventTypeProgress, Percent: 100, Message: p.cfg.Messages.Completed})
	p.mu.Lock()
	changes := p.mapper.CompleteAll()
	p.mu.Unlock()
	p.emitChanges(changes)
	p.emit(jobs.Event{Type: jobs.EventTypeETA})
	p.emit(jobs.Event{Type: jobs.EventTypeState, State: domain.MonitorStateSucceeded, Percent: 100})

	p.log.Info("job completed", "last_progress", rec.Progress)
}

// fail surfaces the server's reason and ends the session without a redirect.
func (p *Poller) fail(rec domain.StatusRecord) {
	if err := p.session.Transition(domain.MonitorStateFailed); err != nil {
		p.log.Debug("failure arrived after session ended", "error", err)
		return
	}
	p.timer.Cancel()

	reason := p.cfg.Messages.failureReason(rec.Error)
	p.emit(jobs.Event{Type: jobs.EventTypeETA})
	p.emit(jobs.Event{
		Type:    jobs.EventTypeError,
		Percent: rec.Progress,
		Reason:  reason,
		Message: p.cfg.Messages.FailurePrefix + reason,
	})
	p.emit(jobs.Event{Type: jobs.EventTypeState, State: domain.MonitorStateFailed, Percent: rec.Progress})

	p.log.Warn("job failed", "reason", reason)
}

// runMissing handles the no-job precondition failure.
func (p *Poller) runMissing(ctx context.Context) {
	defer close(p.done)

	p.emit(jobs.Event{Type: jobs.EventTypeNotice, Message: p.cfg.Messages.MissingJob})

	timer := time.NewTimer(p.cfg.MissingJobDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		p.navigate(p.cfg.StartLocation)
	}
}

// navigate emits the hand-off at most once per session.
func (p *Poller) navigate(location string) {
	if p.navigated {
		return
	}
	p.navigated = true
	p.log.Info("navigating", "location", location)
	p.emit(jobs.Event{Type: jobs.EventTypeNavigate, Location: location})
}

func (p *Poller) emitChanges(changes []progress.Change) {
	for _, c := range changes {
		p.emit(jobs.Event{
			Type:       jobs.EventTypeStep,
			Stage:      c.Stage,
			StageLabel: c.Label,
			StageState: c.To,
		})
	}
}

func (p *Poller) emit(event jobs.Event) {
	event.JobID = p.JobID()
	p.reporter.Report(event)
}
