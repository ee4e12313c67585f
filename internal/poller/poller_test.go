package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/eta"
	"spotdiff-monitor/internal/jobs"
	"spotdiff-monitor/internal/progress"
)

// reply is one scripted fetch outcome.
type reply struct {
	record domain.StatusRecord
	err    error
}

func processing(p float64) reply {
	return reply{record: domain.StatusRecord{Progress: p, Status: domain.JobStatusProcessing}}
}

// scriptedFetcher returns replies in order and repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	jobIDs  []string
}

func (f *scriptedFetcher) Fetch(ctx context.Context, jobID string) (domain.StatusRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.jobIDs = append(f.jobIDs, jobID)
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i].record, f.replies[i].err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder captures reported events.
type recorder struct {
	mu     sync.Mutex
	events []jobs.Event
}

func (r *recorder) Report(e jobs.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []jobs.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]jobs.Event(nil), r.events...)
}

func (r *recorder) ofType(t jobs.EventType) []jobs.Event {
	return jobs.OfType(r.all(), t)
}

func testConfig() Config {
	return Config{
		Interval:        15 * time.Millisecond,
		RedirectDelay:   20 * time.Millisecond,
		MissingJobDelay: 20 * time.Millisecond,
		PlaceholderETA:  15 * time.Second,
		Messages:        MessagesFor("en"),
	}
}

func newTestPoller(t *testing.T, f Fetcher) (*Poller, *recorder) {
	t.Helper()
	rec := &recorder{}
	p, err := New(testConfig(), f, rec, nil)
	require.NoError(t, err)
	return p, rec
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not finish, state = %s", p.State())
	}
}

// waitFor polls cond until it holds or times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stepStates(p *Poller) map[string]progress.State {
	out := make(map[string]progress.State)
	for _, s := range p.Steps() {
		out[s.Stage] = s.State
	}
	return out
}

func TestHappyPathCompletesAndNavigatesOnce(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		processing(0),
		processing(45),
		processing(96),
		{record: domain.StatusRecord{Progress: 100, Status: domain.JobStatusCompleted}},
	}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_1"))
	waitDone(t, p)

	assert.Equal(t, domain.MonitorStateSucceeded, p.State())
	for name, st := range stepStates(p) {
		assert.Equal(t, progress.StateComplete, st, "stage %s", name)
	}

	nav := rec.ofType(jobs.EventTypeNavigate)
	require.Len(t, nav, 1)
	assert.Equal(t, "/result/job_1", nav[0].Location)
	assert.Equal(t, int32(1), p.cancellations.Load())

	progressEvents := rec.ofType(jobs.EventTypeProgress)
	last := progressEvents[len(progressEvents)-1]
	assert.Equal(t, 100.0, last.Percent)
	assert.Equal(t, "Done! Redirecting...", last.Message)

	etaEvents := rec.ofType(jobs.EventTypeETA)
	assert.Empty(t, etaEvents[len(etaEvents)-1].Message, "estimate is cleared on completion")

	calls := fetcher.callCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount(), "no polls after a terminal transition")
	assert.Len(t, rec.ofType(jobs.EventTypeNavigate), 1)

	for _, id := range fetcher.jobIDs {
		assert.Equal(t, "job_1", id)
	}
}

func TestStepEventsFollowProgress(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{processing(0), processing(45)}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_1"))
	waitFor(t, "segment in progress", func() bool {
		return stepStates(p)["segment"] == progress.StateInProgress
	})
	p.Stop()

	assert.Equal(t, progress.StateComplete, stepStates(p)["load"])
	steps := rec.ofType(jobs.EventTypeStep)
	require.Len(t, steps, 2, "repeated readings must not re-emit unchanged stages")
	assert.Equal(t, "load", steps[0].Stage)
	assert.Equal(t, progress.StateComplete, steps[0].StageState)
	assert.Equal(t, "segment", steps[1].Stage)
	assert.Equal(t, progress.StateInProgress, steps[1].StageState)
}

func TestForcedCompletionFromPartialProgress(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		processing(80),
		{record: domain.StatusRecord{Progress: 80, Status: domain.JobStatusCompleted}},
	}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_2"))
	waitDone(t, p)

	for name, st := range stepStates(p) {
		assert.Equal(t, progress.StateComplete, st, "stage %s", name)
	}
	states := rec.ofType(jobs.EventTypeState)
	assert.Equal(t, 100.0, states[len(states)-1].Percent)
}

func TestTransientFailureKeepsPolling(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		{err: errors.New("connection refused")},
		processing(10),
	}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_3"))
	waitFor(t, "load in progress", func() bool {
		return stepStates(p)["load"] == progress.StateInProgress
	})

	events := rec.all()
	retryAt, firstStepAt := -1, -1
	for i, e := range events {
		if e.Type == jobs.EventTypeRetrying && retryAt < 0 {
			retryAt = i
		}
		if e.Type == jobs.EventTypeStep && firstStepAt < 0 {
			firstStepAt = i
		}
	}
	require.GreaterOrEqual(t, retryAt, 0)
	assert.Less(t, retryAt, firstStepAt, "the failed poll changed no stage")
	assert.Equal(t, "Reconnecting...", events[retryAt].Message)
	assert.Equal(t, domain.MonitorStatePolling, p.State())
	assert.Zero(t, p.cancellations.Load(), "timer survives a transient failure")

	p.Stop()
	assert.Equal(t, domain.MonitorStateStopped, p.State())
	assert.Empty(t, rec.ofType(jobs.EventTypeNavigate))
}

func TestReportedFailureStopsWithoutNavigation(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		{record: domain.StatusRecord{Progress: 30, Status: domain.JobStatusFailed, Error: "corrupt image"}},
	}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_4"))
	waitDone(t, p)

	assert.Equal(t, domain.MonitorStateFailed, p.State())
	errs := rec.ofType(jobs.EventTypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "corrupt image", errs[0].Reason)
	assert.Equal(t, "An error occurred: corrupt image", errs[0].Message)
	assert.Equal(t, int32(1), p.cancellations.Load())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, fetcher.callCount(), "no further polls after failure")
	assert.Empty(t, rec.ofType(jobs.EventTypeNavigate))
}

func TestReportedFailureWithoutReasonUsesFallback(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		{record: domain.StatusRecord{Status: domain.JobStatusFailed}},
	}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_5"))
	waitDone(t, p)

	errs := rec.ofType(jobs.EventTypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Unknown error", errs[0].Reason)
}

func TestMissingJobRedirectsToStart(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{processing(0)}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "  "))
	waitDone(t, p)

	assert.Equal(t, domain.MonitorStateIdle, p.State())
	assert.Zero(t, fetcher.callCount())

	notices := rec.ofType(jobs.EventTypeNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, "Job information not found", notices[0].Message)

	nav := rec.ofType(jobs.EventTypeNavigate)
	require.Len(t, nav, 1)
	assert.Equal(t, "/", nav[0].Location)
}

func TestStopIsIdempotent(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		{record: domain.StatusRecord{Progress: 100, Status: domain.JobStatusCompleted}},
	}}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_6"))
	waitDone(t, p)

	p.Stop()
	p.Stop()
	assert.Equal(t, domain.MonitorStateSucceeded, p.State())
	assert.Len(t, rec.ofType(jobs.EventTypeNavigate), 1)
	assert.ErrorIs(t, p.Start(context.Background(), "job_6"), ErrAlreadyStarted)
}

func TestStopBeforeStart(t *testing.T) {
	p, _ := newTestPoller(t, &scriptedFetcher{replies: []reply{processing(0)}})
	p.Stop()
	p.Stop()
	waitDone(t, p)
	assert.ErrorIs(t, p.Start(context.Background(), "job_7"), ErrAlreadyStarted)
}

func TestStopDuringRedirectDelaySuppressesNavigation(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		{record: domain.StatusRecord{Progress: 100, Status: domain.JobStatusCompleted}},
	}}
	rec := &recorder{}
	cfg := testConfig()
	cfg.RedirectDelay = time.Second
	p, err := New(cfg, fetcher, rec, nil)
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background(), "job_8"))
	waitFor(t, "success", func() bool { return p.State() == domain.MonitorStateSucceeded })
	p.Stop()

	assert.Empty(t, rec.ofType(jobs.EventTypeNavigate))
	assert.Equal(t, domain.MonitorStateSucceeded, p.State())
}

// blockingFetcher holds the first request until released.
type blockingFetcher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, jobID string) (domain.StatusRecord, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if first {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
		return domain.StatusRecord{Progress: 30, Status: domain.JobStatusProcessing}, nil
	}
	return domain.StatusRecord{Progress: 100, Status: domain.JobStatusCompleted}, nil
}

func TestOverlappingPollsResolveOnce(t *testing.T) {
	fetcher := &blockingFetcher{release: make(chan struct{})}
	p, rec := newTestPoller(t, fetcher)

	require.NoError(t, p.Start(context.Background(), "job_9"))
	waitDone(t, p)
	close(fetcher.release)

	assert.Equal(t, domain.MonitorStateSucceeded, p.State())
	assert.Len(t, rec.ofType(jobs.EventTypeNavigate), 1)
	assert.Equal(t, int32(1), p.cancellations.Load())
}

func TestLateResponseAfterTerminalIsNoop(t *testing.T) {
	rec := &recorder{}
	p, err := New(testConfig(), &scriptedFetcher{replies: []reply{processing(0)}}, rec, nil)
	require.NoError(t, err)
	require.NoError(t, p.session.Start("job_10"))
	p.jobID = "job_10"
	p.estimator = eta.New(time.Second)

	state := p.apply(pollResult{record: domain.StatusRecord{Progress: 90, Status: domain.JobStatusCompleted}})
	require.Equal(t, domain.MonitorStateSucceeded, state)
	before := len(rec.all())

	assert.Equal(t, domain.MonitorStateSucceeded, p.apply(pollResult{record: domain.StatusRecord{Progress: 20, Status: domain.JobStatusProcessing}}))
	assert.Equal(t, domain.MonitorStateSucceeded, p.apply(pollResult{record: domain.StatusRecord{Status: domain.JobStatusFailed, Error: "late"}}))
	assert.Equal(t, domain.MonitorStateSucceeded, p.apply(pollResult{err: errors.New("late network error")}))
	assert.Len(t, rec.all(), before, "late responses emit nothing")
	for _, s := range p.Steps() {
		assert.Equal(t, progress.StateComplete, s.State)
	}
}

func TestEstimateEventsDuringPolling(t *testing.T) {
	rec := &recorder{}
	p, err := New(testConfig(), &scriptedFetcher{replies: []reply{processing(0)}}, rec, nil)
	require.NoError(t, err)
	require.NoError(t, p.session.Start("job_11"))
	p.jobID = "job_11"

	start := time.Unix(0, 0)
	now := start
	p.estimator = eta.NewWithClock(15*time.Second, func() time.Time { return now })

	p.apply(pollResult{record: domain.StatusRecord{Progress: 3, Status: domain.JobStatusProcessing}})
	now = start.Add(10 * time.Second)
	p.apply(pollResult{record: domain.StatusRecord{Progress: 50, Status: domain.JobStatusProcessing}})

	etas := rec.ofType(jobs.EventTypeETA)
	require.Len(t, etas, 2)
	assert.Equal(t, "Estimated 15 seconds", etas[0].Message)
	assert.Equal(t, 10, etas[1].ETASeconds)
	assert.Equal(t, "About 10 seconds remaining", etas[1].Message)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Stages: []progress.Stage{{Name: "bad", LoIn: 9, LoOut: 1}}}, &scriptedFetcher{}, nil, nil)
	assert.Error(t, err)
}

func TestResultLocationEscapesJobID(t *testing.T) {
	assert.Equal(t, "/result/job%2F1", Config{}.ResultLocation("job/1"))
	assert.Equal(t, "/done/job_1", Config{ResultPrefix: "/done/"}.ResultLocation("job_1"))
}

func TestMessagesFor(t *testing.T) {
	assert.Equal(t, "接続を再試行しています...", MessagesFor("ja-JP").Retrying)
	assert.Equal(t, "Reconnecting...", MessagesFor("en_US").Retrying)
	assert.Equal(t, MessagesFor("ja"), MessagesFor("fr"))
}
