package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"spotdiff-monitor/internal/config"
	"spotdiff-monitor/internal/diagnostics"
	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/jobs"
	"spotdiff-monitor/internal/logger"
	"spotdiff-monitor/internal/poller"
	"spotdiff-monitor/internal/progress"
	"spotdiff-monitor/internal/status"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// eventName is the runtime event the frontend subscribes to.
const eventName = "job:event"

// App wires configuration, the monitor session and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	log         *logger.Logger
	newService  func(domain.Settings) statusService

	mu         sync.Mutex
	active     *poller.Poller
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// statusService is the slice of the status client the App depends on.
type statusService interface {
	poller.Fetcher
	FetchResult(ctx context.Context, jobID string) (domain.Result, error)
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	store := config.NewJSONStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	log, err := logger.New(settings.LogMode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(context.Background(), settings)

	return &App{
		Settings:    settings,
		Store:       store,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		log:         log,
		newService:  newStatusService,
		events:      jobs.NewEventBus(1000),
	}, nil
}

func newStatusService(settings domain.Settings) statusService {
	return status.NewClient(settings.ServerURL, config.RequestTimeout(settings))
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Spot the Difference",
		Width:       960,
		Height:      680,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown discards the page: the active session is stopped.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	active := a.active
	a.runtimeCtx = nil
	a.mu.Unlock()

	if active != nil {
		active.Stop()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	var report domain.DiagnosticReport
	if a.checker != nil {
		report = a.checker.Run(context.Background(), normalized)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = report
	}
	a.mu.Unlock()

	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns the checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	report := a.checker.Run(context.Background(), settings)

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = report
	a.mu.Unlock()
	return report, nil
}

// StartMonitoring begins polling jobID. An empty jobID is accepted: the
// session reports the missing job and navigates back to the start page.
func (a *App) StartMonitoring(jobID string) (domain.Session, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Session{}, fmt.Errorf("load settings: %w", err)
	}

	p, err := poller.New(config.PollerConfig(settings), a.newService(settings), jobs.ReporterFunc(a.publishEvent), a.logger())
	if err != nil {
		return domain.Session{}, fmt.Errorf("build poller: %w", err)
	}

	a.mu.Lock()
	if a.active != nil && a.active.State() == domain.MonitorStatePolling {
		a.mu.Unlock()
		return domain.Session{}, jobs.ErrAlreadyWatching
	}
	a.Settings = settings
	a.active = p
	a.mu.Unlock()

	// Start reports synchronously, and publishEvent takes a.mu.
	if err := p.Start(context.Background(), jobID); err != nil {
		return domain.Session{}, fmt.Errorf("start polling: %w", err)
	}
	return domain.Session{JobID: p.JobID(), State: p.State()}, nil
}

// StopMonitoring stops the active session, if any.
func (a *App) StopMonitoring() error {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if active == nil {
		return jobs.ErrNoActiveSession
	}
	active.Stop()
	return nil
}

// CurrentSession returns the watched job id and monitor state.
func (a *App) CurrentSession() domain.Session {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if active == nil {
		return domain.Session{State: domain.MonitorStateIdle}
	}
	return domain.Session{JobID: active.JobID(), State: active.State()}
}

// GetSteps returns the per-stage states of the active session.
func (a *App) GetSteps() []progress.StageStatus {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if active == nil {
		return progress.MustDefault().Snapshot()
	}
	return active.Steps()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// GetResult loads the hand-off data for a completed job.
func (a *App) GetResult(jobID string) (domain.Result, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Result{}, fmt.Errorf("load settings: %w", err)
	}
	return a.newService(settings).FetchResult(context.Background(), jobID)
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, eventName, published)
	}
}

func (a *App) logger() *logger.Logger {
	if a.log == nil {
		return logger.Nop()
	}
	return a.log
}
