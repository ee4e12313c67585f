package diagnostics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/poller"
)

const (
	minPollInterval = 500 * time.Millisecond
	maxPollInterval = 10 * time.Second
	probeTimeout    = 5 * time.Second
)

// Checker validates monitor settings and the status service connection.
type Checker struct {
	probe func(ctx context.Context, target string) (int, error)
	now   func() time.Time
}

// NewChecker builds a checker probing over real HTTP.
func NewChecker() *Checker {
	client := &http.Client{Timeout: probeTimeout}
	return &Checker{
		probe: func(ctx context.Context, target string) (int, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return 0, err
			}
			req.Header.Set("User-Agent", "spotdiff-monitor")
			resp, err := client.Do(req)
			if err != nil {
				return 0, err
			}
			resp.Body.Close()
			return resp.StatusCode, nil
		},
		now: time.Now,
	}
}

// NewCheckerForTests creates a checker with an injectable probe.
func NewCheckerForTests(probe func(ctx context.Context, target string) (int, error)) *Checker {
	return &Checker{probe: probe, now: time.Now}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	base, urlItem := c.checkServerURL(settings.ServerURL)
	items := []domain.DiagnosticItem{
		urlItem,
		c.checkReachable(ctx, base),
		c.checkPollInterval(settings.PollIntervalMS),
		c.checkLocale(settings.Locale),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkServerURL validates the configured service root.
func (c *Checker) checkServerURL(raw string) (*url.URL, domain.DiagnosticItem) {
	item := domain.DiagnosticItem{
		ID:   "server_url",
		Name: "Server URL",
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Server URL is empty."
		item.Hint = "Set the address of the puzzle service, e.g. http://127.0.0.1:5000."
		return nil, item
	}

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Server URL is not a valid http(s) address: %s", trimmed)
		item.Hint = "Include the scheme and host, e.g. http://127.0.0.1:5000."
		return nil, item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", u.String())
	return u, item
}

// checkReachable confirms the status endpoint answers HTTP at all.
func (c *Checker) checkReachable(ctx context.Context, base *url.URL) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "status_endpoint",
		Name: "Status endpoint",
	}
	if base == nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Skipped: server URL is invalid."
		item.Hint = "Fix the server URL first."
		return item
	}

	// Any HTTP answer proves the service is up; unknown jobs return 404.
	target := strings.TrimRight(base.String(), "/") + "/api/status/diagnostics-probe"
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	code, err := c.probe(probeCtx, target)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot reach %s: %v", base.Host, err)
		item.Hint = "Start the puzzle service or correct the server URL."
		return item
	}
	if code >= http.StatusInternalServerError {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Service answered with HTTP %d.", code)
		item.Hint = "Polls will keep retrying, but check the service logs."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Service reachable at %s (HTTP %d)", base.Host, code)
	return item
}

// checkPollInterval flags intervals that hammer the service or feel stuck.
func (c *Checker) checkPollInterval(intervalMS int) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "poll_interval",
		Name: "Poll interval",
	}
	interval := time.Duration(intervalMS) * time.Millisecond
	switch {
	case interval < minPollInterval:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Poll interval %s is very short.", interval)
		item.Hint = "Use 1.5s to 2s to avoid flooding the service."
	case interval > maxPollInterval:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Poll interval %s is long; progress will lag.", interval)
		item.Hint = "Use 1.5s to 2s for responsive progress."
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Polling every %s", interval)
	}
	return item
}

// checkLocale reports whether messages exist for the configured locale.
func (c *Checker) checkLocale(locale string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "locale",
		Name: "Locale",
	}
	if poller.MessagesFor(locale) == poller.MessagesFor("ja") && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "ja") {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("No messages for locale %q; using Japanese.", locale)
		item.Hint = "Supported locales: ja, en."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Messages in %q", locale)
	return item
}
