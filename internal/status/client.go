// Package status fetches job status and result data from the puzzle service.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spotdiff-monitor/internal/domain"
)

const userAgent = "spotdiff-monitor"

// ErrTransient matches every poll-level failure that is not a job outcome.
var ErrTransient = errors.New("transient status failure")

// ErrEmptyJobID is returned when the caller skips the job id precondition.
var ErrEmptyJobID = errors.New("job id is empty")

// TransientError wraps a transport, HTTP or decoding failure of one request.
type TransientError struct {
	Op  string
	Err error
}

// Error formats the failing operation and its cause.
func (e *TransientError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrTransient) match any TransientError.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// wireStatus mirrors the status endpoint payload before normalization.
type wireStatus struct {
	Progress    *float64 `json:"progress"`
	Status      string   `json:"status"`
	CurrentStep string   `json:"current_step"`
	Step        string   `json:"step"`
	Error       *string  `json:"error"`
}

// wireResult mirrors the result endpoint payload.
type wireResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	domain.Result
}

// Client issues single status and result requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the service rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientForTests creates a client with an injected HTTP client.
func NewClientForTests(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Fetch performs one status request and normalizes the payload.
// Every failure other than ErrEmptyJobID is a *TransientError.
func (c *Client) Fetch(ctx context.Context, jobID string) (domain.StatusRecord, error) {
	if strings.TrimSpace(jobID) == "" {
		return domain.StatusRecord{}, ErrEmptyJobID
	}

	var payload wireStatus
	if err := c.getJSON(ctx, "/api/status/"+url.PathEscape(jobID), &payload); err != nil {
		return domain.StatusRecord{}, &TransientError{Op: "fetch status", Err: err}
	}

	record, err := normalize(payload)
	if err != nil {
		return domain.StatusRecord{}, &TransientError{Op: "parse status", Err: err}
	}
	return record, nil
}

// FetchResult loads the hand-off data for a completed job.
func (c *Client) FetchResult(ctx context.Context, jobID string) (domain.Result, error) {
	if strings.TrimSpace(jobID) == "" {
		return domain.Result{}, ErrEmptyJobID
	}

	var payload wireResult
	if err := c.getJSON(ctx, "/api/result/"+url.PathEscape(jobID), &payload); err != nil {
		return domain.Result{}, fmt.Errorf("fetch result: %w", err)
	}
	if !payload.Success {
		msg := strings.TrimSpace(payload.Error)
		if msg == "" {
			msg = "result unavailable"
		}
		return domain.Result{}, fmt.Errorf("fetch result: %s", msg)
	}
	if payload.JobID == "" {
		payload.JobID = jobID
	}
	return payload.Result, nil
}

// getJSON issues a GET against the service and decodes a 200 JSON body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s returned %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// normalize applies defaults and validates the status enum.
func normalize(payload wireStatus) (domain.StatusRecord, error) {
	status := domain.JobStatus(strings.ToLower(strings.TrimSpace(payload.Status)))
	if !status.Known() {
		return domain.StatusRecord{}, fmt.Errorf("unknown job status %q", payload.Status)
	}

	record := domain.StatusRecord{Status: status}
	if payload.Progress != nil {
		record.Progress = clampPercent(*payload.Progress)
	}

	record.CurrentStep = strings.TrimSpace(payload.CurrentStep)
	if record.CurrentStep == "" {
		record.CurrentStep = strings.TrimSpace(payload.Step)
	}

	if status == domain.JobStatusFailed && payload.Error != nil {
		record.Error = strings.TrimSpace(*payload.Error)
	}
	return record, nil
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
