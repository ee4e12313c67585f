package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/poller"
)

const (
	defaultServerURL         = "http://127.0.0.1:5000"
	defaultPollIntervalMS    = 1500
	defaultRedirectDelayMS   = 500
	defaultMissingJobDelayMS = 2000
	defaultPlaceholderETASec = 15
	defaultRequestTimeoutSec = 10
	defaultLocale            = "ja"
	defaultLogMode           = "dev"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ServerURL:         defaultServerURL,
		PollIntervalMS:    defaultPollIntervalMS,
		RedirectDelayMS:   defaultRedirectDelayMS,
		MissingJobDelayMS: defaultMissingJobDelayMS,
		PlaceholderETASec: defaultPlaceholderETASec,
		RequestTimeoutSec: defaultRequestTimeoutSec,
		Locale:            defaultLocale,
		LogMode:           defaultLogMode,
	}
}

// DefaultPath returns the settings file location under the user's home.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".spotdiff-monitor", "settings.json")
}

// Normalize trims user input and back-fills unset values with defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.ServerURL = strings.TrimRight(strings.TrimSpace(settings.ServerURL), "/")
	if settings.ServerURL == "" {
		settings.ServerURL = defaults.ServerURL
	}
	if settings.PollIntervalMS <= 0 {
		settings.PollIntervalMS = defaults.PollIntervalMS
	}
	if settings.RedirectDelayMS <= 0 {
		settings.RedirectDelayMS = defaults.RedirectDelayMS
	}
	if settings.MissingJobDelayMS <= 0 {
		settings.MissingJobDelayMS = defaults.MissingJobDelayMS
	}
	if settings.PlaceholderETASec <= 0 {
		settings.PlaceholderETASec = defaults.PlaceholderETASec
	}
	if settings.RequestTimeoutSec <= 0 {
		settings.RequestTimeoutSec = defaults.RequestTimeoutSec
	}
	settings.Locale = strings.ToLower(strings.TrimSpace(settings.Locale))
	if settings.Locale == "" {
		settings.Locale = defaults.Locale
	}
	settings.LogMode = strings.TrimSpace(settings.LogMode)
	if settings.LogMode == "" {
		settings.LogMode = defaults.LogMode
	}
	return settings
}

// RequestTimeout returns the per-request HTTP timeout.
func RequestTimeout(settings domain.Settings) time.Duration {
	return time.Duration(settings.RequestTimeoutSec) * time.Second
}

// PollerConfig converts persisted settings into poller timing and messages.
func PollerConfig(settings domain.Settings) poller.Config {
	return poller.Config{
		Interval:        time.Duration(settings.PollIntervalMS) * time.Millisecond,
		RedirectDelay:   time.Duration(settings.RedirectDelayMS) * time.Millisecond,
		MissingJobDelay: time.Duration(settings.MissingJobDelayMS) * time.Millisecond,
		PlaceholderETA:  time.Duration(settings.PlaceholderETASec) * time.Second,
		Messages:        poller.MessagesFor(settings.Locale),
	}
}
