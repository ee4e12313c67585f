package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spotdiff-monitor/internal/config"
	"spotdiff-monitor/internal/domain"
)

// jobIDEnv is the session-scoped job id handed over by the submission flow.
const jobIDEnv = "SPOTDIFF_JOB_ID"

var (
	configPath     string
	serverURL      string
	pollIntervalMS int
	locale         string
	noColor        bool
	dimColor       = color.New(color.Faint)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "spotdiff-monitor",
		Short:         "Watch spot-the-difference puzzle jobs",
		Long:          `spotdiff-monitor follows a puzzle generation job until it completes or fails.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Settings file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Puzzle service URL (overrides settings)")
	rootCmd.PersistentFlags().IntVar(&pollIntervalMS, "interval", 0, "Poll interval in milliseconds (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "", "Message locale: ja or en (overrides settings)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newWatchCmd(),
		newResultCmd(),
		newDoctorCmd(),
	)

	return rootCmd
}

// loadSettings reads the settings file and applies flag overrides.
func loadSettings(cmd *cobra.Command) (domain.Settings, error) {
	settings, err := config.NewJSONStore(configPath).Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		settings.ServerURL = serverURL
	}
	if flags.Changed("interval") {
		settings.PollIntervalMS = pollIntervalMS
	}
	if flags.Changed("locale") {
		settings.Locale = locale
	}
	return config.Normalize(settings), nil
}
