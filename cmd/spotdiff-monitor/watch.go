package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"spotdiff-monitor/internal/config"
	"spotdiff-monitor/internal/domain"
	"spotdiff-monitor/internal/logger"
	"spotdiff-monitor/internal/poller"
	"spotdiff-monitor/internal/status"
	"spotdiff-monitor/internal/terminal"
)

var (
	errJobFailed  = errors.New("job failed")
	errMissingJob = errors.New("no job id: pass one as an argument or set " + jobIDEnv)
)

func newWatchCmd() *cobra.Command {
	var skipResult bool

	cmd := &cobra.Command{
		Use:   "watch [job-id]",
		Short: "Follow a job until it completes or fails",
		Long: `Poll the status endpoint of a puzzle job and show per-stage progress.

The job id is taken from the argument or, when omitted, from the
SPOTDIFF_JOB_ID environment variable set by the submission flow.

Examples:
  spotdiff-monitor watch job_1a2b3c4d5e6f
  SPOTDIFF_JOB_ID=job_1a2b3c4d5e6f spotdiff-monitor watch --locale en`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			jobID := os.Getenv(jobIDEnv)
			if len(args) == 1 {
				jobID = args[0]
			}
			jobID = strings.TrimSpace(jobID)

			log, err := logger.New(settings.LogMode)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer log.Sync()

			client := status.NewClient(settings.ServerURL, config.RequestTimeout(settings))
			renderer := terminal.NewRenderer(cmd.OutOrStdout(), noColor)

			p, err := poller.New(config.PollerConfig(settings), client, renderer, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if jobID != "" {
				dimColor.Fprintf(cmd.OutOrStdout(), "Watching %s on %s\n", jobID, settings.ServerURL)
			}
			if err := p.Start(ctx, jobID); err != nil {
				return err
			}
			<-p.Done()

			switch p.State() {
			case domain.MonitorStateSucceeded:
				if skipResult {
					return nil
				}
				return printResult(cmd.Context(), client, renderer, settings, jobID)
			case domain.MonitorStateFailed:
				return errJobFailed
			case domain.MonitorStateIdle:
				return errMissingJob
			default:
				return ctx.Err()
			}
		},
	}

	cmd.Flags().BoolVar(&skipResult, "no-result", false, "Do not fetch the result summary after completion")
	return cmd
}

// printResult hands off to the result view: a summary on the terminal.
func printResult(ctx context.Context, client *status.Client, renderer *terminal.Renderer, settings domain.Settings, jobID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := client.FetchResult(ctx, jobID)
	if err != nil {
		return fmt.Errorf("job completed but the result could not be loaded: %w", err)
	}
	renderer.Result(result, settings.ServerURL)
	return nil
}
