package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"spotdiff-monitor/internal/config"
	"spotdiff-monitor/internal/status"
	"spotdiff-monitor/internal/terminal"
)

func newResultCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Show the result of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			client := status.NewClient(settings.ServerURL, config.RequestTimeout(settings))
			result, err := client.FetchResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			terminal.NewRenderer(cmd.OutOrStdout(), noColor).Result(result, settings.ServerURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw result as JSON")
	return cmd
}
