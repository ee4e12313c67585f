package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spotdiff-monitor/internal/diagnostics"
	"spotdiff-monitor/internal/domain"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check settings and the status service connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			report := diagnostics.NewChecker().Run(cmd.Context(), settings)
			out := cmd.OutOrStdout()
			for _, item := range report.Items {
				switch item.Status {
				case domain.DiagnosticStatusPass:
					color.New(color.FgGreen).Fprintf(out, "✓ %-16s %s\n", item.Name, item.Message)
				case domain.DiagnosticStatusWarn:
					color.New(color.FgYellow).Fprintf(out, "! %-16s %s\n", item.Name, item.Message)
				default:
					color.New(color.FgRed).Fprintf(out, "✗ %-16s %s\n", item.Name, item.Message)
				}
				if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
					dimColor.Fprintf(out, "  %s\n", item.Hint)
				}
			}

			if report.HasFailures {
				return errors.New("diagnostics found problems")
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
}
