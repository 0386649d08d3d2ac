package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"voltammetry-lab/internal/reporting"
)

var (
	reportFormat string
	reportOutput string
)

// NewReportCommand .
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		GroupID: gCalibration,
		Short:   "Write a calibration report",
		Long:    `Summarize stored measurements, calibration models and the last training run as markdown or CSV.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var render func(*reporting.Report) string
			switch reportFormat {
			case "markdown", "md":
				render = reporting.RenderMarkdown
			case "csv":
				render = reporting.RenderCSV
			default:
				return fmt.Errorf("unknown report format %q (markdown, csv)", reportFormat)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := reporting.NewGenerator(a.measurements, a.models, a.runs).Generate(ctx)
			if err != nil {
				return fmt.Errorf("generate report: %w", err)
			}
			out := render(r)

			if reportOutput == "" || reportOutput == "-" {
				fmt.Print(out)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(reportOutput), 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			if err := os.WriteFile(reportOutput, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			logger.WithField("path", reportOutput).Info("report written")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&reportFormat, "format", "f", "markdown", "report format (markdown, csv)")
	f.StringVarP(&reportOutput, "output", "o", "", "output file, stdout if empty")

	return cmd
}
