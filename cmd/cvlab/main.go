// Command cvlab detects voltammetry peaks and calibrates a low-cost
// potentiostat against a reference instrument.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"voltammetry-lab/internal/config"
)

var (
	configPath = ""
	logLevel   = ""

	cfg    *config.Config
	logger *logrus.Logger
)

var (
	gAnalysis     = "Analysis:"
	gCalibration  = "Calibration:"
	gService      = "Service:"
	commandGroups = []string{gAnalysis, gCalibration, gService}
)

func setup() error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	l, err := c.Logging.NewLogger()
	if err != nil {
		return err
	}
	l.SetOutput(os.Stderr)
	cfg, logger = c, l
	return nil
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCommand builds the root command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cvlab",
		Short: "cvlab detects cyclic voltammetry peaks and calibrates instruments",
		Long: `cvlab detects oxidation and reduction peaks in cyclic voltammetry sweeps
and learns per-condition linear calibrations that map a low-cost potentiostat
onto a reference instrument.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := setup(); err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&configPath, "config", "c", "", "config file path (yaml or json)")
	globalFlags.StringVarP(&logLevel, "log-level", "l", "", "override logging.level (trace, debug, info, warn, error)")

	for _, g := range commandGroups {
		cmd.AddGroup(&cobra.Group{ID: g, Title: g})
	}

	cmd.AddCommand(
		NewDetectCommand(),
		NewIngestCommand(),
		NewTrainCommand(),
		NewCalibrateCommand(),
		NewReportCommand(),
		NewServeCommand(),
	)
	return cmd
}
