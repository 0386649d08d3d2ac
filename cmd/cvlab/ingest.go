package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/ingestion"
)

// csvImport describes how CSV sweeps map onto measurements.
type csvImport struct {
	instrument    string
	concentration float64
	scanRate      float64
	unit          string
}

func (ci *csvImport) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&ci.instrument, "instrument", string(domain.InstrumentSource), "instrument of the CSV files (source, reference)")
	f.Float64Var(&ci.concentration, "concentration", 0, "analyte concentration of the CSV files in mM")
	f.Float64Var(&ci.scanRate, "scan-rate", 100, "scan rate of the CSV files in mV/s")
	f.StringVar(&ci.unit, "unit", "", "current unit of the CSV files (A, mA, uA, nA)")
}

// frames loads each file as one frame labelled by its base name.
func (ci *csvImport) frames(files []string, inst domain.Instrument) ([]*ingestion.Frame, error) {
	unit, ok := domain.ParseUnitHint(ci.unit)
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", ci.unit)
	}
	cond := domain.Condition{Concentration: ci.concentration, ScanRate: ci.scanRate}

	out := make([]*ingestion.Frame, 0, len(files))
	for _, path := range files {
		samples, err := ingestion.LoadCSVFile(path)
		if err != nil {
			return nil, err
		}
		label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		out = append(out, ingestion.NewFrame(inst, label, cond, unit, samples))
	}
	return out, nil
}

func runIngestion(ctx context.Context, a *app, src ingestion.FrameSource, an *analysis.Analyzer) (ingestion.Stats, error) {
	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Measurements: a.measurements,
		Waveforms:    a.waveforms,
		Analyzer:     an,
		Logger:       logger,
	})
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:  src,
		Manager: mgr,
		Logger:  logger,
		OnFrame: func(ing *ingestion.Ingested) {
			fields := logrus.Fields{
				"measurement_id": ing.Measurement.ID,
				"instrument":     ing.Measurement.Instrument,
				"condition":      ing.Measurement.Condition.Key(),
			}
			if ing.Result != nil {
				fields["peaks"] = len(ing.Result.EnabledPeaks())
			}
			logger.WithFields(fields).Info("measurement stored")
		},
	})
	return runner.Run(ctx)
}

var ingestImport csvImport

// NewIngestCommand .
func NewIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ingest [file.csv ...]",
		GroupID: gService,
		Short:   "Store sweeps from CSV files or the potentiostat bridge",
		Long: `Store sweeps as measurements. With CSV files every file becomes one
measurement; without files frames are read from the websocket bridge at
ingestion.ws_url until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && !cmd.Flags().Changed("concentration") {
				return fmt.Errorf("--concentration is required with CSV files")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var an *analysis.Analyzer
			if cfg.Ingestion.Analyze {
				if an, err = a.analyzer(); err != nil {
					return err
				}
			}

			var src ingestion.FrameSource
			if len(args) > 0 {
				frames, err := ingestImport.frames(args, domain.Instrument(ingestImport.instrument))
				if err != nil {
					return err
				}
				src = &ingestion.SliceSource{Frames: frames}
			} else {
				src = bridgeSource()
			}

			stats, err := runIngestion(ctx, a, src, an)
			logger.WithFields(logrus.Fields{
				"received":   stats.Received,
				"stored":     stats.Stored,
				"duplicates": stats.Duplicates,
				"rejected":   stats.Rejected,
				"failed":     stats.Failed,
			}).Info("ingestion finished")
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	ingestImport.addFlags(cmd)
	return cmd
}
