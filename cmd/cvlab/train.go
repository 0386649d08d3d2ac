package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/ingestion"
)

var (
	trainImport     csvImport
	trainSources    []string
	trainReferences []string
)

// NewTrainCommand .
func NewTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "train",
		GroupID: gCalibration,
		Short:   "Fit calibration models from stored measurements",
		Long: `Pair every stored source measurement with every reference measurement
of the same condition, fit one linear model per condition and rebuild the
default model. --source and --reference import CSV sweeps first, which is
the only way to train against the memory backend.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			an, err := a.analyzer()
			if err != nil {
				return err
			}

			if len(trainSources)+len(trainReferences) > 0 {
				if !cmd.Flags().Changed("concentration") {
					return fmt.Errorf("--concentration is required with --source/--reference")
				}
				src, err := trainImport.frames(trainSources, domain.InstrumentSource)
				if err != nil {
					return err
				}
				ref, err := trainImport.frames(trainReferences, domain.InstrumentReference)
				if err != nil {
					return err
				}
				if _, err := runIngestion(ctx, a, &ingestion.SliceSource{Frames: append(src, ref...)}, nil); err != nil {
					return err
				}
			}

			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			tr, err := a.trainer(reg)
			if err != nil {
				return err
			}

			agg, err := a.dataset(an).Pool(ctx)
			if err != nil {
				return err
			}
			run, err := tr.Run(ctx, agg.Pools())
			if run != nil {
				printRun(run)
			}
			if err != nil {
				return err
			}
			if def := reg.Snapshot().Default; def != nil {
				fmt.Printf("default model: gain %.6g, offset %.6g, r² %.4f %s\n",
					def.GainFactor, def.Offset, def.RSquared, tierString(def.Tier))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&trainSources, "source", nil, "source instrument CSV files to import before training")
	f.StringSliceVar(&trainReferences, "reference", nil, "reference instrument CSV files to import before training")
	f.Float64Var(&trainImport.concentration, "concentration", 0, "analyte concentration of imported files in mM")
	f.Float64Var(&trainImport.scanRate, "scan-rate", 100, "scan rate of imported files in mV/s")
	f.StringVar(&trainImport.unit, "unit", "", "current unit of imported files (A, mA, uA, nA)")

	return cmd
}

func printRun(run *domain.TrainingRun) {
	fmt.Printf("training run %s: %s (%d accepted, %d rejected)\n",
		run.RunID, bold("%s", run.Status), run.Accepted, run.Rejected)
	for _, o := range run.Outcomes {
		if o.Accepted {
			fmt.Printf("  %s %-14s r² %.4f  points %d\n", okMark(), o.ConditionKey, o.RSquared, o.Points)
			continue
		}
		fmt.Printf("  %s %-14s points %d  %s\n", failMark(), o.ConditionKey, o.Points, o.Reason)
	}
}

func tierString(t domain.Tier) string {
	switch t {
	case domain.TierHigh:
		return color.New(color.Bold, color.FgGreen).Sprint(t)
	case domain.TierMedium:
		return color.YellowString(string(t))
	default:
		return color.RedString(string(t))
	}
}
