package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/ingestion"
)

var (
	calRaw      float64
	calCurve    string
	calConc     float64
	calScanRate float64
	calShowInfo bool
	calUnit     string
)

// NewCalibrateCommand .
func NewCalibrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibrate",
		GroupID: gCalibration,
		Short:   "Apply a stored calibration to a current or a curve",
		Long: `Apply the calibration model of the given condition, or the default
model when the condition has none, to --raw or to every point of --curve.
Inputs are taken as µA unless --unit says otherwise; results are in µA.
--info lists the stored models instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			sel := calibration.NewSelector(reg, false)

			if calShowInfo {
				printInfo(sel.Info())
				return nil
			}

			var req calibration.Request
			if cmd.Flags().Changed("raw") {
				req.RawCurrent = &calRaw
			}
			if calCurve != "" {
				samples, err := ingestion.LoadCSVFile(calCurve)
				if err != nil {
					return err
				}
				req.Curve = make([]domain.CurvePoint, len(samples))
				for i, s := range samples {
					req.Curve[i] = domain.CurvePoint{s.Voltage, s.Current}
				}
			}
			if cmd.Flags().Changed("concentration") {
				req.Concentration = &calConc
			}
			if cmd.Flags().Changed("scan-rate") {
				req.ScanRate = &calScanRate
			}

			if calUnit != "" {
				unit, ok := domain.ParseUnitHint(calUnit)
				if !ok {
					return fmt.Errorf("unknown unit %q", calUnit)
				}
				an, err := a.analyzer()
				if err != nil {
					return err
				}
				scale, _ := an.ScaleOf(unit, req.Currents())
				req = req.Scaled(scale)
			}

			res, err := sel.Calibrate(req)
			if err != nil {
				return err
			}

			fmt.Printf("method %s, gain %.6g, offset %.6g, r² %.4f %s\n",
				res.Method, res.GainFactor, res.Offset, res.RSquared, tierString(res.Tier))
			if res.Value != nil {
				fmt.Printf("calibrated current: %s\n", bold("%.6g", *res.Value))
				return nil
			}
			fmt.Println("voltage,current")
			for _, p := range res.Curve {
				fmt.Printf("%g,%g\n", p[0], p[1])
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&calRaw, "raw", 0, "raw source current to calibrate")
	f.StringVar(&calCurve, "curve", "", "CSV curve to calibrate")
	f.Float64Var(&calConc, "concentration", 0, "condition concentration in mM")
	f.Float64Var(&calScanRate, "scan-rate", 0, "condition scan rate in mV/s")
	f.BoolVar(&calShowInfo, "info", false, "list stored calibration models")
	f.StringVar(&calUnit, "unit", "", "current unit of the input (A, mA, uA, nA, auto); empty means uA")

	return cmd
}

func printInfo(info calibration.Info) {
	if len(info.Available) == 0 && info.Default == nil {
		fmt.Println("no calibration models trained")
		return
	}
	fmt.Printf("%-14s %12s %10s %8s %8s %8s\n", "CONDITION", "GAIN", "OFFSET", "R²", "POINTS", "TIER")
	for _, key := range sortedKeys(info.Available) {
		m := info.Available[key]
		fmt.Printf("%-14s %12.6g %10.4g %8.4f %8d %s\n", key, m.GainFactor, m.Offset, m.RSquared, m.DataPoints, tierString(m.Tier))
	}
	if d := info.Default; d != nil {
		fmt.Printf("%-14s %12.6g %10.4g %8.4f %8d %s\n", "default", d.GainFactor, d.Offset, d.RSquared, d.DataPoints, tierString(d.Tier))
	}
}
