package features

import "fmt"

// Window is a closed voltage interval.
type Window struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Contains reports whether v lies in the window.
func (w Window) Contains(v float64) bool {
	return v >= w.Min && v <= w.Max
}

// Distance returns how far v lies outside the window, 0 inside.
func (w Window) Distance(v float64) float64 {
	switch {
	case v < w.Min:
		return w.Min - v
	case v > w.Max:
		return v - w.Max
	}
	return 0
}

// AnalyteWindows holds expected peak positions for one redox couple.
type AnalyteWindows struct {
	Oxidation Window `mapstructure:"oxidation" json:"oxidation"`
	Reduction Window `mapstructure:"reduction" json:"reduction"`
}

// Config tunes the feature extractor.
type Config struct {
	SmoothingSigma  float64                   // samples, applied before measuring
	ApexSearch      int                       // apex re-centering radius, samples
	MinWindow       int                       // minimum asymmetry half-window, samples
	NoiseWindow     int                       // length of each flanking noise window
	NoiseOffsetFWHM float64                   // flank windows start this many FWHMs from the apex
	AreaHalfWidth   float64                   // integration half-window in FWHMs
	Epsilon         float64                   // SNR denominator floor
	PositionFalloff float64                   // V, Gaussian sigma outside the expected window
	Expected        AnalyteWindows            // used when no analyte is named
	Analytes        map[string]AnalyteWindows // per-analyte overrides
}

// DefaultConfig returns defaults tuned for the ferri/ferrocyanide couple
// against an Ag/AgCl reference.
func DefaultConfig() Config {
	return Config{
		SmoothingSigma:  1.5,
		ApexSearch:      3,
		MinWindow:       5,
		NoiseWindow:     20,
		NoiseOffsetFWHM: 2,
		AreaHalfWidth:   1,
		Epsilon:         1e-9,
		PositionFalloff: 0.1,
		Expected: AnalyteWindows{
			Oxidation: Window{Min: 0.10, Max: 0.40},
			Reduction: Window{Min: -0.05, Max: 0.25},
		},
	}
}

// Validate checks the config for values the extractor cannot work with.
func (c Config) Validate() error {
	if c.SmoothingSigma < 0 {
		return fmt.Errorf("features: smoothing sigma must be >= 0")
	}
	if c.MinWindow < 1 || c.NoiseWindow < 3 {
		return fmt.Errorf("features: min window must be >= 1 and noise window >= 3")
	}
	if c.PositionFalloff <= 0 {
		return fmt.Errorf("features: position falloff must be > 0")
	}
	for name, a := range c.Analytes {
		if a.Oxidation.Min > a.Oxidation.Max || a.Reduction.Min > a.Reduction.Max {
			return fmt.Errorf("features: analyte %q has an inverted window", name)
		}
	}
	return nil
}

// windowsFor returns the expected windows for analyte, or the defaults.
func (c Config) windowsFor(analyte string) AnalyteWindows {
	if a, ok := c.Analytes[analyte]; ok && analyte != "" {
		return a
	}
	return c.Expected
}
