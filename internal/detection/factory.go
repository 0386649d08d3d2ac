package detection

import (
	"errors"
	"fmt"
	"strings"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/features"
)

// Factory errors
var (
	ErrUnknownDetector = errors.New("unknown detector")
	ErrNoDetectors     = errors.New("no detectors selected")
)

// AllDetectors is the name that selects every strategy.
const AllDetectors = "all"

// FromConfig builds detectors from names. An empty list or "all" selects
// every strategy. Duplicates are ignored; order follows the input.
func FromConfig(names []string, cfg Config, ex *features.Extractor) ([]Detector, error) {
	if len(names) == 0 {
		names = []string{AllDetectors}
	}

	var out []Detector
	seen := make(map[domain.DetectorName]bool)
	add := func(d Detector) {
		if !seen[d.Name()] {
			seen[d.Name()] = true
			out = append(out, d)
		}
	}

	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch domain.DetectorName(name) {
		case domain.DetectorDeterministic:
			add(NewDeterministic(cfg))
		case domain.DetectorStatistical:
			add(NewStatistical(cfg))
		case domain.DetectorFeatureEnhanced:
			if ex == nil {
				return nil, fmt.Errorf("%s requires a feature extractor", name)
			}
			add(NewFeatureEnhanced(cfg, ex))
		default:
			if name != AllDetectors {
				return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, raw)
			}
			add(NewDeterministic(cfg))
			add(NewStatistical(cfg))
			if ex != nil {
				add(NewFeatureEnhanced(cfg, ex))
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoDetectors
	}
	return out, nil
}

// Names returns the selectable detector names, strongest first.
func Names() []string {
	return []string{
		string(domain.DetectorFeatureEnhanced),
		string(domain.DetectorStatistical),
		string(domain.DetectorDeterministic),
	}
}

// IsKnown reports whether name selects a detector in FromConfig.
func IsKnown(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == AllDetectors {
		return true
	}
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}
