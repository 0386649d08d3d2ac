package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Calibration Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Registry version: %d | Conditions: %d | Default model: %s\n\n",
		r.Stats.Version, r.Stats.Conditions, yesNo(r.Default != nil)))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Measurements | %d |\n", r.DataSummary.TotalMeasurements))
	sb.WriteString(fmt.Sprintf("| Source Measurements | %d |\n", r.DataSummary.SourceMeasurements))
	sb.WriteString(fmt.Sprintf("| Reference Measurements | %d |\n", r.DataSummary.ReferenceMeasurements))
	if r.DataSummary.TotalMeasurements > 0 {
		sb.WriteString(fmt.Sprintf("| First Measurement | %s |\n", r.DataSummary.DateRangeStart.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Last Measurement | %s |\n", r.DataSummary.DateRangeEnd.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	if len(r.DataSummary.Conditions) > 0 {
		sb.WriteString("| Condition | Source | Reference |\n")
		sb.WriteString("|-----------|--------|-----------|\n")
		for _, c := range r.DataSummary.Conditions {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", c.Condition, c.Source, c.Reference))
		}
		sb.WriteString("\n")
	}

	// Models
	sb.WriteString("## Calibration Models\n\n")
	if len(r.Models) > 0 || r.Default != nil {
		sb.WriteString("| Condition | Gain | Offset | R² | Tier | Points | RSE | Version |\n")
		sb.WriteString("|-----------|------|--------|----|------|--------|-----|---------|\n")
		rows := r.Models
		if r.Default != nil {
			rows = append(append([]ModelRow{}, rows...), *r.Default)
		}
		for _, m := range rows {
			sb.WriteString(fmt.Sprintf("| %s | %.6g | %.6g | %.4f | %s | %d | %.4g | %d |\n",
				m.Condition, m.GainFactor, m.Offset, m.RSquared, m.Tier,
				m.DataPoints, m.ResidualStdError, m.Version))
		}
		sb.WriteString("\n")

		s := r.Stats
		sb.WriteString(fmt.Sprintf("Tiers: high %d, medium %d, low %d. ",
			s.TierCounts["high"], s.TierCounts["medium"], s.TierCounts["low"]))
		sb.WriteString(fmt.Sprintf("Mean gain %.6g (sd %.4g), R² %.4f..%.4f.\n",
			s.MeanGain, s.StdDevGain, s.MinRSquared, s.MaxRSquared))
	} else {
		sb.WriteString("No calibration models trained.\n")
	}
	sb.WriteString("\n")

	// Training
	sb.WriteString("## Last Training Run\n\n")
	if r.LastRun != nil {
		run := r.LastRun
		sb.WriteString(fmt.Sprintf("Run `%s` (%d total): %s, %d accepted, %d rejected, %s.\n\n",
			run.RunID, r.TrainingRuns, run.Status, run.Accepted, run.Rejected,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)))
		if len(run.Outcomes) > 0 {
			sb.WriteString("| Condition | Result | R² | Points | Reason |\n")
			sb.WriteString("|-----------|--------|----|--------|--------|\n")
			for _, o := range run.Outcomes {
				result := "REJECTED"
				if o.Accepted {
					result = "ACCEPTED"
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %d | %s |\n",
					o.ConditionKey, result, o.RSquared, o.Points, o.Reason))
			}
		}
	} else {
		sb.WriteString("No training runs recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
