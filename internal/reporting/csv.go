package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders the served models as CSV string, default model last.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("condition,gain_factor,offset,r_squared,confidence_tier,data_points,")
	sb.WriteString("residual_std_error,version,trained_at\n")

	rows := r.Models
	if r.Default != nil {
		rows = append(append([]ModelRow{}, rows...), *r.Default)
	}

	// Rows
	for _, m := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.9g,%.9g,%.6f,%s,%d,%.9g,%d,%s\n",
			m.Condition,
			m.GainFactor,
			m.Offset,
			m.RSquared,
			m.Tier,
			m.DataPoints,
			m.ResidualStdError,
			m.Version,
			m.TrainedAt.UTC().Format(time.RFC3339),
		))
	}

	return sb.String()
}
