package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"voltammetry-lab/internal/domain"
)

// ErrMalformedCSV is returned when a waveform file cannot be parsed.
var ErrMalformedCSV = errors.New("malformed waveform csv")

// column name fragments recognised in a header row
var (
	voltageNames = []string{"volt", "potential", "e/v", "we(1).potential"}
	currentNames = []string{"current", "i/", "(ua)", "(µa)", "ampere"}
)

// LoadCSVFile reads a voltage,current waveform from a file.
func LoadCSVFile(path string) ([]domain.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open waveform: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads a two-column waveform. A first row that does not parse as
// numbers is treated as a header and used to locate the voltage and current
// columns; without a header the first two columns are used. Lines starting
// with '#' are skipped.
func LoadCSV(r io.Reader) ([]domain.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	vCol, iCol := 0, 1
	var out []domain.Sample
	first := true

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if !numericRow(rec) {
				vCol, iCol, err = headerColumns(rec)
				if err != nil {
					return nil, err
				}
				continue
			}
		}
		if blankRow(rec) {
			continue
		}
		if len(rec) <= vCol || len(rec) <= iCol {
			return nil, fmt.Errorf("%w: line %d has %d columns", ErrMalformedCSV, line, len(rec))
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(rec[vCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d voltage: %v", ErrMalformedCSV, line, err)
		}
		i, err := strconv.ParseFloat(strings.TrimSpace(rec[iCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d current: %v", ErrMalformedCSV, line, err)
		}
		out = append(out, domain.Sample{Voltage: v, Current: i})
	}
	return out, nil
}

func numericRow(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	for _, f := range rec[:2] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return false
		}
	}
	return true
}

func blankRow(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func headerColumns(rec []string) (int, int, error) {
	vCol, iCol := -1, -1
	for idx, name := range rec {
		n := strings.ToLower(strings.TrimSpace(name))
		switch {
		case vCol < 0 && containsAny(n, voltageNames):
			vCol = idx
		case iCol < 0 && containsAny(n, currentNames):
			iCol = idx
		}
	}
	if vCol < 0 && iCol < 0 && len(rec) >= 2 {
		return 0, 1, nil
	}
	if vCol < 0 || iCol < 0 {
		return 0, 0, fmt.Errorf("%w: header %v has no voltage/current columns", ErrMalformedCSV, rec)
	}
	return vCol, iCol, nil
}

func containsAny(s string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
