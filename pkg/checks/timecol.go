package checks

import (
	"fmt"
	"time"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// TimeColumn validates the caller-supplied time column: existence,
// parseability, and observed range.
type TimeColumn struct{}

func (d *TimeColumn) Name() string { return "time_column" }

func (d *TimeColumn) Detect(ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	if opts.TimeColumn == "" {
		return nil, nil
	}
	if !ds.Has(opts.TimeColumn) {
		return []risk.Item{{
			Name:     "Time column missing",
			Severity: risk.SeverityHigh,
			Detail:   fmt.Sprintf("Time column %q does not exist in the dataset.", opts.TimeColumn),
			Evidence: risk.EmptyEvidence{},
		}}, nil
	}

	times, valid, invalid := ds.ParseTimes(opts.TimeColumn)

	var items []risk.Item
	if invalid > 0 {
		items = append(items, risk.Item{
			Name:     "Time parse errors",
			Severity: risk.SeverityMedium,
			Detail:   fmt.Sprintf("%q has %d values that do not parse as timestamps.", opts.TimeColumn, invalid),
			Evidence: risk.TimeEvidence{Invalid: invalid},
		})
	}

	var min, max time.Time
	any := false
	for i, ok := range valid {
		if !ok {
			continue
		}
		if !any || times[i].Before(min) {
			min = times[i]
		}
		if !any || times[i].After(max) {
			max = times[i]
		}
		any = true
	}
	if any {
		items = append(items, risk.Item{
			Name:     "Time-awareness suggestion",
			Severity: risk.SeverityLow,
			Detail:   "Use time-aware splits and verify feature windows are consistent with this range.",
			Evidence: risk.TimeEvidence{Min: min.Format(time.RFC3339), Max: max.Format(time.RFC3339)},
		})
	}
	return items, nil
}
