package checks

import (
	"fmt"
	"math"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// StatisticalPreview flags almost-flat numeric columns that still correlate
// with the target, a signature of precomputed aggregate statistics. The
// evidence is provisional; the time-series simulator is the confirmation
// step.
type StatisticalPreview struct{}

func (d *StatisticalPreview) Name() string { return "statistical_preview" }

func (d *StatisticalPreview) Detect(ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	y, ok := ds.Numeric(target)
	if !ok {
		return nil, fmt.Errorf("target column %q is not numeric", target)
	}

	suspects := map[string]risk.AggregateStats{}
	maxScore := 0.0
	for _, name := range ds.Names() {
		if name == target || name == opts.TimeColumn {
			continue
		}
		x, ok := ds.Numeric(name)
		if !ok {
			continue
		}
		col, _ := ds.Col(name)
		mean := col.Mean()
		if mean == 0 || math.IsNaN(mean) {
			continue
		}
		cov := col.Std() / math.Abs(mean)
		if cov == 0 || cov >= statCoVThreshold {
			continue
		}
		corr, ok := correlation(x, y)
		if !ok || math.Abs(corr) < statCorrThreshold {
			continue
		}
		suspects[name] = risk.AggregateStats{Correlation: corr, CoV: cov}
		if s := math.Abs(corr); s > maxScore {
			maxScore = s
		}
	}
	if len(suspects) == 0 {
		return nil, nil
	}
	return []risk.Item{{
		Name:      "Statistical leakage (preview)",
		Severity:  risk.SeverityMedium,
		Detail:    "Low-variation columns correlated with the target may be precomputed aggregates; confirm with a time-aware simulation.",
		Evidence:  risk.StatisticalEvidence{SuspiciousColumns: suspects, Provisional: true},
		LeakScore: math.Min(maxScore, 1.0),
	}}, nil
}
