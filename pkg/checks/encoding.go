package checks

import (
	"fmt"
	"math"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// EncodingLeakage looks for supervised transforms computed without time or
// fold isolation: target-encoding / WOE style columns, and full-dataset
// window aggregates when a time column is available.
type EncodingLeakage struct{}

func (d *EncodingLeakage) Name() string { return "target_encoding" }

func (d *EncodingLeakage) Detect(ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	y, ok := ds.Numeric(target)
	if !ok {
		return nil, fmt.Errorf("target column %q is not numeric", target)
	}
	targetCol, _ := ds.Col(target)
	targetMean := targetCol.Mean()

	var items []risk.Item

	encodingSuspects := map[string]risk.EncodingStats{}
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
		if col.IsConstant() {
			continue
		}
		lo, hi := bounds(x)
		mean := col.Mean()
		inUnitRange := lo >= 0 && hi <= 1
		nearTargetMean := math.Abs(mean-targetMean) < encodingMeanTolerance
		if !inUnitRange && !nearTargetMean {
			continue
		}
		corr, ok := correlation(x, y)
		if !ok || corr < encodingCorrThreshold {
			continue
		}
		reason := "mean within 0.1 of the target mean"
		if inUnitRange {
			reason = "value range within [0,1]"
		}
		encodingSuspects[name] = risk.EncodingStats{
			Correlation: corr,
			Mean:        mean,
			Reason:      reason,
		}
		if corr > maxScore {
			maxScore = corr
		}
	}
	if len(encodingSuspects) > 0 {
		items = append(items, risk.Item{
			Name:      "Target encoding leakage risk",
			Severity:  risk.SeverityHigh,
			Detail:    "Columns look like target encodings (or WOE transforms) correlated with the target; recalculate them inside the CV folds.",
			Evidence:  risk.EncodingEvidence{SuspiciousColumns: encodingSuspects},
			LeakScore: math.Min(maxScore, 1.0),
		})
	}

	if hasTimeStructure(ds, opts.TimeColumn) {
		windowSuspects := map[string]risk.EncodingStats{}
		maxScore = 0.0
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
			if cov >= windowCoVThreshold {
				continue
			}
			corr, ok := correlation(x, y)
			if !ok || corr < windowCorrThreshold {
				continue
			}
			windowSuspects[name] = risk.EncodingStats{
				Correlation: corr,
				Mean:        mean,
				CoV:         cov,
				Reason:      "near-constant value with target correlation; suspected full-dataset aggregate",
				Hint:        "recompute as a trailing-window statistic ordered by " + opts.TimeColumn,
			}
			if corr > maxScore {
				maxScore = corr
			}
		}
		if len(windowSuspects) > 0 {
			items = append(items, risk.Item{
				Name:      "Time window leakage",
				Severity:  risk.SeverityHigh,
				Detail:    "Columns behave like aggregates computed over the whole dataset rather than a causally ordered window.",
				Evidence:  risk.EncodingEvidence{SuspiciousColumns: windowSuspects},
				LeakScore: math.Min(maxScore, 1.0),
			})
		}
	}
	return items, nil
}

func bounds(x []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range x {
		if !finite(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
