package checks

import (
	"fmt"
	"math"
	"sort"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// TargetLeakage flags columns that all but restate the target: numeric
// columns with near-perfect correlation or fit, and categorical columns
// containing near-pure categories.
type TargetLeakage struct{}

func (d *TargetLeakage) Name() string { return "target_leakage" }

func (d *TargetLeakage) Detect(ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	y, ok := ds.Numeric(target)
	if !ok {
		return nil, fmt.Errorf("target column %q is not numeric", target)
	}

	var items []risk.Item

	suspicious := map[string]float64{}
	for _, name := range ds.Names() {
		if name == target {
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
		if corr, ok := correlation(x, y); ok && math.Abs(corr) >= highCorrThreshold {
			suspicious[name] = corr
		}
	}
	// Second pass: single-variable fit quality catches relationships the raw
	// correlation threshold just misses.
	for _, name := range ds.Names() {
		if name == target {
			continue
		}
		if _, seen := suspicious[name]; seen {
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
		if r2, ok := rSquared(x, y); ok && r2 >= highCorrThreshold {
			suspicious[name] = r2
		}
	}
	if len(suspicious) > 0 {
		score := 0.0
		for _, v := range suspicious {
			if s := math.Min(math.Abs(v), 1.0); s > score {
				score = s
			}
		}
		items = append(items, risk.Item{
			Name:      "Target leakage (high correlation)",
			Severity:  risk.SeverityHigh,
			Detail:    "Columns are near-perfectly correlated with the target (|corr| or R² ≥ 0.98); they likely leak the label.",
			Evidence:  risk.CorrelationEvidence{Columns: suspicious},
			LeakScore: score,
		})
	}

	if hits := d.categoricalPurity(ds, target, y); len(hits) > 0 {
		items = append(items, risk.Item{
			Name:     "Target leakage (categorical purity)",
			Severity: risk.SeverityMedium,
			Detail:   "Some categories predict the target almost perfectly; if they come from aggregated statistics they leak.",
			Evidence: risk.PurityEvidence{Columns: hits},
		})
	}
	return items, nil
}

func (d *TargetLeakage) categoricalPurity(ds *dataset.Dataset, target string, y []float64) map[string][]risk.CategoryPurity {
	n := ds.NRows()
	gate := purityCardinalityFloor
	if byShare := int(float64(n) * purityCardinalityShare); byShare > gate {
		gate = byShare
	}

	hits := map[string][]risk.CategoryPurity{}
	for _, name := range ds.Names() {
		if name == target {
			continue
		}
		col, _ := ds.Col(name)
		if col.Kind != dataset.String {
			continue
		}
		if col.NUnique() >= gate {
			continue
		}
		sums := map[string]float64{}
		sizes := map[string]int{}
		for i, v := range col.Strings {
			if i >= len(y) || math.IsNaN(y[i]) {
				continue
			}
			sums[v] += y[i]
			sizes[v]++
		}
		values := make([]string, 0, len(sizes))
		for v := range sizes {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			size := sizes[v]
			if size < purityMinGroup {
				continue
			}
			p := sums[v] / float64(size)
			if p <= purityLowerBound || p >= purityUpperBound {
				hits[name] = append(hits[name], risk.CategoryPurity{Value: v, P: p, N: size})
			}
		}
	}
	for name := range hits {
		if len(hits[name]) == 0 {
			delete(hits, name)
		}
	}
	return hits
}
