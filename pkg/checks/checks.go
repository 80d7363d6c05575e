// Package checks implements the leakage detectors and the registry that runs
// them. Detectors are pure, read-only functions over the dataset; the
// registry isolates per-detector failures so one broken check never aborts
// its siblings.
package checks

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// Input validation failures abort the run before any detector executes.
var (
	ErrNilDataset    = errors.New("no dataset supplied")
	ErrMissingTarget = errors.New("target column not found")
)

// Options is the per-run option bag shared by all detectors.
type Options struct {
	// TimeColumn names the datetime column, when the caller has one.
	TimeColumn string
	// CVType is the caller's declared CV strategy hint: kfold, timeseries or
	// group. Empty means no hint.
	CVType string
}

// Detector is one leakage check with a uniform signature. Implementations
// never mutate the dataset.
type Detector interface {
	Name() string
	Detect(ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error)
}

// Registry owns the fixed detector list and runs it in registration order.
type Registry struct {
	detectors []Detector
	log       *zap.Logger
}

// NewRegistry builds the standard registry. The detector order is part of the
// output contract: results concatenate in this order.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		detectors: []Detector{
			&TargetLeakage{},
			&EncodingLeakage{},
			&GroupLeakage{},
			&TimeColumn{},
			&CVConsistency{},
			&StatisticalPreview{},
		},
		log: log,
	}
}

// Detectors returns the registered detectors in run order.
func (r *Registry) Detectors() []Detector { return r.detectors }

// Run executes every detector against the dataset. A failing detector is
// converted to a single low-severity finding and the rest keep running. The
// context deadline is checked between detectors only; on cancellation the
// findings collected so far are returned without error.
func (r *Registry) Run(ctx context.Context, ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	if err := validateInput(ds, target); err != nil {
		return nil, err
	}
	var out []risk.Item
	for _, d := range r.detectors {
		if err := ctx.Err(); err != nil {
			r.log.Warn("audit cancelled, returning partial findings",
				zap.String("next_detector", d.Name()), zap.Error(err))
			return out, nil
		}
		out = append(out, r.runOne(d, ds, target, opts)...)
	}
	return out, nil
}

// RunParallel executes the detectors concurrently. Output order and content
// are identical to Run; this is purely a throughput option for wide datasets.
func (r *Registry) RunParallel(ctx context.Context, ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	if err := validateInput(ds, target); err != nil {
		return nil, err
	}
	results := make([][]risk.Item, len(r.detectors))
	g, _ := errgroup.WithContext(ctx)
	for i, d := range r.detectors {
		i, d := i, d
		g.Go(func() error {
			results[i] = r.runOne(d, ds, target, opts)
			return nil
		})
	}
	_ = g.Wait()
	var out []risk.Item
	for _, items := range results {
		out = append(out, items...)
	}
	return out, nil
}

func validateInput(ds *dataset.Dataset, target string) error {
	if ds == nil {
		return ErrNilDataset
	}
	if !ds.Has(target) {
		return fmt.Errorf("%w: %q", ErrMissingTarget, target)
	}
	return nil
}

// runOne runs a single detector, converting any failure (error or panic) into
// one synthetic low-severity finding.
func (r *Registry) runOne(d Detector, ds *dataset.Dataset, target string, opts Options) (items []risk.Item) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("detector panicked", zap.String("detector", d.Name()), zap.Any("panic", rec))
			items = []risk.Item{errorItem(d.Name(), fmt.Sprintf("%v", rec))}
		}
	}()
	items, err := d.Detect(ds, target, opts)
	if err != nil {
		r.log.Warn("detector failed", zap.String("detector", d.Name()), zap.Error(err))
		return []risk.Item{errorItem(d.Name(), err.Error())}
	}
	return items
}

func errorItem(detector, msg string) risk.Item {
	return risk.Item{
		Name:     "Detector error: " + detector,
		Severity: risk.SeverityLow,
		Detail:   "Detector failed and was skipped; remaining checks were unaffected.",
		Evidence: risk.ErrorEvidence{Error: msg},
	}
}

// pairwise drops rows where either value is NaN or infinite, aligning the
// remaining pairs.
func pairwise(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if i >= len(y) {
			break
		}
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// correlation computes the Pearson correlation over pairwise-complete rows.
// ok is false when the correlation is undefined.
func correlation(x, y []float64) (float64, bool) {
	xs, ys := pairwise(x, y)
	if len(xs) < 2 {
		return 0, false
	}
	c := stat.Correlation(xs, ys, nil)
	if !finite(c) {
		return 0, false
	}
	return c, true
}

// rSquared fits a single-variable least-squares line and returns its R².
func rSquared(x, y []float64) (float64, bool) {
	xs, ys := pairwise(x, y)
	if len(xs) < 2 {
		return 0, false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if !finite(r2) {
		return 0, false
	}
	return r2, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// hasTimeStructure reports whether the named column exists and parses as a
// timestamp for at least one row.
func hasTimeStructure(ds *dataset.Dataset, timeCol string) bool {
	if timeCol == "" || !ds.Has(timeCol) {
		return false
	}
	_, valid, _ := ds.ParseTimes(timeCol)
	for _, ok := range valid {
		if ok {
			return true
		}
	}
	return false
}

// HasTimeStructure is the exported form used by the CV policy auditor, which
// shares the detectors' notion of a usable time column.
func HasTimeStructure(ds *dataset.Dataset, timeCol string) bool {
	return hasTimeStructure(ds, timeCol)
}

// GroupCandidates lists non-target columns whose cardinality sits strictly
// between 1 and 20% of the row count, with their duplication rate. Order
// follows the dataset's column order.
func GroupCandidates(ds *dataset.Dataset, target string) []risk.GroupCandidate {
	n := ds.NRows()
	if n == 0 {
		return nil
	}
	var out []risk.GroupCandidate
	for _, name := range ds.Names() {
		if name == target {
			continue
		}
		col, _ := ds.Col(name)
		nu := col.NUnique()
		if nu > 1 && float64(nu) < groupingCardinalityShare*float64(n) {
			out = append(out, risk.GroupCandidate{
				Column:  name,
				NUnique: nu,
				DupRate: 1 - float64(nu)/float64(n),
			})
		}
	}
	return out
}
