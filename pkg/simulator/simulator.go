// Package simulator estimates whether a suspicious feature's predictive
// power survives an out-of-time evaluation. Each feature is scored twice:
// once with full visibility (in-sample fit) and once under forward chaining,
// where the model is fit on an earlier time-ordered prefix and scored on a
// later held-out window. A large gap between the two is the signature of a
// leaking feature.
package simulator

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"leakaudit/pkg/dataset"
)

const (
	// minRows is the smallest dataset the forward-chaining split can
	// evaluate meaningfully.
	minRows = 10
	// trainFraction of the time-ordered rows form the fitting prefix.
	trainFraction = 0.7
)

// Comparison scores one feature under both regimes.
type Comparison struct {
	Feature         string  `json:"feature"`
	ScoreWith       float64 `json:"score_with"`
	ScoreWithout    float64 `json:"score_without"`
	ScoreDifference float64 `json:"score_difference"`
	IsLeak          bool    `json:"is_leak"`
}

// Summary aggregates a simulation run.
type Summary struct {
	TotalFeatures   int `json:"total_features"`
	LeakFeatures    int `json:"leak_features"`
	SkippedFeatures int `json:"skipped_features"`
}

// Parameters echoes the run inputs for reproducibility.
type Parameters struct {
	Target            string   `json:"target"`
	TimeCol           string   `json:"time_col,omitempty"`
	SuspiciousColumns []string `json:"suspicious_columns"`
	LeakThreshold     float64  `json:"leak_threshold"`
	TrainFraction     float64  `json:"train_fraction"`
}

// Result is the full simulation output.
type Result struct {
	Message     string       `json:"message,omitempty"`
	Comparisons []Comparison `json:"comparisons"`
	Summary     Summary      `json:"summary"`
	Parameters  Parameters   `json:"parameters"`
	Error       string       `json:"error,omitempty"`
}

// Run scores every suspicious column. Zero-variance columns are silently
// skipped; any internal fault is reported in the Error field rather than
// propagated.
func Run(ds *dataset.Dataset, target, timeCol string, suspicious []string, leakThreshold float64) (res Result) {
	res = Result{
		Comparisons: []Comparison{},
		Parameters: Parameters{
			Target:            target,
			TimeCol:           timeCol,
			SuspiciousColumns: suspicious,
			LeakThreshold:     leakThreshold,
			TrainFraction:     trainFraction,
		},
	}
	defer func() {
		if rec := recover(); rec != nil {
			res.Error = fmt.Sprintf("simulation failed: %v", rec)
			res.Comparisons = []Comparison{}
		}
	}()

	if len(suspicious) == 0 {
		res.Message = "no features to compare"
		return res
	}
	if ds.NRows() < minRows {
		res.Message = "insufficient data"
		return res
	}
	y, ok := ds.Numeric(target)
	if !ok {
		res.Error = fmt.Sprintf("target column %q is not numeric", target)
		return res
	}

	order := rowOrder(ds, timeCol)
	if len(order) < minRows {
		res.Message = "insufficient data"
		return res
	}

	for _, feature := range suspicious {
		x, ok := ds.Numeric(feature)
		if !ok {
			res.Summary.SkippedFeatures++
			continue
		}
		xs, ys := gather(x, y, order)
		if len(xs) < minRows || variance(xs) == 0 {
			res.Summary.SkippedFeatures++
			continue
		}

		scoreWith := inSampleScore(xs, ys)
		scoreWithout := forwardChainScore(xs, ys)
		if !finite(scoreWith) || !finite(scoreWithout) {
			res.Summary.SkippedFeatures++
			continue
		}

		diff := scoreWith - scoreWithout
		res.Comparisons = append(res.Comparisons, Comparison{
			Feature:         feature,
			ScoreWith:       scoreWith,
			ScoreWithout:    scoreWithout,
			ScoreDifference: diff,
			IsLeak:          diff > leakThreshold,
		})
	}

	res.Summary.TotalFeatures = len(res.Comparisons)
	for _, c := range res.Comparisons {
		if c.IsLeak {
			res.Summary.LeakFeatures++
		}
	}
	return res
}

// rowOrder returns row indexes in evaluation order: chronological when the
// time column is usable, natural order otherwise. Rows whose timestamp does
// not parse are excluded from a chronological order.
func rowOrder(ds *dataset.Dataset, timeCol string) []int {
	n := ds.NRows()
	if timeCol == "" || !ds.Has(timeCol) {
		return naturalOrder(n)
	}
	times, valid, _ := ds.ParseTimes(timeCol)
	var order []int
	for i := 0; i < n; i++ {
		if valid[i] {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return naturalOrder(n)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]].Before(times[order[b]])
	})
	return order
}

func naturalOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// gather selects the ordered, pairwise-finite feature/target values.
func gather(x, y []float64, order []int) ([]float64, []float64) {
	xs := make([]float64, 0, len(order))
	ys := make([]float64, 0, len(order))
	for _, i := range order {
		if i >= len(x) || i >= len(y) {
			continue
		}
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// inSampleScore is the R² of a single-feature least-squares fit evaluated on
// the data it was fit on: the feature's apparent predictive power.
func inSampleScore(x, y []float64) float64 {
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return stat.RSquared(x, y, nil, alpha, beta)
}

// forwardChainScore fits on the chronological prefix and scores on the
// held-out tail. Out-of-sample R² can go negative when the fit transfers
// badly, which is exactly the signal this comparison is after.
func forwardChainScore(x, y []float64) float64 {
	split := int(float64(len(x)) * trainFraction)
	if split < 2 || len(x)-split < 2 {
		return math.NaN()
	}
	alpha, beta := stat.LinearRegression(x[:split], y[:split], nil, false)

	testX, testY := x[split:], y[split:]
	meanY := stat.Mean(testY, nil)
	var ssRes, ssTot float64
	for i := range testX {
		pred := alpha + beta*testX[i]
		ssRes += (testY[i] - pred) * (testY[i] - pred)
		ssTot += (testY[i] - meanY) * (testY[i] - meanY)
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

func variance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.PopVariance(x, nil)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
