package checks

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

func numericCol(name string, vals ...float64) dataset.Column {
	return dataset.Column{Name: name, Kind: dataset.Numeric, Floats: vals}
}

func stringCol(name string, vals ...string) dataset.Column {
	return dataset.Column{Name: name, Kind: dataset.String, Strings: vals}
}

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func mustDataset(t *testing.T, cols ...dataset.Column) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(cols...)
	require.NoError(t, err)
	return ds
}

func findRisk(items []risk.Item, name string) (risk.Item, bool) {
	for _, it := range items {
		if it.Name == name {
			return it, true
		}
	}
	return risk.Item{}, false
}

func TestTargetLeakageHighCorrelation(t *testing.T) {
	n := 40
	y := ramp(n)
	leak := make([]float64, n)
	noise := make([]float64, n)
	for i := 0; i < n; i++ {
		leak[i] = 2*y[i] + 1
		if i%2 == 0 {
			noise[i] = 5
		} else {
			noise[i] = -5
		}
	}
	ds := mustDataset(t,
		numericCol("target", y...),
		numericCol("leak", leak...),
		numericCol("noise", noise...),
		numericCol("flat", make([]float64, n)...),
	)

	d := &TargetLeakage{}
	items, err := d.Detect(ds, "target", Options{})
	require.NoError(t, err)

	item, ok := findRisk(items, "Target leakage (high correlation)")
	require.True(t, ok)
	assert.Equal(t, risk.SeverityHigh, item.Severity)
	assert.InDelta(t, 1.0, item.LeakScore, 1e-9)

	ev, ok := item.Evidence.(risk.CorrelationEvidence)
	require.True(t, ok)
	assert.InDelta(t, 1.0, ev.Columns["leak"], 1e-9)
	assert.NotContains(t, ev.Columns, "noise")
	assert.NotContains(t, ev.Columns, "flat", "zero-variance columns never count as correlated")
}

func TestTargetLeakageCategoricalPurity(t *testing.T) {
	n := 40
	y := make([]float64, n)
	cat := make([]string, n)
	for i := 0; i < n; i++ {
		if i < 20 {
			cat[i] = "pure"
			y[i] = 0
		} else {
			cat[i] = "mixed"
			y[i] = float64(i % 2)
		}
	}
	ds := mustDataset(t, numericCol("target", y...), stringCol("segment", cat...))

	d := &TargetLeakage{}
	items, err := d.Detect(ds, "target", Options{})
	require.NoError(t, err)

	item, ok := findRisk(items, "Target leakage (categorical purity)")
	require.True(t, ok)
	assert.Equal(t, risk.SeverityMedium, item.Severity)

	ev, ok := item.Evidence.(risk.PurityEvidence)
	require.True(t, ok)
	require.Len(t, ev.Columns["segment"], 1)
	hit := ev.Columns["segment"][0]
	assert.Equal(t, "pure", hit.Value)
	assert.Equal(t, 0.0, hit.P)
	assert.Equal(t, 20, hit.N)
}

func TestTargetLeakageNonNumericTarget(t *testing.T) {
	ds := mustDataset(t, stringCol("target", "a", "b"), numericCol("x", 1, 2))
	d := &TargetLeakage{}
	_, err := d.Detect(ds, "target", Options{})
	assert.Error(t, err)
}

func TestEncodingLeakage(t *testing.T) {
	n := 40
	y := ramp(n)
	te := make([]float64, n)
	for i := range te {
		te[i] = y[i] / float64(n-1)
	}
	ds := mustDataset(t, numericCol("target", y...), numericCol("te_city", te...))

	d := &EncodingLeakage{}
	items, err := d.Detect(ds, "target", Options{})
	require.NoError(t, err)

	item, ok := findRisk(items, "Target encoding leakage risk")
	require.True(t, ok)
	assert.Equal(t, risk.SeverityHigh, item.Severity)

	ev, ok := item.Evidence.(risk.EncodingEvidence)
	require.True(t, ok)
	stats, ok := ev.SuspiciousColumns["te_city"]
	require.True(t, ok)
	assert.Equal(t, "value range within [0,1]", stats.Reason)
	assert.GreaterOrEqual(t, stats.Correlation, 0.7)
}

func TestTimeWindowLeakage(t *testing.T) {
	n := 30
	y := ramp(n)
	agg := make([]float64, n)
	ts := make([]string, n)
	for i := 0; i < n; i++ {
		agg[i] = 100 + 0.1*float64(i)
		ts[i] = fmt.Sprintf("2024-01-%02d", i+1)
	}
	ds := mustDataset(t,
		numericCol("target", y...),
		numericCol("user_mean_spend", agg...),
		stringCol("event_time", ts...),
	)

	d := &EncodingLeakage{}
	items, err := d.Detect(ds, "target", Options{TimeColumn: "event_time"})
	require.NoError(t, err)

	item, ok := findRisk(items, "Time window leakage")
	require.True(t, ok)
	ev := item.Evidence.(risk.EncodingEvidence)
	stats, ok := ev.SuspiciousColumns["user_mean_spend"]
	require.True(t, ok)
	assert.Less(t, stats.CoV, 0.1)
	assert.Contains(t, stats.Hint, "event_time")

	// Without a usable time column the window check stays silent.
	items, err = d.Detect(ds, "target", Options{})
	require.NoError(t, err)
	_, ok = findRisk(items, "Time window leakage")
	assert.False(t, ok)
}

func TestGroupLeakage(t *testing.T) {
	n := 30
	y := ramp(n)
	users := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("u%d", i/10)
	}
	ds := mustDataset(t, numericCol("target", y...), stringCol("user_id", users...))

	d := &GroupLeakage{}
	items, err := d.Detect(ds, "target", Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "KFold leakage risk (use GroupKFold)", items[0].Name)

	ev := items[0].Evidence.(risk.GroupingEvidence)
	require.Len(t, ev.Candidates, 1)
	assert.Equal(t, "user_id", ev.Candidates[0].Column)
	assert.Equal(t, 3, ev.Candidates[0].NUnique)
	assert.InDelta(t, 0.9, ev.Candidates[0].DupRate, 1e-9)
}

func TestGroupLeakageWideDataset(t *testing.T) {
	n := 1000
	users := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("u%d", i%5)
	}
	ds := mustDataset(t, numericCol("target", ramp(n)...), stringCol("user_id", users...))

	d := &GroupLeakage{}
	items, err := d.Detect(ds, "target", Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	ev := items[0].Evidence.(risk.GroupingEvidence)
	require.Len(t, ev.Candidates, 1)
	assert.InDelta(t, 0.995, ev.Candidates[0].DupRate, 1e-9)
}

func TestTimeColumnDetector(t *testing.T) {
	ds := mustDataset(t,
		numericCol("target", 1, 2, 3),
		stringCol("ts", "2024-01-01", "bogus", "2024-01-03"),
	)
	d := &TimeColumn{}

	items, err := d.Detect(ds, "target", Options{TimeColumn: "nope"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Time column missing", items[0].Name)
	assert.Equal(t, risk.SeverityHigh, items[0].Severity)

	items, err = d.Detect(ds, "target", Options{TimeColumn: "ts"})
	require.NoError(t, err)
	parseItem, ok := findRisk(items, "Time parse errors")
	require.True(t, ok)
	assert.Equal(t, 1, parseItem.Evidence.(risk.TimeEvidence).Invalid)

	suggestion, ok := findRisk(items, "Time-awareness suggestion")
	require.True(t, ok)
	ev := suggestion.Evidence.(risk.TimeEvidence)
	assert.Equal(t, "2024-01-01T00:00:00Z", ev.Min)
	assert.Equal(t, "2024-01-03T00:00:00Z", ev.Max)

	items, err = d.Detect(ds, "target", Options{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCVConsistency(t *testing.T) {
	n := 30
	ts := make([]string, n)
	for i := range ts {
		ts[i] = fmt.Sprintf("2024-01-%02d", i+1)
	}
	timed := mustDataset(t, numericCol("target", ramp(n)...), stringCol("ts", ts...))
	plain := mustDataset(t, numericCol("target", ramp(n)...), numericCol("x", ramp(n)...))

	d := &CVConsistency{}

	// No hint: a low-severity recommendation.
	items, err := d.Detect(plain, "target", Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "CV strategy recommendation", items[0].Name)
	assert.Equal(t, risk.SeverityLow, items[0].Severity)
	assert.Equal(t, CVKFold, items[0].Evidence.(risk.CVEvidence).Recommended)

	// Matching hint: silence.
	items, err = d.Detect(plain, "target", Options{CVType: CVKFold})
	require.NoError(t, err)
	assert.Empty(t, items)

	// kfold over time-ordered data is the worst mismatch.
	items, err = d.Detect(timed, "target", Options{CVType: CVKFold, TimeColumn: "ts"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "CV strategy mismatch", items[0].Name)
	assert.Equal(t, risk.SeverityHigh, items[0].Severity)

	// Any other disagreement is medium.
	items, err = d.Detect(timed, "target", Options{CVType: CVGroup, TimeColumn: "ts"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, risk.SeverityMedium, items[0].Severity)
}

func TestStatisticalPreview(t *testing.T) {
	n := 30
	y := ramp(n)
	agg := make([]float64, n)
	for i := range agg {
		agg[i] = 100 + 0.1*float64(i)
	}
	ds := mustDataset(t,
		numericCol("target", y...),
		numericCol("agg_stat", agg...),
		numericCol("flat", func() []float64 {
			out := make([]float64, n)
			for i := range out {
				out[i] = 7
			}
			return out
		}()...),
	)

	d := &StatisticalPreview{}
	items, err := d.Detect(ds, "target", Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	ev := items[0].Evidence.(risk.StatisticalEvidence)
	assert.True(t, ev.Provisional)
	assert.Contains(t, ev.SuspiciousColumns, "agg_stat")
	assert.NotContains(t, ev.SuspiciousColumns, "flat", "zero-variance columns are excluded")
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry(nil)
	ds := mustDataset(t, numericCol("target", 1, 2, 3))

	_, err := r.Run(context.Background(), nil, "target", Options{})
	assert.ErrorIs(t, err, ErrNilDataset)

	_, err = r.Run(context.Background(), ds, "missing", Options{})
	assert.ErrorIs(t, err, ErrMissingTarget)
}

func TestRegistryIsolatesDetectorFailures(t *testing.T) {
	// A string target makes the numeric detectors fail; the registry must
	// convert each failure into a low-severity finding and keep going.
	n := 30
	users := make([]string, n)
	labels := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("u%d", i/10)
		labels[i] = fmt.Sprintf("c%d", i%3)
	}
	ds := mustDataset(t, stringCol("target", labels...), stringCol("user_id", users...))

	r := NewRegistry(nil)
	items, err := r.Run(context.Background(), ds, "target", Options{})
	require.NoError(t, err)

	errItem, ok := findRisk(items, "Detector error: target_leakage")
	require.True(t, ok)
	assert.Equal(t, risk.SeverityLow, errItem.Severity)
	assert.NotEmpty(t, errItem.Evidence.(risk.ErrorEvidence).Error)

	// The grouping detector does not need a numeric target and still ran.
	_, ok = findRisk(items, "KFold leakage risk (use GroupKFold)")
	assert.True(t, ok)
}

func TestRegistryCancellationReturnsPartial(t *testing.T) {
	ds := mustDataset(t, numericCol("target", ramp(30)...))
	r := NewRegistry(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items, err := r.Run(ctx, ds, "target", Options{})
	require.NoError(t, err)
	assert.Empty(t, items, "a cancelled context stops before the first detector")
}

func TestRunParallelMatchesRun(t *testing.T) {
	n := 40
	y := ramp(n)
	leak := make([]float64, n)
	users := make([]string, n)
	for i := 0; i < n; i++ {
		leak[i] = 3 * y[i]
		users[i] = fmt.Sprintf("u%d", i/10)
	}
	ds := mustDataset(t,
		numericCol("target", y...),
		numericCol("leak", leak...),
		stringCol("user_id", users...),
	)

	r := NewRegistry(nil)
	sequential, err := r.Run(context.Background(), ds, "target", Options{})
	require.NoError(t, err)
	parallel, err := r.RunParallel(context.Background(), ds, "target", Options{})
	require.NoError(t, err)
	assert.Equal(t, sequential, parallel)

	again, err := r.Run(context.Background(), ds, "target", Options{})
	require.NoError(t, err)
	assert.Equal(t, sequential, again, "detection on unchanged input is deterministic")
}

func TestRecommendCV(t *testing.T) {
	n := 30
	ts := make([]string, n)
	users := make([]string, n)
	for i := range ts {
		ts[i] = fmt.Sprintf("2024-01-%02d", i+1)
		users[i] = fmt.Sprintf("u%d", i/10)
	}
	withTime := mustDataset(t, numericCol("target", ramp(n)...), stringCol("ts", ts...))
	withGroups := mustDataset(t, numericCol("target", ramp(n)...), stringCol("user_id", users...))
	plain := mustDataset(t, numericCol("target", ramp(n)...), numericCol("x", ramp(n)...))

	assert.Equal(t, CVTimeSeries, RecommendCV(withTime, "target", "ts"))
	assert.Equal(t, CVGroup, RecommendCV(withGroups, "target", ""))
	assert.Equal(t, CVKFold, RecommendCV(plain, "target", ""))
}
