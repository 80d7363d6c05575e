package fixapply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/fixplan"
	"leakaudit/pkg/risk"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		dataset.Column{Name: "target", Kind: dataset.Numeric, Floats: []float64{1, 2, 3}},
		dataset.Column{Name: "leak", Kind: dataset.Numeric, Floats: []float64{2, 4, 6}},
		dataset.Column{Name: "te_city", Kind: dataset.Numeric, Floats: []float64{0.1, 0.5, 0.9}},
	)
	require.NoError(t, err)
	return ds
}

func TestApplyDeleteAndRecalculate(t *testing.T) {
	ds := testDataset(t)
	plan := &fixplan.FixPlan{
		PlanID: "p1",
		Actions: []fixplan.FixAction{
			{ActionType: fixplan.ActionDelete, Target: "leak"},
			{ActionType: fixplan.ActionRecalculate, Target: "te_city"},
			{ActionType: fixplan.ActionRecommendCV, Target: "timeseries"},
			{ActionType: fixplan.ActionRecommendGroups, Target: "user_id,session_id"},
		},
	}

	fixed, res := Apply(ds, plan)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"leak"}, res.RemovedColumns)
	assert.Equal(t, []string{"te_city"}, res.FixedColumns)
	assert.Equal(t, "timeseries", res.RecommendedCV)
	assert.Equal(t, []string{"user_id", "session_id"}, res.RecommendedGroups)

	assert.False(t, fixed.Has("leak"))
	assert.True(t, fixed.Has("te_city"), "recalculate marks the column, it does not drop it")
	assert.True(t, ds.Has("leak"), "input dataset is never mutated")

	// Recalculation is out of scope for the engine, so it must warn.
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "te_city")
}

func TestApplyMissingColumnWarns(t *testing.T) {
	ds := testDataset(t)
	plan := &fixplan.FixPlan{
		Actions: []fixplan.FixAction{
			{ActionType: fixplan.ActionDelete, Target: "ghost"},
		},
	}
	fixed, res := Apply(ds, plan)
	assert.True(t, res.Success)
	assert.Empty(t, res.RemovedColumns)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ghost")
	assert.Equal(t, ds.Names(), fixed.Names())
}

func TestApplyUnknownAction(t *testing.T) {
	ds := testDataset(t)
	plan := &fixplan.FixPlan{
		Actions: []fixplan.FixAction{
			{ActionType: fixplan.ActionType("explode"), Target: "leak"},
		},
	}
	_, res := Apply(ds, plan)
	assert.True(t, res.Success)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "explode")
}

func TestApplyMinimal(t *testing.T) {
	ds := testDataset(t)
	risks := []risk.Item{
		{
			Name:     "Target leakage (high correlation)",
			Severity: risk.SeverityHigh,
			Evidence: risk.CorrelationEvidence{Columns: map[string]float64{"leak": 0.999}},
		},
		{
			// Same shape but not high severity: minimal mode must skip it.
			Name:     "Target leakage (high correlation)",
			Severity: risk.SeverityMedium,
			Evidence: risk.CorrelationEvidence{Columns: map[string]float64{"te_city": 0.8}},
		},
		{
			Name:     "Target encoding leakage risk",
			Severity: risk.SeverityHigh,
			Evidence: risk.EncodingEvidence{SuspiciousColumns: map[string]risk.EncodingStats{"te_city": {}}},
		},
	}

	fixed, res := ApplyMinimal(ds, risks)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"leak"}, res.RemovedColumns)
	assert.False(t, fixed.Has("leak"))
	assert.True(t, fixed.Has("te_city"))
	assert.True(t, ds.Has("leak"))
}
