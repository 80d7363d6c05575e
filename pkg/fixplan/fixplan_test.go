package fixplan

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leakaudit/pkg/risk"
)

func sampleRisks() []risk.Item {
	return []risk.Item{
		{
			Name:     "Target leakage (high correlation)",
			Severity: risk.SeverityHigh,
			Evidence: risk.CorrelationEvidence{Columns: map[string]float64{
				"leak_b": 0.999,
				"leak_a": 0.991,
			}},
		},
		{
			Name:     "Target encoding leakage risk",
			Severity: risk.SeverityHigh,
			Evidence: risk.EncodingEvidence{SuspiciousColumns: map[string]risk.EncodingStats{
				"te_city": {Correlation: 0.8, Mean: 0.4, Reason: "value range within [0,1]"},
			}},
		},
		{
			Name:     "KFold leakage risk (use GroupKFold)",
			Severity: risk.SeverityMedium,
			Evidence: risk.GroupingEvidence{Candidates: []risk.GroupCandidate{
				{Column: "user_id", NUnique: 3, DupRate: 0.9},
				{Column: "region", NUnique: 5, DupRate: 0.5},
			}},
		},
		{
			Name:     "CV strategy recommendation",
			Severity: risk.SeverityLow,
			Evidence: risk.CVEvidence{Recommended: "timeseries"},
		},
	}
}

func TestBuildMapsRisksToActions(t *testing.T) {
	plan := Build(sampleRisks(), "test_plan")

	assert.Equal(t, "test_plan", plan.PlanID)
	assert.Len(t, plan.SourceRisks, 4)
	require.Len(t, plan.Actions, 5)

	// Deletes come first, one per correlated column, in sorted column order.
	assert.Equal(t, ActionDelete, plan.Actions[0].ActionType)
	assert.Equal(t, "leak_a", plan.Actions[0].Target)
	assert.Equal(t, 0.9, plan.Actions[0].Confidence)
	assert.Equal(t, ActionDelete, plan.Actions[1].ActionType)
	assert.Equal(t, "leak_b", plan.Actions[1].Target)

	assert.Equal(t, ActionRecalculate, plan.Actions[2].ActionType)
	assert.Equal(t, "te_city", plan.Actions[2].Target)
	assert.Equal(t, 0.8, plan.Actions[2].Confidence)

	// Only the high-duplication candidate makes the group recommendation.
	assert.Equal(t, ActionRecommendGroups, plan.Actions[3].ActionType)
	assert.Equal(t, "user_id", plan.Actions[3].Target)
	assert.Equal(t, 0.7, plan.Actions[3].Confidence)

	assert.Equal(t, ActionRecommendCV, plan.Actions[4].ActionType)
	assert.Equal(t, "timeseries", plan.Actions[4].Target)
	assert.Equal(t, 0.6, plan.Actions[4].Confidence)

	assert.Equal(t, Summary{
		TotalActions:       5,
		HighSeverity:       3,
		MediumSeverity:     1,
		LowSeverity:        1,
		DeleteActions:      2,
		RecalculateActions: 1,
		RecommendActions:   2,
	}, plan.Summary)
}

func TestBuildDefaultPlanID(t *testing.T) {
	plan := Build(nil, "")
	assert.True(t, strings.HasPrefix(plan.PlanID, "fix_plan_"), plan.PlanID)
	assert.Len(t, plan.PlanID, len("fix_plan_")+len("20060102_150405"))
	assert.Empty(t, plan.Actions)
	assert.Equal(t, Summary{}, plan.Summary)
}

func TestBuildSkipsMismatchedEvidence(t *testing.T) {
	// A finding whose evidence does not carry the expected shape produces no
	// action instead of a bogus one.
	plan := Build([]risk.Item{{
		Name:     "Target leakage (high correlation)",
		Severity: risk.SeverityHigh,
		Evidence: risk.EmptyEvidence{},
	}}, "p")
	assert.Empty(t, plan.Actions)
	assert.Equal(t, []string{"Target leakage (high correlation)"}, plan.SourceRisks)
}

func TestPlanRoundTrip(t *testing.T) {
	plan := Build(sampleRisks(), "")

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, plan.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, plan, loaded, "a saved plan must load back into the identical value")
}
