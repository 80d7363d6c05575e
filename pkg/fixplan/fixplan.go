// Package fixplan turns risk findings into a concrete remediation plan. Plans
// are plain documents: they serialize to JSON and load back into the same
// in-memory value, so they can be reviewed, stored, and applied later.
package fixplan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"leakaudit/pkg/risk"
)

// ActionType is the closed set of remediation kinds.
type ActionType string

const (
	ActionDelete          ActionType = "delete"
	ActionRecalculate     ActionType = "recalculate"
	ActionRecommendCV     ActionType = "recommend_cv"
	ActionRecommendGroups ActionType = "recommend_groups"
)

// Action confidences per source risk kind.
const (
	confidenceDelete      = 0.9
	confidenceRecalculate = 0.8
	confidenceGroups      = 0.7
	confidenceCV          = 0.6

	// Columns below this duplication rate are not worth recommending as
	// split groups.
	groupsDupRateGate = 0.8
)

// FixAction is one remediation step. Target is a column name, a CV strategy,
// or a comma-joined column list for recommend_groups.
type FixAction struct {
	ActionType ActionType     `json:"action_type"`
	Target     string         `json:"target"`
	Reason     string         `json:"reason"`
	Evidence   map[string]any `json:"evidence"`
	Severity   risk.Severity  `json:"severity"`
	Confidence float64        `json:"confidence"`
}

// Summary holds plan-level counts by severity and action type.
type Summary struct {
	TotalActions       int `json:"total_actions"`
	HighSeverity       int `json:"high_severity"`
	MediumSeverity     int `json:"medium_severity"`
	LowSeverity        int `json:"low_severity"`
	DeleteActions      int `json:"delete_actions"`
	RecalculateActions int `json:"recalculate_actions"`
	RecommendActions   int `json:"recommend_actions"`
}

// FixPlan is a reviewed set of remediation actions for one audit.
type FixPlan struct {
	PlanID      string      `json:"plan_id"`
	CreatedAt   time.Time   `json:"created_at"`
	SourceRisks []string    `json:"source_risks"`
	Actions     []FixAction `json:"actions"`
	Summary     Summary     `json:"summary"`
}

// Build maps risk findings to fix actions. An empty planID gets a
// timestamp-derived default.
func Build(risks []risk.Item, planID string) *FixPlan {
	// UTC drops the monotonic reading so a saved plan loads back into the
	// identical value.
	now := time.Now().UTC()
	if planID == "" {
		planID = "fix_plan_" + now.Format("20060102_150405")
	}

	plan := &FixPlan{
		PlanID:      planID,
		CreatedAt:   now,
		SourceRisks: []string{},
		Actions:     []FixAction{},
	}

	for _, r := range risks {
		plan.SourceRisks = append(plan.SourceRisks, r.Name)

		switch {
		case strings.HasPrefix(r.Name, "Target leakage (high correlation)"):
			ev, ok := r.Evidence.(risk.CorrelationEvidence)
			if !ok {
				continue
			}
			for _, col := range risk.SortedKeys(ev.Columns) {
				plan.Actions = append(plan.Actions, FixAction{
					ActionType: ActionDelete,
					Target:     col,
					Reason:     fmt.Sprintf("high correlation with target (score=%.3f)", ev.Columns[col]),
					Evidence:   roundTripMap(map[string]any{"correlation": ev.Columns[col]}),
					Severity:   risk.SeverityHigh,
					Confidence: confidenceDelete,
				})
			}

		case strings.HasPrefix(r.Name, "Target encoding leakage"),
			strings.HasPrefix(r.Name, "WOE leakage"),
			strings.HasPrefix(r.Name, "Rolling statistics leakage"),
			strings.HasPrefix(r.Name, "Time window leakage"):
			ev, ok := r.Evidence.(risk.EncodingEvidence)
			if !ok {
				continue
			}
			for _, col := range risk.SuspiciousColumns(r.Evidence) {
				plan.Actions = append(plan.Actions, FixAction{
					ActionType: ActionRecalculate,
					Target:     col,
					Reason:     "suspected supervised or windowed statistic; recalculate inside CV folds using only past data",
					Evidence:   roundTripMap(risk.EvidenceMap(risk.EncodingEvidence{SuspiciousColumns: map[string]risk.EncodingStats{col: ev.SuspiciousColumns[col]}})),
					Severity:   risk.SeverityHigh,
					Confidence: confidenceRecalculate,
				})
			}

		case strings.HasPrefix(r.Name, "KFold leakage risk"):
			ev, ok := r.Evidence.(risk.GroupingEvidence)
			if !ok {
				continue
			}
			var groupCols []string
			for _, c := range ev.Candidates {
				if c.DupRate > groupsDupRateGate {
					groupCols = append(groupCols, c.Column)
				}
			}
			if len(groupCols) > 0 {
				plan.Actions = append(plan.Actions, FixAction{
					ActionType: ActionRecommendGroups,
					Target:     strings.Join(groupCols, ","),
					Reason:     "high-duplication columns should drive a GroupKFold split",
					Evidence:   roundTripMap(risk.EvidenceMap(ev)),
					Severity:   risk.SeverityMedium,
					Confidence: confidenceGroups,
				})
			}

		case strings.HasPrefix(r.Name, "CV strategy recommendation"):
			ev, ok := r.Evidence.(risk.CVEvidence)
			if !ok {
				continue
			}
			plan.Actions = append(plan.Actions, FixAction{
				ActionType: ActionRecommendCV,
				Target:     ev.Recommended,
				Reason:     fmt.Sprintf("data shape suggests %s cross-validation", ev.Recommended),
				Evidence:   roundTripMap(risk.EvidenceMap(ev)),
				Severity:   risk.SeverityLow,
				Confidence: confidenceCV,
			})
		}
	}

	plan.Summary = summarize(plan.Actions)
	return plan
}

func summarize(actions []FixAction) Summary {
	s := Summary{TotalActions: len(actions)}
	for _, a := range actions {
		switch a.Severity {
		case risk.SeverityHigh:
			s.HighSeverity++
		case risk.SeverityMedium:
			s.MediumSeverity++
		case risk.SeverityLow:
			s.LowSeverity++
		}
		switch a.ActionType {
		case ActionDelete:
			s.DeleteActions++
		case ActionRecalculate:
			s.RecalculateActions++
		case ActionRecommendCV, ActionRecommendGroups:
			s.RecommendActions++
		}
	}
	return s
}

// roundTripMap normalizes evidence through JSON so a plan built in memory is
// byte-for-byte identical to the same plan loaded from disk.
func roundTripMap(m map[string]any) map[string]any {
	raw, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// Write serializes the plan as indented JSON.
func (p *FixPlan) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// SaveFile writes the plan to a JSON file.
func (p *FixPlan) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return p.Write(f)
}

// Read loads a plan from JSON.
func Read(r io.Reader) (*FixPlan, error) {
	var p FixPlan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode fix plan: %w", err)
	}
	return &p, nil
}

// LoadFile reads a plan from a JSON file.
func LoadFile(path string) (*FixPlan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
