// Package fixapply executes a fix plan against a dataset. Both entry points
// are non-mutating: the input dataset is left untouched and a new owned copy
// is returned. Anomalies surface as warnings in the result, never as errors.
package fixapply

import (
	"fmt"
	"strings"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/fixplan"
	"leakaudit/pkg/risk"
)

// FixResult reports exactly what an application did.
type FixResult struct {
	Success           bool     `json:"success"`
	Message           string   `json:"message"`
	FixedColumns      []string `json:"fixed_columns"`
	RemovedColumns    []string `json:"removed_columns"`
	RecommendedCV     string   `json:"recommended_cv,omitempty"`
	RecommendedGroups []string `json:"recommended_groups"`
	Warnings          []string `json:"warnings"`
}

// Apply executes every action in the plan against a copy of the dataset.
// Missing columns are skipped with a warning; Success is false only for an
// unexpected internal fault.
func Apply(ds *dataset.Dataset, plan *fixplan.FixPlan) (out *dataset.Dataset, res FixResult) {
	res = FixResult{
		FixedColumns:      []string{},
		RemovedColumns:    []string{},
		RecommendedGroups: []string{},
		Warnings:          []string{},
	}
	out = ds.Copy()

	defer func() {
		if rec := recover(); rec != nil {
			out = ds.Copy()
			res.Success = false
			res.Message = fmt.Sprintf("fix application failed: %v", rec)
			res.Warnings = append(res.Warnings, fmt.Sprintf("internal fault: %v", rec))
		}
	}()

	for _, action := range plan.Actions {
		switch action.ActionType {
		case fixplan.ActionDelete:
			if !out.Has(action.Target) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("column %q not present, skipping delete", action.Target))
				continue
			}
			out = out.Drop(action.Target)
			res.RemovedColumns = append(res.RemovedColumns, action.Target)

		case fixplan.ActionRecalculate:
			if !out.Has(action.Target) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("column %q not present, skipping recalculation", action.Target))
				continue
			}
			// The engine has no domain knowledge to recompute a derived
			// feature; the column is only marked for external rework.
			res.FixedColumns = append(res.FixedColumns, action.Target)
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %q needs recalculation; this tool does not recompute derived features", action.Target))

		case fixplan.ActionRecommendCV:
			res.RecommendedCV = action.Target

		case fixplan.ActionRecommendGroups:
			res.RecommendedGroups = strings.Split(action.Target, ",")

		default:
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown action type %q, skipping", action.ActionType))
		}
	}

	res.Success = true
	res.Message = fmt.Sprintf("applied %d fix actions", len(plan.Actions))
	return out, res
}

// ApplyMinimal is the safe default remediation: it deletes only the columns
// implicated by high-severity "Target leakage (high correlation)" findings
// and touches nothing else.
func ApplyMinimal(ds *dataset.Dataset, risks []risk.Item) (*dataset.Dataset, FixResult) {
	res := FixResult{
		FixedColumns:      []string{},
		RemovedColumns:    []string{},
		RecommendedGroups: []string{},
		Warnings:          []string{},
	}
	out := ds.Copy()

	for _, r := range risks {
		if r.Severity != risk.SeverityHigh {
			continue
		}
		if !strings.HasPrefix(r.Name, "Target leakage (high correlation)") {
			continue
		}
		ev, ok := r.Evidence.(risk.CorrelationEvidence)
		if !ok {
			continue
		}
		for _, col := range risk.SortedKeys(ev.Columns) {
			if !out.Has(col) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("column %q not present, skipping delete", col))
				continue
			}
			out = out.Drop(col)
			res.RemovedColumns = append(res.RemovedColumns, col)
		}
	}

	res.Success = true
	res.Message = fmt.Sprintf("minimal fix removed %d high-risk columns", len(res.RemovedColumns))
	return out, res
}
