package checks

import (
	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// GroupLeakage warns when high-duplication columns would straddle plain
// KFold splits, letting fold siblings share an entity.
type GroupLeakage struct{}

func (d *GroupLeakage) Name() string { return "group_leakage" }

func (d *GroupLeakage) Detect(ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	candidates := GroupCandidates(ds, target)
	if len(candidates) == 0 {
		return nil, nil
	}
	return []risk.Item{{
		Name:     "KFold leakage risk (use GroupKFold)",
		Severity: risk.SeverityMedium,
		Detail:   "High-duplication columns should be used as groups so rows sharing a key stay in one fold.",
		Evidence: risk.GroupingEvidence{Candidates: candidates},
	}}, nil
}
