package checks

import (
	"fmt"

	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// CV strategy names shared with the policy auditor.
const (
	CVKFold      = "kfold"
	CVTimeSeries = "timeseries"
	CVGroup      = "group"
)

// RecommendCV derives the CV strategy purely from data shape: timeseries when
// a usable time column exists, group when grouping candidates exist, kfold
// otherwise.
func RecommendCV(ds *dataset.Dataset, target, timeCol string) string {
	if hasTimeStructure(ds, timeCol) {
		return CVTimeSeries
	}
	if len(GroupCandidates(ds, target)) > 0 {
		return CVGroup
	}
	return CVKFold
}

// CVConsistency compares the caller's declared CV strategy against the one
// the data shape suggests.
type CVConsistency struct{}

func (d *CVConsistency) Name() string { return "cv_consistency" }

func (d *CVConsistency) Detect(ds *dataset.Dataset, target string, opts Options) ([]risk.Item, error) {
	recommended := RecommendCV(ds, target, opts.TimeColumn)

	if opts.CVType == "" {
		return []risk.Item{{
			Name:     "CV strategy recommendation",
			Severity: risk.SeverityLow,
			Detail:   fmt.Sprintf("Data shape suggests %s cross-validation.", recommended),
			Evidence: risk.CVEvidence{Recommended: recommended},
		}}, nil
	}

	if opts.CVType == recommended {
		return nil, nil
	}

	severity := risk.SeverityMedium
	if opts.CVType == CVKFold && recommended == CVTimeSeries {
		// Shuffled folds over time-ordered data is the worst mismatch.
		severity = risk.SeverityHigh
	}
	return []risk.Item{{
		Name:     "CV strategy mismatch",
		Severity: severity,
		Detail:   fmt.Sprintf("Specified CV strategy %q but the data suggests %q.", opts.CVType, recommended),
		Evidence: risk.CVEvidence{Specified: opts.CVType, Recommended: recommended},
	}}, nil
}
