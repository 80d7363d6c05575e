// Package cvpolicy audits a declared cross-validation policy against the
// actual structure of a dataset. A missing or malformed policy document is
// never fatal; it degrades to a no_policy status.
package cvpolicy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"leakaudit/pkg/checks"
	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
)

// Audit result statuses.
const (
	StatusAudited  = "audited"
	StatusNoPolicy = "no_policy"
)

// Violation types.
const (
	ViolationCVTypeMismatch      = "cv_type_mismatch"
	ViolationMissingGroupColumns = "missing_group_columns"
	ViolationInsufficientData    = "insufficient_data"
)

// A split needs at least this many rows per fold to mean anything.
const minRowsPerSplit = 2

// CVPolicy is the declarative validation policy document.
type CVPolicy struct {
	CVType           string   `yaml:"cv_type" json:"cv_type"`
	NSplits          int      `yaml:"n_splits" json:"n_splits"`
	TimeCol          string   `yaml:"time_col" json:"time_col,omitempty"`
	GroupCols        []string `yaml:"group_cols" json:"group_cols"`
	SamplingStrategy string   `yaml:"sampling_strategy" json:"sampling_strategy,omitempty"`
	RandomState      int      `yaml:"random_state" json:"random_state,omitempty"`
}

func (p *CVPolicy) validate() error {
	switch p.CVType {
	case checks.CVKFold, checks.CVTimeSeries, checks.CVGroup:
	default:
		return fmt.Errorf("unknown cv_type %q", p.CVType)
	}
	if p.NSplits <= 0 {
		return fmt.Errorf("n_splits must be positive, got %d", p.NSplits)
	}
	return nil
}

// Violation is one disagreement between policy and data.
type Violation struct {
	ViolationType string         `json:"violation_type"`
	Severity      risk.Severity  `json:"severity"`
	Message       string         `json:"message"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Summary is the roll-up of an audit.
type Summary struct {
	TotalViolations  int    `json:"total_violations"`
	HighSeverity     int    `json:"high_severity"`
	MediumSeverity   int    `json:"medium_severity"`
	ComplianceStatus string `json:"compliance_status"`
}

// AuditResult is the full outcome of a policy audit.
type AuditResult struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Policy     *CVPolicy   `json:"policy,omitempty"`
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// LoadPolicy reads and validates a YAML policy document.
func LoadPolicy(path string) (*CVPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	var p CVPolicy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if p.NSplits == 0 {
		p.NSplits = 5
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return &p, nil
}

// Auditor checks datasets against a loaded policy.
type Auditor struct {
	Policy *CVPolicy
}

// Audit compares the policy against the dataset's structure. The dataset is
// only read.
func (a *Auditor) Audit(ds *dataset.Dataset, target, timeCol string) AuditResult {
	if a.Policy == nil {
		return AuditResult{
			Status:     StatusNoPolicy,
			Message:    "No policy file loaded",
			Violations: []Violation{},
			Summary:    Summary{ComplianceStatus: "unknown"},
		}
	}

	var violations []Violation

	hasTime := checks.HasTimeStructure(ds, timeCol)
	hasGroups := len(checks.GroupCandidates(ds, target)) > 0

	if hasTime && a.Policy.CVType != checks.CVTimeSeries {
		violations = append(violations, Violation{
			ViolationType: ViolationCVTypeMismatch,
			Severity:      risk.SeverityHigh,
			Message:       fmt.Sprintf("data has a usable time column %q but policy specifies %s", timeCol, a.Policy.CVType),
			Detail:        map[string]any{"policy_cv_type": a.Policy.CVType, "recommended": checks.CVTimeSeries},
		})
	} else if hasGroups && a.Policy.CVType == checks.CVKFold && len(a.Policy.GroupCols) == 0 {
		violations = append(violations, Violation{
			ViolationType: ViolationCVTypeMismatch,
			Severity:      risk.SeverityMedium,
			Message:       "data has grouping structure but policy specifies kfold without group columns",
			Detail:        map[string]any{"policy_cv_type": a.Policy.CVType, "recommended": checks.CVGroup},
		})
	}

	var missing []string
	for _, col := range a.Policy.GroupCols {
		if !ds.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		violations = append(violations, Violation{
			ViolationType: ViolationMissingGroupColumns,
			Severity:      risk.SeverityHigh,
			Message:       fmt.Sprintf("policy group columns %v are absent from the dataset", missing),
			Detail:        map[string]any{"missing_columns": missing},
		})
	}

	minRows := minRowsPerSplit * a.Policy.NSplits
	if ds.NRows() < minRows {
		violations = append(violations, Violation{
			ViolationType: ViolationInsufficientData,
			Severity:      risk.SeverityHigh,
			Message:       fmt.Sprintf("%d rows is too few for n_splits=%d (need at least %d)", ds.NRows(), a.Policy.NSplits, minRows),
			Detail:        map[string]any{"n_rows": ds.NRows(), "n_splits": a.Policy.NSplits, "min_rows": minRows},
		})
	}

	if violations == nil {
		violations = []Violation{}
	}
	return AuditResult{
		Status:     StatusAudited,
		Policy:     a.Policy,
		Violations: violations,
		Summary:    summarize(violations),
	}
}

func summarize(violations []Violation) Summary {
	s := Summary{TotalViolations: len(violations), ComplianceStatus: "compliant"}
	for _, v := range violations {
		switch v.Severity {
		case risk.SeverityHigh:
			s.HighSeverity++
		case risk.SeverityMedium:
			s.MediumSeverity++
		}
	}
	if len(violations) > 0 {
		s.ComplianceStatus = "non_compliant"
	}
	return s
}

// AuditFile loads a policy document and audits the dataset against it. Load
// failures produce a no_policy result instead of an error.
func AuditFile(ds *dataset.Dataset, target, timeCol, policyPath string) AuditResult {
	policy, err := LoadPolicy(policyPath)
	if err != nil {
		return AuditResult{
			Status:     StatusNoPolicy,
			Message:    fmt.Sprintf("No policy file loaded: %v", err),
			Violations: []Violation{},
			Summary:    Summary{ComplianceStatus: "unknown"},
		}
	}
	a := &Auditor{Policy: policy}
	return a.Audit(ds, target, timeCol)
}
