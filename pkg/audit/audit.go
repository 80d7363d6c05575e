// Package audit wires the detection pipeline together: registry run,
// optional time-series simulation over the suspicious columns, and optional
// CV policy audit. One call processes one dataset end to end; the dataset is
// treated as immutable for the lifetime of the run.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leakaudit/pkg/checks"
	"leakaudit/pkg/cvpolicy"
	"leakaudit/pkg/dataset"
	"leakaudit/pkg/risk"
	"leakaudit/pkg/simulator"
)

// DefaultLeakThreshold is the score-difference gate for the simulator.
const DefaultLeakThreshold = 0.02

// Options configures one audit run.
type Options struct {
	TimeColumn    string
	CVType        string
	Simulate      bool
	LeakThreshold float64
	PolicyFile    string
	// Parallel runs detectors concurrently; output is unchanged.
	Parallel bool
}

// Meta records the run inputs and shape for the report.
type Meta struct {
	RunID         string  `json:"run_id"`
	NRows         int     `json:"n_rows"`
	NCols         int     `json:"n_cols"`
	Target        string  `json:"target"`
	TimeCol       string  `json:"time_col,omitempty"`
	CVType        string  `json:"cv_type,omitempty"`
	Simulate      bool    `json:"simulate_cv"`
	LeakThreshold float64 `json:"leak_threshold"`
	PolicyFile    string  `json:"cv_policy_file,omitempty"`
}

// Result is the aggregate audit outcome.
type Result struct {
	Risks       []risk.Item          `json:"risks"`
	Simulation  *simulator.Result    `json:"simulation,omitempty"`
	PolicyAudit *cvpolicy.AuditResult `json:"policy_audit,omitempty"`
	Meta        Meta                 `json:"meta"`
}

// Counts buckets the findings by severity.
func (r *Result) Counts() risk.Counts { return risk.CountBySeverity(r.Risks) }

// HasHighRisk reports whether any high-severity finding exists.
func (r *Result) HasHighRisk() bool { return r.Counts().High > 0 }

// Exit classification for callers; monotonically increasing with severity.
const (
	ExitOK          = 0
	ExitWarnings    = 2
	ExitHighLeakage = 3
)

// ExitCode classifies the run for process exit purposes.
func (r *Result) ExitCode() int {
	c := r.Counts()
	switch {
	case c.High > 0:
		return ExitHighLeakage
	case c.Medium > 0:
		return ExitWarnings
	}
	return ExitOK
}

// Run executes a full audit. Only input validation errors propagate; every
// other failure degrades into the result structure.
func Run(ctx context.Context, ds *dataset.Dataset, target string, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.LeakThreshold == 0 {
		opts.LeakThreshold = DefaultLeakThreshold
	}

	registry := checks.NewRegistry(log)
	detectorOpts := checks.Options{TimeColumn: opts.TimeColumn, CVType: opts.CVType}

	start := time.Now()
	var (
		risks []risk.Item
		err   error
	)
	if opts.Parallel {
		risks, err = registry.RunParallel(ctx, ds, target, detectorOpts)
	} else {
		risks, err = registry.Run(ctx, ds, target, detectorOpts)
	}
	if err != nil {
		return nil, err
	}
	log.Info("detection finished",
		zap.Int("findings", len(risks)),
		zap.Duration("elapsed", time.Since(start)))

	result := &Result{
		Risks: risks,
		Meta: Meta{
			RunID:         uuid.NewString(),
			NRows:         ds.NRows(),
			NCols:         ds.NCols(),
			Target:        target,
			TimeCol:       opts.TimeColumn,
			CVType:        opts.CVType,
			Simulate:      opts.Simulate,
			LeakThreshold: opts.LeakThreshold,
			PolicyFile:    opts.PolicyFile,
		},
	}

	if opts.Simulate && opts.TimeColumn != "" {
		suspicious := SuspiciousColumns(risks)
		if len(suspicious) > 0 {
			sim := simulator.Run(ds, target, opts.TimeColumn, suspicious, opts.LeakThreshold)
			result.Simulation = &sim
			if sim.Error != "" {
				log.Warn("simulation degraded", zap.String("error", sim.Error))
			}
		}
	}

	if opts.PolicyFile != "" {
		pa := cvpolicy.AuditFile(ds, target, opts.TimeColumn, opts.PolicyFile)
		result.PolicyAudit = &pa
		if pa.Status == cvpolicy.StatusNoPolicy {
			log.Warn("policy audit skipped", zap.String("message", pa.Message))
		}
	}

	return result, nil
}

// SuspiciousColumns collects, in first-seen order, every column any finding's
// evidence marks as suspicious.
func SuspiciousColumns(risks []risk.Item) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range risks {
		for _, col := range risk.SuspiciousColumns(r.Evidence) {
			if _, dup := seen[col]; dup {
				continue
			}
			seen[col] = struct{}{}
			out = append(out, col)
		}
	}
	return out
}
