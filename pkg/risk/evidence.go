package risk

// Evidence is the closed set of detector-specific evidence records. Each
// variant serializes to the same nested key/value shape a report consumer
// expects; the tag method only closes the set.
type Evidence interface {
	evidence()
}

// CorrelationEvidence backs "Target leakage (high correlation)": offending
// column name to |corr| or R² score.
type CorrelationEvidence struct {
	Columns map[string]float64 `json:"columns"`
}

// CategoryPurity is one near-pure category of a categorical column.
type CategoryPurity struct {
	Value string  `json:"value"`
	P     float64 `json:"p"`
	N     int     `json:"n"`
}

// PurityEvidence backs "Target leakage (categorical purity)".
type PurityEvidence struct {
	Columns map[string][]CategoryPurity `json:"columns"`
}

// EncodingStats describes why a column looks like a supervised encoding or a
// full-dataset window aggregate.
type EncodingStats struct {
	Correlation float64 `json:"correlation"`
	Mean        float64 `json:"mean"`
	CoV         float64 `json:"cov,omitempty"`
	Reason      string  `json:"reason"`
	Hint        string  `json:"hint,omitempty"`
}

// EncodingEvidence backs target-encoding and time-window leakage findings.
type EncodingEvidence struct {
	SuspiciousColumns map[string]EncodingStats `json:"suspicious_columns"`
}

// GroupCandidate is a high-duplication column suited to group-aware splits.
type GroupCandidate struct {
	Column  string  `json:"column"`
	NUnique int     `json:"nunique"`
	DupRate float64 `json:"dup_rate"`
}

// GroupingEvidence backs "KFold leakage risk".
type GroupingEvidence struct {
	Candidates []GroupCandidate `json:"candidates"`
}

// TimeEvidence backs time-column findings: parse failure counts or the
// observed range.
type TimeEvidence struct {
	Invalid int    `json:"invalid,omitempty"`
	Min     string `json:"min,omitempty"`
	Max     string `json:"max,omitempty"`
}

// CVEvidence backs CV strategy findings.
type CVEvidence struct {
	Specified   string `json:"specified,omitempty"`
	Recommended string `json:"recommended"`
}

// AggregateStats marks a column that looks like a precomputed aggregate.
type AggregateStats struct {
	Correlation float64 `json:"correlation"`
	CoV         float64 `json:"cov"`
}

// StatisticalEvidence backs the provisional statistical-leakage preview.
type StatisticalEvidence struct {
	SuspiciousColumns map[string]AggregateStats `json:"suspicious_columns"`
	Provisional       bool                      `json:"provisional"`
}

// ErrorEvidence carries the message of an isolated detector failure.
type ErrorEvidence struct {
	Error string `json:"error"`
}

// EmptyEvidence is used when a finding carries no supporting data, e.g. a
// missing time column.
type EmptyEvidence struct{}

// RawEvidence holds evidence reloaded from a serialized finding, where the
// original typed shape is no longer known.
type RawEvidence map[string]any

func (CorrelationEvidence) evidence() {}
func (PurityEvidence) evidence()      {}
func (EncodingEvidence) evidence()    {}
func (GroupingEvidence) evidence()    {}
func (TimeEvidence) evidence()        {}
func (CVEvidence) evidence()          {}
func (StatisticalEvidence) evidence() {}
func (ErrorEvidence) evidence()       {}
func (EmptyEvidence) evidence()       {}
func (RawEvidence) evidence()         {}

// SuspiciousColumns extracts the column names an evidence record marks as
// suspicious, in sorted order. Only encoding and statistical evidence carry
// such columns.
func SuspiciousColumns(e Evidence) []string {
	switch ev := e.(type) {
	case EncodingEvidence:
		return sortedKeysEncoding(ev.SuspiciousColumns)
	case StatisticalEvidence:
		return sortedKeysAggregate(ev.SuspiciousColumns)
	}
	return nil
}
