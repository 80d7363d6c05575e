// Package risk defines the findings produced by the leakage detectors and the
// shared severity vocabulary used for sorting and exit classification.
package risk

import "encoding/json"

// Severity ranks the urgency of a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank maps severity to a sortable integer, high first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// Valid reports whether the severity is one of the three known ranks.
func (s Severity) Valid() bool {
	return s == SeverityHigh || s == SeverityMedium || s == SeverityLow
}

// Item is a single risk finding. Items are immutable once produced and are
// not persisted across runs.
type Item struct {
	Name      string   `json:"name"`
	Severity  Severity `json:"severity"`
	Detail    string   `json:"detail"`
	Evidence  Evidence `json:"evidence"`
	LeakScore float64  `json:"leak_score,omitempty"`
}

// UnmarshalJSON decodes a serialized finding. The evidence comes back as
// RawEvidence since the typed shape is not recorded on the wire.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string          `json:"name"`
		Severity  Severity        `json:"severity"`
		Detail    string          `json:"detail"`
		Evidence  json.RawMessage `json:"evidence"`
		LeakScore float64         `json:"leak_score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.Name = raw.Name
	it.Severity = raw.Severity
	it.Detail = raw.Detail
	it.LeakScore = raw.LeakScore
	it.Evidence = nil
	if len(raw.Evidence) > 0 {
		ev := RawEvidence{}
		if err := json.Unmarshal(raw.Evidence, &ev); err != nil {
			return err
		}
		it.Evidence = ev
	}
	return nil
}

// Counts buckets a finding list by severity.
type Counts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total returns the overall finding count.
func (c Counts) Total() int { return c.High + c.Medium + c.Low }

// CountBySeverity tallies findings per severity rank.
func CountBySeverity(items []Item) Counts {
	var c Counts
	for _, it := range items {
		switch it.Severity {
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
	}
	return c
}

// EvidenceMap converts a typed evidence value into the nested map shape used
// for plan documents and serialized reports.
func EvidenceMap(e Evidence) map[string]any {
	if e == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
