package reports

import (
	"encoding/json"
	"fmt"
	"os"

	"leakaudit/pkg/risk"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID     string         `json:"ruleId"`
	Level      string         `json:"level"`
	Message    sarifMessage   `json:"message"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

func sarifLevel(sev risk.Severity) string {
	switch sev {
	case risk.SeverityHigh:
		return "error"
	case risk.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// buildSARIF converts risk findings into a SARIF 2.1.0 log. Each distinct
// risk name becomes a rule; evidence is carried in result properties.
func buildSARIF(risks []risk.Item) sarifLog {
	seen := map[string]bool{}
	rules := make([]sarifRule, 0, len(risks))
	results := make([]sarifResult, 0, len(risks))

	for _, r := range risks {
		if !seen[r.Name] {
			seen[r.Name] = true
			rules = append(rules, sarifRule{
				ID:               r.Name,
				ShortDescription: sarifMessage{Text: r.Name},
			})
		}
		props := map[string]any{
			"severity": string(r.Severity),
			"evidence": risk.EvidenceMap(r.Evidence),
		}
		results = append(results, sarifResult{
			RuleID:     r.Name,
			Level:      sarifLevel(r.Severity),
			Message:    sarifMessage{Text: r.Detail},
			Properties: props,
		})
	}

	return sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:  "leakaudit",
				Rules: rules,
			}},
			Results: results,
		}},
	}
}

// WriteSARIF renders findings as SARIF and writes them to outputPath. It
// returns the number of results written.
func WriteSARIF(risks []risk.Item, outputPath string) (int, error) {
	log := buildSARIF(risks)
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal sarif: %w", err)
	}
	if err := os.WriteFile(outputPath, append(data, '\n'), 0o644); err != nil {
		return 0, fmt.Errorf("write sarif file: %w", err)
	}
	return len(log.Runs[0].Results), nil
}
