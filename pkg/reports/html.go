// Package reports renders audit results for humans and machines. Renderers
// consume the core's outputs and contain no decision logic.
package reports

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"sort"
	"time"

	"leakaudit/pkg/risk"
)

//go:embed templates/index.html
var templatesFS embed.FS

// Finding is one rendered risk row.
type Finding struct {
	Name     string
	Severity string
	Detail   string
	Evidence string // pretty-printed JSON
	BadgeCls string
}

// HTMLView is the template model for the report page.
type HTMLView struct {
	Title       string
	GeneratedAt string
	Counts      map[string]int
	Total       int
	Findings    []Finding
	Meta        map[string]string
}

func badgeClass(sev risk.Severity) string {
	switch sev {
	case risk.SeverityHigh:
		return "badge high"
	case risk.SeverityMedium:
		return "badge medium"
	case risk.SeverityLow:
		return "badge low"
	}
	return "badge info"
}

// BuildView converts risk findings into the report view, ordered high to low
// severity and by name within a rank.
func BuildView(title string, risks []risk.Item, meta map[string]string) HTMLView {
	counts := map[string]int{"high": 0, "medium": 0, "low": 0}

	out := make([]Finding, 0, len(risks))
	for _, r := range risks {
		counts[string(r.Severity)]++
		evidence, _ := json.MarshalIndent(risk.EvidenceMap(r.Evidence), "", "  ")
		out = append(out, Finding{
			Name:     r.Name,
			Severity: string(r.Severity),
			Detail:   r.Detail,
			Evidence: string(evidence),
			BadgeCls: badgeClass(r.Severity),
		})
	}

	rank := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank[out[i].Severity], rank[out[j].Severity]
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})

	return HTMLView{
		Title:       title,
		GeneratedAt: time.Now().Format(time.RFC1123),
		Counts:      counts,
		Total:       len(out),
		Findings:    out,
		Meta:        meta,
	}
}

func reportTemplate() (*template.Template, error) {
	tplBytes, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return template.New("report").Funcs(template.FuncMap{
		// Percent helper used for the severity bars.
		"pct": func(part, total int) int {
			if total <= 0 {
				return 0
			}
			return int(float64(part) / float64(total) * 100.0)
		},
	}).Parse(string(tplBytes))
}

// GenerateHTMLReport renders the view into an HTML file.
func GenerateHTMLReport(view HTMLView, outputPath string) error {
	tpl, err := reportTemplate()
	if err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := tpl.Execute(f, view); err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	return nil
}

// ServeHTMLReport generates the report and serves it on the given port.
func ServeHTMLReport(view HTMLView, outputPath, port string) error {
	if err := GenerateHTMLReport(view, outputPath); err != nil {
		return fmt.Errorf("failed to generate HTML report: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, outputPath)
	})
	fmt.Printf("Serving HTML report at http://localhost:%s\n", port)
	return http.ListenAndServe(":"+port, mux)
}
