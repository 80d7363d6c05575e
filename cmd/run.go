package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"leakaudit/pkg/audit"
	"leakaudit/pkg/dataset"
	"leakaudit/pkg/reports"
	"leakaudit/pkg/risk"
)

var (
	runTrainPath     string
	runTarget        string
	runTimeCol       string
	runCVType        string
	runOutDir        string
	runSimulate      bool
	runLeakThreshold float64
	runPolicyFile    string
	runSARIF         bool
	runParallel      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit a training table for target leakage",
	Long: `Loads a CSV training table, runs every leakage detector against the
target column, and writes report.html, risks.json and meta.json into the
output directory. Exits 0 when clean, 2 on medium findings, 3 on high
findings.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		ds, target := loadTable(runTrainPath, runTarget)

		if runLeakThreshold == 0 {
			runLeakThreshold = viper.GetFloat64("leak_threshold")
		}
		opts := audit.Options{
			TimeColumn:    runTimeCol,
			CVType:        runCVType,
			Simulate:      runSimulate,
			LeakThreshold: runLeakThreshold,
			PolicyFile:    runPolicyFile,
			Parallel:      runParallel,
		}

		result, err := audit.Run(cmd.Context(), ds, target, opts, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running audit: %v\n", err)
			os.Exit(ExitBadConfig)
		}

		if err := writeRunArtifacts(result, runOutDir, runSARIF); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing outputs: %v\n", err)
			os.Exit(1)
		}

		printSummary(result)
		log.Info("audit complete",
			zap.String("out_dir", runOutDir),
			zap.Int("exit_code", result.ExitCode()))
		os.Exit(result.ExitCode())
	},
}

// loadTable reads the CSV and checks the target exists; any failure is an
// input problem and exits with ExitBadConfig.
func loadTable(path, target string) (*dataset.Dataset, string) {
	if path == "" || target == "" {
		fmt.Fprintln(os.Stderr, "Error: --train and --target are required")
		os.Exit(ExitBadConfig)
	}
	ds, err := dataset.FromCSVFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(ExitBadConfig)
	}
	if !ds.Has(target) {
		fmt.Fprintf(os.Stderr, "Error: target column %q not found in %s\n", target, path)
		os.Exit(ExitBadConfig)
	}
	return ds, target
}

func writeRunArtifacts(result *audit.Result, outDir string, sarif bool) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	risksJSON, err := json.MarshalIndent(result.Risks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal risks: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "risks.json"), append(risksJSON, '\n'), 0o644); err != nil {
		return err
	}

	metaJSON, err := json.MarshalIndent(result.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "meta.json"), append(metaJSON, '\n'), 0o644); err != nil {
		return err
	}

	if result.Simulation != nil {
		simJSON, err := json.MarshalIndent(result.Simulation, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal simulation: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outDir, "simulation.json"), append(simJSON, '\n'), 0o644); err != nil {
			return err
		}
	}
	if result.PolicyAudit != nil {
		paJSON, err := json.MarshalIndent(result.PolicyAudit, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal policy audit: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outDir, "policy_audit.json"), append(paJSON, '\n'), 0o644); err != nil {
			return err
		}
	}

	view := reports.BuildView(viper.GetString("report_title"), result.Risks, map[string]string{
		"run_id":  result.Meta.RunID,
		"target":  result.Meta.Target,
		"rows":    fmt.Sprintf("%d", result.Meta.NRows),
		"columns": fmt.Sprintf("%d", result.Meta.NCols),
	})
	if err := reports.GenerateHTMLReport(view, filepath.Join(outDir, "report.html")); err != nil {
		return err
	}

	if sarif {
		if _, err := reports.WriteSARIF(result.Risks, filepath.Join(outDir, "report.sarif")); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(result *audit.Result) {
	counts := result.Counts()
	color.New(color.Bold).Printf("Leakage audit: %d findings\n", counts.Total())
	color.Red("  high:   %d", counts.High)
	color.Yellow("  medium: %d", counts.Medium)
	color.Blue("  low:    %d", counts.Low)
	for _, r := range result.Risks {
		switch r.Severity {
		case risk.SeverityHigh:
			color.Red("  [HIGH] %s: %s", r.Name, r.Detail)
		case risk.SeverityMedium:
			color.Yellow("  [MED]  %s: %s", r.Name, r.Detail)
		default:
			color.Blue("  [LOW]  %s: %s", r.Name, r.Detail)
		}
	}
	if result.Simulation != nil {
		s := result.Simulation.Summary
		fmt.Printf("Simulation: %d features compared, %d leaks, %d skipped\n",
			s.TotalFeatures, s.LeakFeatures, s.SkippedFeatures)
	}
	if result.PolicyAudit != nil {
		fmt.Printf("CV policy: %s (%d violations)\n",
			result.PolicyAudit.Summary.ComplianceStatus,
			result.PolicyAudit.Summary.TotalViolations)
	}
}

func init() {
	runCmd.Flags().StringVar(&runTrainPath, "train", "", "path to the training CSV")
	runCmd.Flags().StringVar(&runTarget, "target", "", "name of the target column")
	runCmd.Flags().StringVar(&runTimeCol, "time-col", "", "name of the time column, if any")
	runCmd.Flags().StringVar(&runCVType, "cv-type", "", "declared CV strategy: kfold, timeseries or group")
	runCmd.Flags().StringVar(&runOutDir, "out", "leakaudit_out", "output directory for the report artifacts")
	runCmd.Flags().BoolVar(&runSimulate, "simulate", false, "simulate time-series CV on suspicious columns")
	runCmd.Flags().Float64Var(&runLeakThreshold, "leak-threshold", 0, "score difference above which a simulated feature is a leak")
	runCmd.Flags().StringVar(&runPolicyFile, "cv-policy", "", "CV policy YAML to audit against the table")
	runCmd.Flags().BoolVar(&runSARIF, "sarif", false, "also write report.sarif")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "run detectors concurrently")
	rootCmd.AddCommand(runCmd)
}
