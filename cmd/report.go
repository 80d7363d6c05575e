package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leakaudit/pkg/reports"
	"leakaudit/pkg/risk"
)

var (
	reportRisksPath string
	reportOutPath   string
	reportServe     bool
	reportPort      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an HTML report from saved findings",
	Long:  `Re-renders the HTML report from a risks.json produced by a previous run, optionally serving it over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(reportRisksPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", reportRisksPath, err)
			os.Exit(ExitBadConfig)
		}
		var risks []risk.Item
		if err := json.Unmarshal(data, &risks); err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", reportRisksPath, err)
			os.Exit(ExitBadConfig)
		}

		view := reports.BuildView(viper.GetString("report_title"), risks, nil)
		if reportServe {
			if err := reports.ServeHTMLReport(view, reportOutPath, reportPort); err != nil {
				fmt.Fprintf(os.Stderr, "Error serving report: %v\n", err)
				os.Exit(1)
			}
			return
		}
		if err := reports.GenerateHTMLReport(view, reportOutPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Report written to %s\n", reportOutPath)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportRisksPath, "risks", "risks.json", "path to a saved risks.json")
	reportCmd.Flags().StringVar(&reportOutPath, "out", "report.html", "output HTML path")
	reportCmd.Flags().BoolVar(&reportServe, "serve", false, "serve the report over HTTP")
	reportCmd.Flags().StringVar(&reportPort, "port", "8080", "port to serve the report on")
	rootCmd.AddCommand(reportCmd)
}
