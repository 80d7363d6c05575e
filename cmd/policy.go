package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"leakaudit/pkg/cvpolicy"
)

var (
	policyTrainPath string
	policyTarget    string
	policyTimeCol   string
	policyFile      string
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Audit a CV policy file against a training table",
	Long: `Checks that the declared cross-validation policy matches the structure
of the table: a time column demands a timeseries split, grouping structure
demands group-aware folds, and the split count must fit the row count.`,
	Run: func(cmd *cobra.Command, args []string) {
		if policyFile == "" {
			fmt.Fprintln(os.Stderr, "Error: --policy is required")
			os.Exit(ExitBadConfig)
		}
		ds, target := loadTable(policyTrainPath, policyTarget)

		result := cvpolicy.AuditFile(ds, target, policyTimeCol, policyFile)

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))

		switch result.Summary.ComplianceStatus {
		case "compliant":
			color.Green("CV policy is compliant")
		case "non_compliant":
			color.Red("CV policy has %d violations", result.Summary.TotalViolations)
			if result.Summary.HighSeverity > 0 {
				os.Exit(3)
			}
			os.Exit(2)
		default:
			color.Yellow("%s", result.Message)
		}
	},
}

func init() {
	policyCmd.Flags().StringVar(&policyTrainPath, "train", "", "path to the training CSV")
	policyCmd.Flags().StringVar(&policyTarget, "target", "", "name of the target column")
	policyCmd.Flags().StringVar(&policyTimeCol, "time-col", "", "name of the time column, if any")
	policyCmd.Flags().StringVar(&policyFile, "policy", "", "CV policy YAML file")
	rootCmd.AddCommand(policyCmd)
}
