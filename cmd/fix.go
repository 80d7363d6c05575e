package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"leakaudit/pkg/checks"
	"leakaudit/pkg/dataset"
	"leakaudit/pkg/fixapply"
	"leakaudit/pkg/fixplan"
	"leakaudit/pkg/planstore"
)

var (
	fixTrainPath string
	fixTarget    string
	fixTimeCol   string
	fixCVType    string
	fixOutCSV    string
	fixPlanOut   string
	fixPlanIn    string
	fixMinimal   bool
	fixStorePath string
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Build and apply a fix plan for detected leaks",
	Long: `Runs the leakage detectors, derives a fix plan from the findings and
applies it to a copy of the table. With --plan-in an existing plan is applied
instead of building a new one; --minimal deletes only the columns with
near-perfect target correlation.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		ds, target := loadTable(fixTrainPath, fixTarget)

		var (
			fixed *dataset.Dataset
			res   fixapply.FixResult
			plan  *fixplan.FixPlan
		)

		switch {
		case fixPlanIn != "":
			var err error
			plan, err = fixplan.LoadFile(fixPlanIn)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading plan: %v\n", err)
				os.Exit(ExitBadConfig)
			}
			fixed, res = fixapply.Apply(ds, plan)
		default:
			registry := checks.NewRegistry(log)
			risks, err := registry.Run(context.Background(), ds, target, checks.Options{
				TimeColumn: fixTimeCol,
				CVType:     fixCVType,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error running detectors: %v\n", err)
				os.Exit(ExitBadConfig)
			}
			if fixMinimal {
				fixed, res = fixapply.ApplyMinimal(ds, risks)
			} else {
				plan = fixplan.Build(risks, "")
				fixed, res = fixapply.Apply(ds, plan)
			}
		}

		if plan != nil && fixPlanOut != "" {
			if err := plan.SaveFile(fixPlanOut); err != nil {
				fmt.Fprintf(os.Stderr, "Error saving plan: %v\n", err)
				os.Exit(1)
			}
		}
		if plan != nil && fixStorePath != "" {
			store, err := planstore.NewStore(fixStorePath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening plan store: %v\n", err)
				os.Exit(1)
			}
			defer store.Close()
			if err := store.Save(*plan); err != nil {
				fmt.Fprintf(os.Stderr, "Error storing plan: %v\n", err)
				os.Exit(1)
			}
		}

		if fixOutCSV != "" {
			if err := fixed.WriteCSVFile(fixOutCSV); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing fixed table: %v\n", err)
				os.Exit(1)
			}
		}

		printFixResult(res)
		if !res.Success {
			os.Exit(1)
		}
	},
}

func printFixResult(res fixapply.FixResult) {
	if res.Success {
		color.Green("%s", res.Message)
	} else {
		color.Red("%s", res.Message)
	}
	if len(res.RemovedColumns) > 0 {
		fmt.Printf("Removed columns: %v\n", res.RemovedColumns)
	}
	if len(res.FixedColumns) > 0 {
		fmt.Printf("Columns needing recalculation: %v\n", res.FixedColumns)
	}
	if res.RecommendedCV != "" {
		fmt.Printf("Recommended CV: %s\n", res.RecommendedCV)
	}
	if len(res.RecommendedGroups) > 0 {
		fmt.Printf("Recommended group columns: %v\n", res.RecommendedGroups)
	}
	for _, w := range res.Warnings {
		color.Yellow("Warning: %s", w)
	}
}

var planListCmd = &cobra.Command{
	Use:   "plans",
	Short: "List fix plans saved in a plan store",
	Run: func(cmd *cobra.Command, args []string) {
		if fixStorePath == "" {
			fmt.Fprintln(os.Stderr, "Error: --store is required")
			os.Exit(ExitBadConfig)
		}
		store, err := planstore.NewStore(fixStorePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening plan store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		entries, err := store.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing plans: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(out))
	},
}

func init() {
	fixCmd.Flags().StringVar(&fixTrainPath, "train", "", "path to the training CSV")
	fixCmd.Flags().StringVar(&fixTarget, "target", "", "name of the target column")
	fixCmd.Flags().StringVar(&fixTimeCol, "time-col", "", "name of the time column, if any")
	fixCmd.Flags().StringVar(&fixCVType, "cv-type", "", "declared CV strategy")
	fixCmd.Flags().StringVar(&fixOutCSV, "out", "", "write the fixed table to this CSV path")
	fixCmd.Flags().StringVar(&fixPlanOut, "plan-out", "", "write the built fix plan to this JSON path")
	fixCmd.Flags().StringVar(&fixPlanIn, "plan-in", "", "apply an existing fix plan instead of building one")
	fixCmd.Flags().BoolVar(&fixMinimal, "minimal", false, "only delete columns with near-perfect target correlation")
	fixCmd.Flags().StringVar(&fixStorePath, "store", "", "SQLite plan store path")
	planListCmd.Flags().StringVar(&fixStorePath, "store", "", "SQLite plan store path")
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(planListCmd)
}
