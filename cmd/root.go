// Package cmd wires the leakage auditor's subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"leakaudit/pkg/logging"
)

// ExitBadConfig covers unusable flags and unreadable inputs; the
// audit-outcome codes live in pkg/audit.
const ExitBadConfig = 4

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "leakaudit",
	Short: "Audit tabular training data for target leakage",
	Long: `leakaudit scans a training table for signals that a feature leaks the
prediction target: near-perfect correlations, suspicious target encodings,
grouping structure that breaks plain KFold, and time columns that call for
time-series splits. It can also build and apply fix plans and audit CV
policy files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default leakaudit.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("leakaudit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("LEAKAUDIT")
	viper.AutomaticEnv()

	viper.SetDefault("leak_threshold", 0.02)
	viper.SetDefault("report_title", "Leakage Audit Report")

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config is fine; an explicit one must load.
		if cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
			os.Exit(ExitBadConfig)
		}
	}
}

func newLogger() *zap.Logger {
	log, err := logging.New(logLevel)
	if err != nil {
		return logging.Nop()
	}
	return log
}
