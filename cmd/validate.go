package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// --- catwalk validate ---

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a run configuration without running it",
	Run: func(cmd *cobra.Command, args []string) {
		if validateConfigPath == "" {
			logrus.Fatalf("--config is required")
		}
		rc, err := LoadRunConfig(validateConfigPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := rc.Validate(); err != nil {
			logrus.Fatalf("invalid configuration: %v", err)
		}
		fmt.Printf("%s: ok (%d call sites, %d workload phases, %d batches)\n",
			validateConfigPath, len(rc.CallSites), len(rc.Workload.Phases), rc.Workload.TotalBatches())
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "", "YAML run configuration to check")
}
