package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	profileFile string
)

var rootCmd = &cobra.Command{
	Use:   "segbench",
	Short: "Load generator for pooled segment streams",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFile, "profile", "", "YAML workload profile (defaults when empty)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
