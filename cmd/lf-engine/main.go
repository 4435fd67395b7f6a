package main

import (
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lf-engine",
	Short: "LogFlow Sketcher counting engine",
	Long: `The engine keeps bounded Space-Saving counters over a stream of JSON log
entries received over HTTP or NATS, answers top-K queries and periodically
exports snapshots of every counter.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
