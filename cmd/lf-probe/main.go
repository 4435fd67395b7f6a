package main

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/probe"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	natsURL    string
	subject    string
	encoding   string
)

var rootCmd = &cobra.Command{
	Use:   "lf-probe",
	Short: "Publish log entries to the engine over NATS, or watch the subject",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides ingest.nats_url)")
	rootCmd.PersistentFlags().StringVar(&subject, "subject", "", "NATS subject (overrides ingest.subject)")
	rootCmd.PersistentFlags().StringVar(&encoding, "encoding", "", "wire encoding, json or proto (overrides ingest.encoding)")
}

// ingestSettings merges the config file with the command line flags.
func ingestSettings() (config.IngestConfig, probe.Codec, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.IngestConfig{}, nil, err
	}
	ing := cfg.Ingest
	if natsURL != "" {
		ing.NATSURL = natsURL
	}
	if subject != "" {
		ing.Subject = subject
	}
	if encoding != "" {
		ing.Encoding = encoding
	}
	codec, err := probe.NewCodec(ing.Encoding)
	if err != nil {
		return config.IngestConfig{}, nil, err
	}
	return ing, codec, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
