package main

import (
	"LogFlowSketcher/internal/probe"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var inputFile string

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish JSON log lines from a file or stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ing, codec, err := ingestSettings()
		if err != nil {
			return err
		}

		var in io.Reader = os.Stdin
		if inputFile != "" && inputFile != "-" {
			f, err := os.Open(inputFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		pub, err := probe.NewPublisher(ing.NATSURL, ing.Subject, codec)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer pub.Close()

		sent, skipped, err := publishLines(in, pub)
		if err != nil {
			return err
		}
		if err := pub.Flush(); err != nil {
			return fmt.Errorf("failed to flush NATS connection: %w", err)
		}
		log.Info().Int("published", sent).Int("skipped", skipped).Str("subject", ing.Subject).Msg("done")
		return nil
	},
}

func init() {
	pubCmd.Flags().StringVarP(&inputFile, "file", "f", "", "file with one JSON log entry per line (default stdin)")
	rootCmd.AddCommand(pubCmd)
}

type publisher interface {
	Publish(entry []byte) error
}

// publishLines publishes every non-empty line, skipping lines the codec rejects.
func publishLines(in io.Reader, pub publisher) (sent, skipped int, err error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// the scanner reuses its buffer
		if err := pub.Publish(bytes.Clone(line)); err != nil {
			log.Warn().Err(err).Msg("skipping line")
			skipped++
			continue
		}
		sent++
	}
	return sent, skipped, scanner.Err()
}
