package main

import (
	"LogFlowSketcher/internal/probe"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Print every entry published on the subject",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ing, codec, err := ingestSettings()
		if err != nil {
			return err
		}

		sub, err := probe.NewSubscriber(ing.NATSURL, ing.Subject, codec)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer sub.Close()

		out := cmd.OutOrStdout()
		if err := sub.Start(func(entry []byte) {
			fmt.Fprintln(out, string(entry))
		}); err != nil {
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subCmd)
}
