package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yashmulik1278/email-assistant-LLM/internal/display"
)

var (
	ingestLimit     int64
	monitorInterval time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Poll Gmail once and store new support emails as pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in, err := newIngestor(ctx, ingestLimit)
		if err != nil {
			return err
		}
		res, err := in.Cycle(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		if !quietFlag {
			display.SuccessMsg("%d new, %d already stored (%d listed)", res.Inserted, res.Duplicates, res.Listed)
			if res.BadDate > 0 {
				fmt.Printf("  %s\n", display.Dim.Render(fmt.Sprintf("%d skipped: unparseable date", res.BadDate)))
			}
		}
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll Gmail on an interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in, err := newIngestor(ctx, ingestLimit)
		if err != nil {
			return err
		}
		interval := monitorInterval
		if interval <= 0 {
			interval = cfg.Gmail.PollInterval
		}
		return in.Run(ctx, interval)
	},
}

func init() {
	ingestCmd.Flags().Int64Var(&ingestLimit, "limit", 0, "Maximum messages per poll (default from config, 10)")
	monitorCmd.Flags().Int64Var(&ingestLimit, "limit", 0, "Maximum messages per poll (default from config, 10)")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Poll interval (default from config, 60s)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(monitorCmd)
}
