package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yashmulik1278/email-assistant-LLM/internal/display"
)

var analyzeWorkers int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis pass over pending emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, cleanup, err := newAnalyzer(ctx, analyzeWorkers)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := a.Run(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		if !quietFlag {
			if res.Pending == 0 {
				display.SuccessMsg("No pending emails")
				return nil
			}
			display.SuccessMsg("%d of %d processed (%d fallback replies, %d left pending, %d skipped)",
				res.Processed, res.Pending, res.Fallback, res.Failed, res.Skipped)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Concurrent records (default from config, 1)")
	rootCmd.AddCommand(analyzeCmd)
}
