package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yashmulik1278/email-assistant-LLM/internal/display"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

type statsOutput struct {
	Last24h   int            `json:"last_24h"`
	Pending   int            `json:"pending"`
	Processed int            `json:"processed"`
	Resolved  int            `json:"resolved"`
	Total     int            `json:"total"`
	Sentiment map[string]int `json:"sentiment"`
	Priority  map[string]int `json:"priority"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show inbox statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		byStatus, err := store.CountByStatus(ctx)
		if err != nil {
			return fmt.Errorf("status counts: %w", err)
		}
		last24h, err := store.CountReceivedSince(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			return fmt.Errorf("recent count: %w", err)
		}
		sentiment, err := store.CountBySentiment(ctx)
		if err != nil {
			return fmt.Errorf("sentiment counts: %w", err)
		}
		priority, err := store.CountByPriority(ctx)
		if err != nil {
			return fmt.Errorf("priority counts: %w", err)
		}

		out := statsOutput{
			Last24h:   last24h,
			Pending:   byStatus[types.StatusPending],
			Processed: byStatus[types.StatusProcessed],
			Resolved:  byStatus[types.StatusResolved],
			Sentiment: sentiment,
			Priority:  priority,
		}
		out.Total = out.Pending + out.Processed + out.Resolved

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), out)
		}

		display.Header("Support Inbox Statistics")
		fmt.Println()
		fmt.Printf("  Last 24 hours  %4d\n", out.Last24h)
		fmt.Printf("  Pending        %4d\n", out.Pending)
		fmt.Printf("  Processed      %4d\n", out.Processed)
		fmt.Printf("  Resolved       %4d\n", out.Resolved)
		fmt.Println()

		display.SubHeader("  Sentiment")
		display.Distribution(os.Stdout, sentiment, 20)
		fmt.Println()
		display.SubHeader("  Priority")
		display.Distribution(os.Stdout, priority, 20)
		fmt.Println()

		fmt.Printf("  Total: %d emails\n", out.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
