package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yashmulik1278/email-assistant-LLM/internal/db"
	"github.com/yashmulik1278/email-assistant-LLM/internal/display"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

var (
	listStatus   string
	listPriority string
	listLimit    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List emails, urgent first, then pending, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var f db.ListFilter
		if listStatus != "" {
			s, err := types.ParseStatus(listStatus)
			if err != nil {
				return err
			}
			f.Status = s
		}
		if listPriority != "" {
			p, ok := types.ParsePriority(listPriority)
			if !ok {
				return fmt.Errorf("invalid priority %q (must be: Urgent, Not urgent)", listPriority)
			}
			f.Priority = p
		}
		f.Limit = listLimit

		records, err := store.List(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("list emails: %w", err)
		}

		if jsonOutput {
			if records == nil {
				records = []*types.EmailRecord{}
			}
			return writeJSON(cmd.OutOrStdout(), records)
		}

		if len(records) == 0 {
			if !quietFlag {
				fmt.Println(display.Dim.Render("No emails."))
			}
			return nil
		}

		now := time.Now()
		for _, r := range records {
			fmt.Println(display.InboxRow(r, now))
		}
		if !quietFlag {
			fmt.Println()
			fmt.Println(display.Dim.Render(fmt.Sprintf("%d emails. 'assist show ID' for detail.", len(records))))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (pending, processed, resolved)")
	listCmd.Flags().StringVar(&listPriority, "priority", "", "Filter by priority (Urgent, \"Not urgent\")")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum rows (0 for all)")
	rootCmd.AddCommand(listCmd)
}
