package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yashmulik1278/email-assistant-LLM/internal/analysis"
	"github.com/yashmulik1278/email-assistant-LLM/internal/db"
	"github.com/yashmulik1278/email-assistant-LLM/internal/display"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

var showNoBody bool

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Display one email with its extracted details and draft reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		r, err := store.Get(cmd.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("email %d not found", id)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), r)
		}
		printRecord(r)
		return nil
	},
}

func printRecord(r *types.EmailRecord) {
	display.Header(r.Subject)
	fmt.Printf("  %s %s  %s\n", display.PriorityDot(r.Priority), display.StatusLabel(r.Status), display.Dim.Render(fmt.Sprintf("#%d", r.ID)))
	fmt.Printf("  From:      %s\n", r.Sender)
	fmt.Printf("  Received:  %s\n", r.ReceivedAt.Local().Format("Mon Jan 2 2006 15:04"))

	if !showNoBody {
		fmt.Println()
		body := strings.TrimSpace(r.Body)
		if body == "" {
			body = display.Dim.Render("(no plain-text body)")
		}
		fmt.Println(display.BodyBox.Render(body))
	}

	fmt.Println()
	if !r.Analyzed() {
		fmt.Println(display.Dim.Render("  Not analyzed yet. Run 'assist analyze'."))
		return
	}

	display.SubHeader("  Extracted")
	fmt.Printf("  Sentiment: %s\n", display.SentimentLabel(r.Sentiment))
	fmt.Printf("  Priority:  %s\n", display.PriorityLabel(r.Priority))
	fmt.Printf("  Request:   %s\n", deref(r.CustomerRequest))
	fmt.Printf("  Contact:   %s\n", analysis.FormatContactInfo(r.ContactInfo))
	fmt.Println()
	display.SubHeader("  Draft reply")
	for _, line := range strings.Split(strings.TrimSpace(deref(r.GeneratedResponse)), "\n") {
		fmt.Println("  " + line)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid email id %q", s)
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func init() {
	showCmd.Flags().BoolVar(&showNoBody, "no-body", false, "Hide the email body")
	rootCmd.AddCommand(showCmd)
}
