package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yashmulik1278/email-assistant-LLM/internal/db"
	"github.com/yashmulik1278/email-assistant-LLM/internal/display"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

type resolveResult struct {
	ID     int64  `json:"id"`
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve ID [ID...]",
	Short: "Mark processed emails as resolved",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var results []resolveResult
		failed := 0
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				display.ErrorMsg("%v", err)
				failed++
				continue
			}

			res := resolveResult{ID: id}
			err = store.Resolve(cmd.Context(), id)
			var te *db.TransitionError
			switch {
			case err == nil:
				res.OK, res.Status = true, string(types.StatusResolved)
				if !jsonOutput {
					display.SuccessMsg("Resolved: #%d", id)
				}
			case errors.As(err, &te) && te.From == types.StatusResolved:
				res.Status = string(te.From)
				res.Error = "already resolved"
				if !jsonOutput {
					fmt.Printf("%s #%d already resolved\n", display.Dim.Render("·"), id)
				}
			case errors.As(err, &te):
				res.Status = string(te.From)
				res.Error = "not processed yet"
				failed++
				if !jsonOutput {
					display.ErrorMsg("#%d is %s; analyze it before resolving", id, te.From)
				}
			case errors.Is(err, db.ErrNotFound):
				res.Error = "not found"
				failed++
				if !jsonOutput {
					display.ErrorMsg("#%d not found", id)
				}
			default:
				return fmt.Errorf("resolve %d: %w", id, err)
			}
			results = append(results, res)
		}

		if jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d could not be resolved", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
