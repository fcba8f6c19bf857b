package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sameera/osem-ladders-sub001/internal/assessment"
	"github.com/sameera/osem-ladders-sub001/internal/models"
)

type completionResult struct {
	Ladder    string `json:"ladder"`
	Completed []int  `json:"completed"`
	Total     int    `json:"total"`
	Complete  bool   `json:"complete"`
}

// completionCmd overrides cobra's generated shell completion command
var completionCmd = &cobra.Command{
	Use:   "completion FILE SELECTIONS.json",
	Short: "Report which categories have every competency selected",
	Long: `Reads a ladder definition and a selections file of the form
{"Category": {"Competency": level}} and lists the complete categories.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadLadder(args[0])
		if err != nil {
			return err
		}

		var selections models.Selections
		if err := readJSONFile(args[1], &selections); err != nil {
			return err
		}

		done := assessment.CompletedCategories(l.Categories, selections)
		result := completionResult{
			Ladder:    l.ID,
			Completed: done.Sorted(),
			Total:     len(l.Categories),
			Complete:  assessment.IsComplete(l.Categories, selections),
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, result)
		}

		for i, c := range l.Categories {
			mark := " "
			if done.Has(i) {
				mark = "x"
			}
			fmt.Fprintf(out, "[%s] %d %s\n", mark, i, c.Title)
		}
		fmt.Fprintf(out, "%d of %d categories complete\n", len(result.Completed), result.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
