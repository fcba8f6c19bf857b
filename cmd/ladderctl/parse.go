package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sameera/osem-ladders-sub001/internal/ladder"
	"github.com/sameera/osem-ladders-sub001/internal/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a ladder definition and print its categories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadLadder(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, l.Categories)
		}

		fmt.Fprintf(out, "%s: %d categories, %d competencies\n", l.ID, len(l.Categories), l.CompetencyCount())
		for i, c := range l.Categories {
			fmt.Fprintf(out, "[%d] %s\n", i, c.Title)
			for j, area := range c.CoreAreas {
				fmt.Fprintf(out, "  [%d] %s (%d levels)\n", j, area.Name, len(area.Levels))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

// loadLadder parses the ladder file at path; the file stem is its id
func loadLadder(path string) (*models.Ladder, error) {
	loader := ladder.NewLoader()
	if err := loader.LoadFromFile(path); err != nil {
		return nil, err
	}
	return loader.Lookup(ladder.IDFromPath(path))
}
