package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/sameera/osem-ladders-sub001/internal/assessment"
	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/pkg/client"
)

var diffRemote bool

var diffCmd = &cobra.Command{
	Use:   "diff FILE SELF MANAGER",
	Short: "Compare two assessments of the same ladder",
	Long: `Renders both response sets competency by competency in ladder order and
prints a unified diff. SELF and MANAGER are response JSON files, or report
ids fetched from the API with --remote.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadLadder(args[0])
		if err != nil {
			return err
		}

		load := loadResponsesFile
		if diffRemote {
			c := client.NewClient(cfg.Client.BaseURL, cfg.Client.APIKey)
			load = func(id string) (models.Responses, error) {
				return fetchResponses(cmd.Context(), c, id)
			}
		}

		a, err := load(args[1])
		if err != nil {
			return err
		}
		b, err := load(args[2])
		if err != nil {
			return err
		}

		text, err := diffResponses(l, args[1], a, args[2], b)
		if err != nil {
			return err
		}
		return writeDiff(cmd.OutOrStdout(), text)
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffRemote, "remote", false, "Treat SELF and MANAGER as report ids on the API")
	rootCmd.AddCommand(diffCmd)
}

func loadResponsesFile(path string) (models.Responses, error) {
	var responses models.Responses
	if err := readJSONFile(path, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

func fetchResponses(ctx context.Context, c *client.Client, id string) (models.Responses, error) {
	report, err := c.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", id, err)
	}
	return report.Responses, nil
}

// diffResponses returns the unified diff of two rendered response sets;
// it is empty when both render the same
func diffResponses(l *models.Ladder, nameA string, a models.Responses, nameB string, b models.Responses) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(renderResponses(l, a)),
		B:        difflib.SplitLines(renderResponses(l, b)),
		FromFile: nameA,
		ToFile:   nameB,
		Context:  3,
	})
}

// renderResponses lists every competency of the ladder with its selection.
// Responses for competencies the ladder does not define follow at the end.
func renderResponses(l *models.Ladder, responses models.Responses) string {
	var sb strings.Builder
	seen := make(map[string]bool, len(responses))

	for _, c := range l.Categories {
		for i := range c.CoreAreas {
			area := &c.CoreAreas[i]
			key := assessment.ResponseKey(c.Title, area.Name)
			seen[key] = true

			fmt.Fprintf(&sb, "%s / %s\n", c.Title, area.Name)
			resp, ok := responses[key]
			if !ok {
				sb.WriteString("  level: -\n")
				continue
			}
			if content, ok := area.Level(resp.SelectedLevel); ok {
				fmt.Fprintf(&sb, "  level: %d %s\n", resp.SelectedLevel, content.Content)
			} else {
				fmt.Fprintf(&sb, "  level: %d\n", resp.SelectedLevel)
			}
			renderFeedback(&sb, resp)
		}
	}

	var extra []string
	for key := range responses {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		resp := responses[key]
		fmt.Fprintf(&sb, "%s (not in ladder)\n  level: %d\n", key, resp.SelectedLevel)
		renderFeedback(&sb, resp)
	}

	return sb.String()
}

func renderFeedback(sb *strings.Builder, resp models.CompetencyResponse) {
	if resp.Feedback == nil {
		return
	}
	fb := assessment.DecomposeFeedback(*resp.Feedback)
	fmt.Fprintf(sb, "  evidence: %s\n", oneLine(fb.Evidence))
	fmt.Fprintf(sb, "  next: %s\n", oneLine(fb.NextLevelFeedback))
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " / ")
}

func writeDiff(w io.Writer, text string) error {
	if jsonOutput {
		return outputJSON(w, map[string]interface{}{
			"identical": text == "",
			"diff":      text,
		})
	}
	if text == "" {
		_, err := fmt.Fprintln(w, "assessments agree")
		return err
	}
	_, err := io.WriteString(w, text)
	return err
}
