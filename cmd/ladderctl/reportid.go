package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/internal/reportid"
)

var reportIDCmd = &cobra.Command{
	Use:   "report-id",
	Short: "Build and inspect report identifiers",
}

var reportIDCreateCmd = &cobra.Command{
	Use:   "create USER ASSESSMENT TYPE",
	Short: "Build the identifier of a report",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportType := models.ReportType(args[2])
		if !reportType.Valid() {
			return fmt.Errorf("type must be %q or %q, got %q", models.ReportSelf, models.ReportManager, args[2])
		}

		id := reportid.Create(args[0], args[1], reportType)
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"id": id})
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var reportIDParseCmd = &cobra.Command{
	Use:   "parse ID",
	Short: "Split a report identifier into its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ident, err := reportid.Parse(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), ident)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user:       %s\nassessment: %s\ntype:       %s\n",
			ident.UserID, ident.AssessmentID, ident.Type)
		return nil
	},
}

func init() {
	reportIDCmd.AddCommand(reportIDCreateCmd, reportIDParseCmd)
	rootCmd.AddCommand(reportIDCmd)
}
