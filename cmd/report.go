package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/candidate-cli/internal/normalize"
	"github.com/sells-group/candidate-cli/internal/table"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize how well a normalized table was matched",
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")
		format, _ := cmd.Flags().GetString("format")

		tbl, err := table.Load(cmd.Context(), input)
		if err != nil {
			return err
		}
		rep, err := normalize.BuildReport(tbl)
		if err != nil {
			return err
		}
		return normalize.WriteReport(os.Stdout, rep, format)
	},
}

func init() {
	reportCmd.Flags().String("input", "", "normalized table (.csv or .xlsx)")
	reportCmd.Flags().String("format", normalize.FormatText, "output format (text, json)")
	_ = reportCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(reportCmd)
}
