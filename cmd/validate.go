package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/presentation"
	"github.com/zjrosen/cbconfig/internal/schema"
)

func newValidateCmd(_ *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate FILE|-",
		Short: "Check a document against the configuration schema",
		Long: `Validate a JSON or YAML document without storing it and print a summary.

Every problem is reported with the path of the offending field.

Examples:
  cbconfig validate sales-bot.json
  cbconfig validate - < sales-bot.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := schema.Validate(raw)
			if err != nil {
				return err
			}

			formatter := presentation.NewFormatter(cmd.OutOrStdout())
			summary := presentation.SummarizeDocument(doc)
			if asJSON {
				return formatter.JSON(summary)
			}
			return formatter.FormatSummary(summary)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}
