package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/presentation"
)

func newListCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configurations ordered by name",
		Long: `List every live configuration ordered by logical name, then identifier.

Examples:
  cbconfig list
  cbconfig list --json | jq '.[].name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				records := make([]presentation.RecordDTO, 0)
				for rec, err := range s.reg.List(ctx) {
					if err != nil {
						return err
					}
					records = append(records, presentation.FromDomainRecord(rec))
				}

				formatter := presentation.NewFormatter(cmd.OutOrStdout())
				if asJSON {
					return formatter.FormatRecords(records)
				}
				return formatter.FormatRecordsTable(records)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}
