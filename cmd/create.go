package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/presentation"
)

func newCreateCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "create FILE|-",
		Short: "Add a configuration under the next free identifier",
		Long: `Validate a JSON or YAML document and store it as the next NNNNNN.json.

The document's metadata.name must not be used by another configuration.
Identifiers are never reused, even after a delete. The stored file is always
JSON.

Examples:
  cbconfig create sales-bot.json
  cbconfig create sales-bot.yaml
  cat sales-bot.json | cbconfig create -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				rec, err := s.reg.Create(ctx, raw)
				if err != nil {
					return err
				}
				if asJSON {
					return presentation.NewFormatter(cmd.OutOrStdout()).JSON(presentation.FromDomainRecord(rec))
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", rec.Filename(), rec.LogicalName)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the created record as JSON")
	return cmd
}
