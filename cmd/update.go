package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/presentation"
	"github.com/zjrosen/cbconfig/internal/schema"
)

func newUpdateCmd(c *cli) *cobra.Command {
	var (
		dryRun       bool
		contextLines int
	)

	cmd := &cobra.Command{
		Use:   "update ID FILE|-",
		Short: "Replace a configuration's document",
		Long: `Replace the stored document of a configuration.

If the new document carries a different metadata.name, the configuration is
renamed as part of the update. The file keeps its identifier.

With --dry-run the new document is validated and a diff against the stored
document is printed. Nothing is written.

Examples:
  cbconfig update 1 sales-bot.json
  cbconfig update 000001 sales-bot.yaml --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIdentifier(args[0])
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()

				if dryRun {
					current, err := s.reg.Get(ctx, id)
					if err != nil {
						return err
					}
					next, err := schema.Validate(raw)
					if err != nil {
						return err
					}
					diff, err := presentation.CompareDocuments(current.Document, next)
					if err != nil {
						return err
					}
					if !diff.Changed() {
						_, err = fmt.Fprintln(out, "No changes")
						return err
					}
					added, removed := diff.Stats()
					_, err = fmt.Fprintf(out, "%s%d line(s) added, %d removed\n", diff.String(contextLines), added, removed)
					return err
				}

				rec, err := s.reg.Update(ctx, id, raw)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "Updated %s (%s)\n", rec.Filename(), rec.LogicalName)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and show the diff without writing")
	cmd.Flags().IntVar(&contextLines, "context", 3, "unchanged lines shown around each change in --dry-run")
	return cmd
}
