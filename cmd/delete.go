package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/presentation"
)

func newDeleteCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Remove a configuration",
		Long: `Remove a configuration's file and retire its catalog record.

The identifier is never handed out again. If the file was already gone the
record is still retired and the fault is reported as a warning.

Examples:
  cbconfig delete 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIdentifier(args[0])
			if err != nil {
				return err
			}

			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				result, err := s.reg.Delete(ctx, id)
				if err != nil {
					return err
				}
				if asJSON {
					return presentation.NewFormatter(cmd.OutOrStdout()).JSON(presentation.FromDeleteResult(result))
				}

				for _, f := range result.Faults {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", f)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", result.Record.Filename(), result.Record.LogicalName)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the deleted record and any faults as JSON")
	return cmd
}
