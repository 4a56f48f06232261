package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRenameCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NEW-NAME",
		Short: "Change a configuration's logical name",
		Long: `Set metadata.name of a stored configuration. The file keeps its identifier.

Renaming to the current name does nothing. Renaming to a name held by another
configuration fails and changes nothing.

Examples:
  cbconfig rename 1 revenue-bot`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIdentifier(args[0])
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[1])

			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				rec, err := s.reg.Rename(ctx, id, name)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", rec.Filename(), rec.LogicalName)
				return err
			})
		},
	}
}
