package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/presentation"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/schema"
)

func newGetCmd(c *cli) *cobra.Command {
	var (
		asJSON bool
		asYAML bool
		byName bool
	)

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Print a configuration document",
		Long: `Print the stored document for a configuration.

ID accepts 42, 000042 or 000042.json. With --name the argument is the
configuration's logical name instead.

Examples:
  cbconfig get 1
  cbconfig get --name sales-bot --yaml
  cbconfig get 000001 --json | jq '.document.llm_parameters'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asYAML {
				return usagef("--json and --yaml are mutually exclusive")
			}

			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				var (
					rec domain.Record
					err error
				)
				if byName {
					rec, err = s.reg.GetByName(ctx, args[0])
				} else {
					id, perr := parseIdentifier(args[0])
					if perr != nil {
						return perr
					}
					rec, err = s.reg.Get(ctx, id)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				var raw []byte
				switch {
				case asJSON:
					return presentation.NewFormatter(out).JSON(presentation.FromDomainRecord(rec))
				case asYAML:
					raw, err = schema.RenderYAML(rec.Document)
				default:
					raw, err = schema.Render(rec.Document)
				}
				if err != nil {
					return err
				}
				_, err = out.Write(raw)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record and its document as JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the document as YAML")
	cmd.Flags().BoolVar(&byName, "name", false, "look the configuration up by logical name")
	return cmd
}
