package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/presentation"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
)

// faultsFoundError makes check exit with the consistency fault code.
type faultsFoundError struct {
	count int
}

func (e *faultsFoundError) Error() string {
	return fmt.Sprintf("%d consistency fault(s) found", e.count)
}

func (e *faultsFoundError) Kind() domain.Kind { return domain.KindConsistencyFault }

func newCheckCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the catalog with the files on disk",
		Long: `Report every disagreement between the catalog and the directory:

  missing_file      a catalog record has no file
  invalid_document  a file no longer passes validation
  name_drift        a file's metadata.name differs from the catalog name
  orphan_file       a NNNNNN.json file has no catalog record

Nothing is repaired. The exit code is non-zero when any fault is found.

Examples:
  cbconfig check
  cbconfig check --json | jq '.faults'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				report, err := s.reg.Check(ctx)
				if err != nil {
					return err
				}

				formatter := presentation.NewFormatter(cmd.OutOrStdout())
				dto := presentation.FromReport(report)
				if asJSON {
					err = formatter.JSON(dto)
				} else {
					err = formatter.FormatReportTable(dto)
				}
				if err != nil {
					return err
				}
				if !report.OK() {
					return &faultsFoundError{count: len(report.Faults)}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
