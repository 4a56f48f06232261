package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cbconfig/internal/config"
)

func newInitCmd(c *cli) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Prepare a configuration directory",
		Long: `Create the catalog for a configuration directory and write a default
config file.

By default the config is written to <dir>/.cbconfig/config.yaml. With --global
it is written to ~/.config/cbconfig/config.yaml and records the directory, so
cbconfig can be run from anywhere.

Any NNNNNN.json files already in the directory raise the identifier counter so
existing identifiers are never handed out again. Run 'cbconfig check' to see
files that have no catalog record.

Examples:
  cbconfig init
  cbconfig init --dir ~/chatbots --global`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := c.cfg.ResolvedDir()
			if err != nil {
				return err
			}

			configPath := filepath.Join(dir, config.StateDirName, "config.yaml")
			if global {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("finding home directory: %w", err)
				}
				configPath = filepath.Join(home, ".config", "cbconfig", "config.yaml")
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(configPath); err == nil {
				_, _ = fmt.Fprintf(out, "Config already exists: %s\n", configPath)
			} else {
				if err := config.WriteDefaultConfig(configPath); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Wrote config: %s\n", configPath)
			}
			if global {
				if err := config.SetValue(configPath, "dir", dir); err != nil {
					return err
				}
			}

			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				records, err := s.reg.ListAll(ctx)
				if err != nil {
					return err
				}
				catalogPath, err := c.cfg.ResolvedCatalogPath()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "Catalog ready: %s (%d configurations)\n", catalogPath, len(records))
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write the user config and record the directory in it")
	return cmd
}
