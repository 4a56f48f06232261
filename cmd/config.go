package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/cbconfig/internal/config"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change cbconfig settings",
	}
	cmd.AddCommand(newConfigShowCmd(c), newConfigSetCmd(c))
	return cmd
}

func newConfigShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			source := c.configPath
			if source == "" {
				source = "defaults"
			}
			_, _ = fmt.Fprintf(out, "# source: %s\n", source)

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(settingsView(c.cfg)); err != nil {
				return fmt.Errorf("encoding settings: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigSetCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting in the config file",
		Long: `Set a dotted key in the config file in use, keeping its comments.

When no config file was found, <dir>/.cbconfig/config.yaml is created.

Examples:
  cbconfig config set server.port 9000
  cbconfig config set cache.ttl 5m

Flags must come before KEY; everything after it is taken literally, so
values such as -5m need no quoting.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				state, err := c.cfg.StateDir()
				if err != nil {
					return err
				}
				path = filepath.Join(state, "config.yaml")
			}
			if err := config.SetValue(path, args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
			return err
		},
	}
	// Values like -5m are arguments, not shorthand flags.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// settingsView is the resolved configuration in config-file shape.
func settingsView(cfg config.Config) map[string]any {
	dir, _ := cfg.ResolvedDir()
	catalog, _ := cfg.ResolvedCatalogPath()
	logPath, _ := cfg.ResolvedLogPath()
	tracing, _ := cfg.ResolvedTracing()

	return map[string]any{
		"dir":          dir,
		"catalog_path": catalog,
		"registry": map[string]any{
			"stamp_timestamps": cfg.Registry.StampTimestamps,
		},
		"cache": map[string]any{
			"enabled": cfg.Cache.Enabled,
			"ttl":     cfg.Cache.TTL.String(),
		},
		"log": map[string]any{
			"enabled": cfg.Log.Enabled,
			"path":    logPath,
			"level":   cfg.Log.Level,
		},
		"tracing": map[string]any{
			"enabled":       tracing.Enabled,
			"exporter":      tracing.Exporter,
			"file_path":     tracing.FilePath,
			"otlp_endpoint": tracing.OTLPEndpoint,
			"sample_rate":   tracing.SampleRate,
			"service_name":  tracing.ServiceName,
		},
		"server": map[string]any{
			"address":        cfg.Server.Address,
			"port":           cfg.Server.Port,
			"watch":          cfg.Server.Watch,
			"watch_debounce": cfg.Server.WatchDebounce.String(),
		},
	}
}
