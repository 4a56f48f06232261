package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/cbconfig/internal/config"
	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/presentation"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
)

// Exit codes for CLI commands, one per registry error kind.
const (
	ExitCodeSuccess             = 0
	ExitCodeError               = 1
	ExitCodeValidation          = 2
	ExitCodeDuplicateName       = 3
	ExitCodeNotFound            = 4
	ExitCodeConsistencyFault    = 5
	ExitCodeIOFailure           = 6
	ExitCodeAllocationExhausted = 7
)

var version = "dev"

// cli holds state shared by every subcommand of one invocation.
type cli struct {
	cfgFile string
	dir     string
	debug   bool

	cfg        config.Config
	configPath string
	closers    []func()
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "cbconfig",
		Short: "Manage a directory of chatbot configuration files",
		Long: `cbconfig keeps a directory of chatbot configuration documents consistent.

Every configuration is stored as NNNNNN.json under a permanent six-digit
identifier that is never handed out twice. The logical name embedded in each
document (metadata.name) is unique across live configurations, and a catalog
in .cbconfig/catalog.db tracks every record.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initConfig,
	}
	rootCmd.SetVersionTemplate(`{{printf "cbconfig version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "",
		"config file (default: ./.cbconfig/config.yaml or ~/.config/cbconfig/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&c.dir, "dir", "d", "",
		"configuration directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&c.debug, "debug", false,
		"write a debug log (also CBCONFIG_DEBUG=1)")

	rootCmd.AddCommand(
		newListCmd(c),
		newGetCmd(c),
		newCreateCmd(c),
		newUpdateCmd(c),
		newRenameCmd(c),
		newDeleteCmd(c),
		newValidateCmd(c),
		newCheckCmd(c),
		newServeCmd(c),
		newInitCmd(c),
		newConfigCmd(c),
	)
	return rootCmd, c
}

// initConfig resolves the config file, loads it over the defaults and turns
// on the debug log when asked.
//
// Config lookup order:
//  1. --config
//  2. <dir>/.cbconfig/config.yaml (current directory when --dir is unset)
//  3. ~/.config/cbconfig/config.yaml
//  4. built-in defaults
func (c *cli) initConfig(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	config.SetDefaults(v)
	v.SetEnvPrefix("CBCONFIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if c.cfgFile != "" {
		v.SetConfigFile(c.cfgFile)
	} else {
		local := filepath.Join(c.dir, config.StateDirName, "config.yaml")
		if _, err := os.Stat(local); err == nil {
			v.SetConfigFile(local)
		} else {
			home, _ := os.UserHomeDir()
			v.AddConfigPath(filepath.Join(home, ".config", "cbconfig"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	c.configPath = v.ConfigFileUsed()

	if c.dir != "" {
		v.Set("dir", c.dir)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.debug || os.Getenv("CBCONFIG_DEBUG") != "" || cfg.Log.Enabled {
		if err := c.initLog(); err != nil {
			return err
		}
	}

	log.Debug(log.CatConfig, "config loaded", "command", cmd.Name(), "file", c.configPath)
	return nil
}

func (c *cli) initLog() error {
	path, err := c.cfg.ResolvedLogPath()
	if err != nil {
		return err
	}
	if env := os.Getenv("CBCONFIG_LOG"); env != "" {
		path = env
	}

	cleanup, err := log.Init(path)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	c.closers = append(c.closers, cleanup)

	level, err := log.ParseLevel(c.cfg.Log.Level)
	if err == nil {
		log.SetMinLevel(level)
	}
	log.Info(log.CatConfig, "cbconfig starting", "version", version, "logPath", path)
	return nil
}

func (c *cli) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// run executes args against a fresh command tree and returns the process
// exit code. Errors are printed to stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd, c := newRootCmd()
	defer c.close()

	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitCodeSuccess
	}

	var usage *usageError
	if errors.As(err, &usage) || isCobraUsageError(err) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		_, _ = fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		return ExitCodeError
	}

	_ = presentation.NewFormatter(stderr).FormatError(presentation.FromError(err))
	return exitCode(err)
}

// Execute runs the root command with the process arguments.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}

// exitCode maps an error to a process exit code by its registry kind.
func exitCode(err error) int {
	switch domain.KindOf(err) {
	case "":
		return ExitCodeSuccess
	case domain.KindValidation:
		return ExitCodeValidation
	case domain.KindDuplicateName:
		return ExitCodeDuplicateName
	case domain.KindNotFound:
		return ExitCodeNotFound
	case domain.KindConsistencyFault:
		return ExitCodeConsistencyFault
	case domain.KindIOFailure:
		return ExitCodeIOFailure
	case domain.KindAllocationExhausted:
		return ExitCodeAllocationExhausted
	default:
		return ExitCodeError
	}
}

// usageError is a bad invocation rather than a failed operation.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// isCobraUsageError recognises the argument and flag errors cobra returns
// before a command runs.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "flag needs an argument", "invalid argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
