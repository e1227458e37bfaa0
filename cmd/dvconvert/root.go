package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dvmap-service/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config   string
	schema   string
	rules    string
	clusters string
	logLevel string
	logFile  string
}

// заполняются в PersistentPreRunE
var (
	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dvconvert",
	Short: "Standardize dependent-variable column names against a DV schema",
	Long: "dvconvert maps raw column headers of experiment datasets to canonical\n" +
		"dependent-variable ids (exact, alias and fuzzy matching) and infers\n" +
		"measurement metadata for every column.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	pf.StringVar(&rootFlags.schema, "schema", "", "DV schema YAML (overrides schema_path)")
	pf.StringVar(&rootFlags.rules, "rules", "", "Inference rule table YAML (default: built-in rules)")
	pf.StringVar(&rootFlags.clusters, "clusters", "", "Separate clusters YAML")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "debug|info|warn|error")
	pf.StringVar(&rootFlags.logFile, "log-file", "", "Also write logs to this file (rotated)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = version
}

// setup: конфиг (файл + env) поверх него флаги, логгер в stderr.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadFile(rootFlags.config)
	if err != nil {
		return err
	}
	if rootFlags.schema != "" {
		c.SchemaPath = rootFlags.schema
	}
	if rootFlags.rules != "" {
		c.RulesPath = rootFlags.rules
	}
	if rootFlags.clusters != "" {
		c.ClustersPath = rootFlags.clusters
	}
	if rootFlags.logLevel != "" {
		c.LogLevel = rootFlags.logLevel
	}
	// CLI пишет лог в файл только по явному флагу
	c.LogFile = rootFlags.logFile

	cfg = c
	logger = config.SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
