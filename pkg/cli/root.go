// Package cli implements the duckpipe command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/engine"
)

var (
	version = "dev"
	commit  = "none"
)

// app carries state resolved once in PersistentPreRunE and shared by every
// subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) engineOptions() engine.Options {
	return engine.Options{Threads: a.cfg.DuckDBThreads, MemoryLimit: a.cfg.DuckDBMemLimit}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd, os.Stdout, os.Stderr, err)
		return 1
	}
	return 0
}

// reportedError marks an error whose details the command already printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func reportError(rootCmd *cobra.Command, stdout, stderr io.Writer, err error) {
	var reported reportedError
	if errors.As(err, &reported) {
		return
	}
	output, _ := rootCmd.PersistentFlags().GetString("output")
	if output == "json" {
		_ = PrintJSON(stdout, map[string]any{
			"error": err.Error(),
			"kind":  errorKind(err),
		})
		return
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
}

func newRootCmd() *cobra.Command {
	var (
		output    string
		logLevel  string
		logFormat string
		envFile   string
	)
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "duckpipe",
		Short:         "Config-driven ETL on DuckDB",
		Long:          "Stages CSV and Parquet files into DuckDB, runs SQL transformations, and publishes curated tables to Postgres or SQLite.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			// Apply precedence: flag > env > default
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}

			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg)
			for _, w := range cfg.Warnings {
				a.logger.Warn(w)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newValidateCmd(a))
	rootCmd.AddCommand(newPlanCmd(a))
	rootCmd.AddCommand(newTablesCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newScheduleCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newLogger builds the process logger. Logs go to stderr so table and JSON
// output on stdout stay machine-readable.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
