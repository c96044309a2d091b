// Package cmd implements the CLI commands for compressr.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/compressr/internal/config"
	"github.com/jmylchreest/compressr/internal/observability"
	"github.com/jmylchreest/compressr/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "compressr",
	Short:   "Chat-driven video transcoding service",
	Version: version.Short(),
	Long: `compressr is a single-owner video transcoding service driven through a
chat messenger. Videos arrive as uploads or direct-download links, queue
up FIFO, and are transcoded with FFmpeg one at a time while progress is
reported back into the chat.

A read-only diagnostics HTTP API runs alongside the bot for health
probes and queue/run inspection.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// These flags are NOT bound to viper. loadConfig checks Changed() and
	// only then overrides config/env values, preserving the priority:
	// CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/compressr, $HOME/.compressr)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// loadConfig loads the service configuration and applies explicit CLI
// logging overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}

	return cfg, nil
}

// initLogger builds the redacting logger and installs it as the default.
func initLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)
	return logger
}
