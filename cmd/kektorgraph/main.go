// Command kektorgraph serves and runs multi-step graph traversals over
// pluggable edge backends.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorgraph/pkg/config"
	"github.com/sanonone/kektorgraph/pkg/engine"

	// Backends register themselves by type name.
	_ "github.com/sanonone/kektorgraph/pkg/fetcher/badgerdb"
	_ "github.com/sanonone/kektorgraph/pkg/fetcher/duckdb"
	_ "github.com/sanonone/kektorgraph/pkg/fetcher/memory"
	_ "github.com/sanonone/kektorgraph/pkg/fetcher/neo4jdb"
)

var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:           "kektorgraph",
		Short:         "Multi-step graph traversal server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file (defaults to one in-memory backend)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override the configured log format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(loadCmd)
}

// newLogger creates a slog.Logger without touching the global default.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}

// loadConfig reads --config and applies the logging overrides.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	// Logs go to stderr so stdout stays clean for results and stdio MCP.
	return cfg, newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr), nil
}

func openEngine(ctx context.Context) (*engine.Engine, config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, cfg, nil, err
	}
	eng, err := engine.Open(ctx, cfg, logger)
	if err != nil {
		return nil, cfg, nil, err
	}
	return eng, cfg, logger, nil
}
