package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"mcpbox/internal/flags"
)

var version = "dev" // Set at build time using -ldflags

func Execute() {
	logger, err := configureLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error executing root command: %s", err)
		os.Exit(1)
	}

	rootCmd := NewRootCmd(logger)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd(logger hclog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mcpbox <command> [args]",
		Short:        "'mcpbox' connects Claude to MCP tool servers with health monitoring and metrics.",
		Long:         longDescription(),
		SilenceUsage: true,
		Version:      version,
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(NewInitCmd(logger))
	rootCmd.AddCommand(NewChatCmd(logger))
	rootCmd.AddCommand(NewDemoCmd(logger))
	rootCmd.AddCommand(NewServeCmd(logger))

	return rootCmd
}

func longDescription() string {
	return `mcpbox runs a conversation loop against the Anthropic API, launching the
configured MCP tool servers over stdio and routing model-requested tool calls
to them, with per-server health tracking and request metrics.`
}

func configureLogger() (hclog.Logger, error) {
	logPath := strings.TrimSpace(os.Getenv(flags.EnvVarLogPath))

	// If MCPBOX_LOG_PATH is not set, don't log anywhere.
	logOutput := io.Discard

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		logOutput = f
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "mcpbox",
		Level:  hclog.LevelFromString(getLogLevel()),
		Output: logOutput,
	})

	return logger, nil
}

func getLogLevel() string {
	lvl := strings.ToLower(os.Getenv(flags.EnvVarLogLevel))
	switch lvl {
	case "trace", "debug", "info", "warn", "error", "off":
		return lvl
	default:
		return "info"
	}
}
