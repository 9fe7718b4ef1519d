package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"mcpbox/internal/api"
	"mcpbox/internal/cmd"
	"mcpbox/internal/config"
	"mcpbox/internal/metrics"
	"mcpbox/internal/model"
	"mcpbox/internal/orchestrator"
	"mcpbox/internal/session"
	"mcpbox/internal/shell"
)

type ChatCmd struct {
	*cmd.BaseCmd
	cfgLoader   config.Loader
	apiAddr     string
	corsOrigins []string
}

// NewChatCmd creates the interactive chat command. It wires the full stack:
// config, session manager, metrics collector, model client, orchestration
// client, and optionally the read-only status API.
func NewChatCmd(logger hclog.Logger) *cobra.Command {
	c := &ChatCmd{
		BaseCmd:   &cmd.BaseCmd{},
		cfgLoader: &config.DefaultLoader{},
	}
	c.SetLogger(logger)

	cobraCommand := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat with MCP tools attached",
		Long: "Launches the configured MCP tool servers, connects to the Anthropic API, and starts\n" +
			"an interactive chat loop. Type '/help' inside the chat for available commands.",
		RunE: c.run,
	}

	cobraCommand.Flags().StringVar(&c.apiAddr, "addr", "",
		"listen address for the status API (e.g. localhost:8090); empty disables it")
	cobraCommand.Flags().StringSliceVar(&c.corsOrigins, "cors-origin", nil,
		"allowed CORS origins for the status API; empty disables CORS")

	return cobraCommand
}

func (c *ChatCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger := c.Logger()
	out := cobraCmd.OutOrStdout()

	cfg, err := c.LoadConfig(c.cfgLoader)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "" {
		logger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}

	ctx, stop := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.NewManager(logger, cfg.EnabledServers())
	if err := sess.Initialize(ctx); err != nil {
		logger.Error("Session initialization failed", "error", err)
		return fmt.Errorf("initializing session: %w", err)
	}
	defer sess.Shutdown()

	sess.StartHealthLoop(ctx)

	modelClient, err := model.NewAnthropicClient(logger, cfg.Model)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	orch := orchestrator.NewClient(logger, modelClient, sess, collector, cfg.Model)

	if c.apiAddr != "" {
		if err := c.startStatusAPI(ctx, logger, sess, collector); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "🚀 mcpbox chat")
	fmt.Fprintf(out, "✅ Tool servers up: %d/%d\n", sess.HealthyServerCount(), sess.ServerCount())
	fmt.Fprintf(out, "✅ Tools available: %d\n", len(sess.Tools()))
	fmt.Fprintln(out)

	sh := shell.NewShell(logger, orch, collector, sess.Health(), cobraCmd.InOrStdin(), out)
	if err := sh.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// startStatusAPI serves health and metrics over HTTP in the background for
// the lifetime of the chat session.
func (c *ChatCmd) startStatusAPI(
	ctx context.Context,
	logger hclog.Logger,
	sess *session.Manager,
	collector *metrics.Collector,
) error {
	var opts []api.Option
	if len(c.corsOrigins) > 0 {
		opts = append(opts, api.WithCORS(api.CORSConfig{
			Enabled:      true,
			AllowOrigins: c.corsOrigins,
			AllowMethods: []string{"GET", "OPTIONS"},
		}))
	}

	srv, err := api.NewServer(logger, sess.Health(), collector, c.apiAddr, opts...)
	if err != nil {
		return fmt.Errorf("configuring status API: %w", err)
	}

	go func() {
		if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Status API stopped", "error", err)
		}
	}()

	return nil
}
