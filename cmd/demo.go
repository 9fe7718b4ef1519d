package cmd

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"mcpbox/internal/cmd"
	"mcpbox/internal/config"
	"mcpbox/internal/metrics"
	"mcpbox/internal/model"
	"mcpbox/internal/orchestrator"
	"mcpbox/internal/session"
)

// demoQueries exercise every tool the bundled SQLite server exposes.
var demoQueries = []string{
	"What tables are in my database?",
	"Show me all users in the database",
	"What's the average age of users?",
	"Search for users with email containing 'test'",
	"Add a new user named Demo User with email demo4@example.com and age 28",
	"Show me users created today",
}

type DemoCmd struct {
	*cmd.BaseCmd
	cfgLoader config.Loader
}

// NewDemoCmd creates the command that runs a scripted tour of the tool
// server: a fixed set of queries, each driven through the full conversation
// loop, followed by the metrics summary.
func NewDemoCmd(logger hclog.Logger) *cobra.Command {
	c := &DemoCmd{
		BaseCmd:   &cmd.BaseCmd{},
		cfgLoader: &config.DefaultLoader{},
	}
	c.SetLogger(logger)

	cobraCommand := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted demo against the configured tool servers",
		RunE:  c.run,
	}

	return cobraCommand
}

func (c *DemoCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger := c.Logger()
	out := cobraCmd.OutOrStdout()
	ctx := cobraCmd.Context()

	cfg, err := c.LoadConfig(c.cfgLoader)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "" {
		logger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}

	sess := session.NewManager(logger, cfg.EnabledServers())
	if err := sess.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}
	defer sess.Shutdown()

	modelClient, err := model.NewAnthropicClient(logger, cfg.Model)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	orch := orchestrator.NewClient(logger, modelClient, sess, collector, cfg.Model)

	fmt.Fprintln(out, "🚀 mcpbox demo")
	fmt.Fprintf(out, "✅ Tool servers up: %d/%d\n", sess.HealthyServerCount(), sess.ServerCount())
	fmt.Fprintln(out)

	for i, query := range demoQueries {
		fmt.Fprintf(out, "🎯 Demo query %d: %s\n", i+1, query)

		result, err := orch.Send(ctx, query)
		if err != nil {
			fmt.Fprintf(out, "❌ Error: %v\n\n", err)
			continue
		}

		fmt.Fprintf(out, "🤖 %s\n\n", result.Text)
	}

	summary := collector.Summary()
	fmt.Fprintln(out, "✨ Demo complete.")
	fmt.Fprintf(out, "📊 Metrics: %d requests, %.0f%% success, avg %s, p95 %s\n",
		summary.TotalRequests, summary.SuccessRate*100, summary.AvgDuration, summary.P95Duration)
	fmt.Fprintln(out, "💡 Try interactive mode: mcpbox chat")

	return nil
}
