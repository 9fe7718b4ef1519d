package cmd

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"mcpbox/internal/cmd"
	"mcpbox/internal/toolserver"
)

type ServeCmd struct {
	*cmd.BaseCmd
	dbPath string
}

// NewServeCmd creates the command that runs the bundled SQLite tool server
// over stdio. It is normally launched by `mcpbox chat` as a configured server
// entry, not invoked by hand.
func NewServeCmd(logger hclog.Logger) *cobra.Command {
	c := &ServeCmd{
		BaseCmd: &cmd.BaseCmd{},
	}
	c.SetLogger(logger)

	cobraCommand := &cobra.Command{
		Use:   "serve",
		Short: "Run the SQLite tool server over stdio",
		Long: "Runs the bundled SQLite MCP tool server, speaking JSON-RPC over stdin/stdout.\n\n" +
			"Stdout carries the protocol, so this command never writes anything else to it.",
		RunE: c.run,
	}

	cobraCommand.Flags().StringVar(&c.dbPath, "db", toolserver.DefaultDBPath, "path to the SQLite database file")

	return cobraCommand
}

func (c *ServeCmd) run(_ *cobra.Command, _ []string) error {
	logger := c.Logger().Named("toolserver")

	store, err := toolserver.NewStore(c.dbPath)
	if err != nil {
		logger.Error("Failed to open database", "path", c.dbPath, "error", err)
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	logger.Info("Serving tools over stdio", "db", c.dbPath)
	return toolserver.Serve(store)
}
