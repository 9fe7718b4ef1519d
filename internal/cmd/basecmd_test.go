package cmd

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"mcpbox/internal/flags"
)

func TestBaseCmd_SetLogger(t *testing.T) {
	t.Parallel()

	c := &BaseCmd{}
	logger := hclog.NewNullLogger()
	c.SetLogger(logger)

	require.Equal(t, logger, c.Logger())
}

func TestBaseCmd_Logger_Fallback(t *testing.T) {
	flags.LogLevel = ""
	flags.LogPath = ""
	t.Setenv(flags.EnvVarLogLevel, "debug")
	t.Setenv(flags.EnvVarLogPath, "")

	c := &BaseCmd{}
	logger := c.Logger()
	require.NotNil(t, logger)
	require.True(t, logger.IsDebug())

	// The fallback logger is cached.
	require.Equal(t, logger, c.Logger())
}
