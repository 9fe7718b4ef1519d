package flags

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	ConfigFile = ""
	LogPath = ""
	LogLevel = ""
}

func TestInitFlags_Defaults(t *testing.T) {
	resetFlags()
	t.Setenv(EnvVarConfigFile, "")
	t.Setenv(EnvVarLogPath, "")
	t.Setenv(EnvVarLogLevel, "")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	InitFlags(fs)

	require.NoError(t, fs.Parse(nil))
	require.Equal(t, DefaultConfigFile, ConfigFile)
	require.Equal(t, DefaultLogPath, LogPath)
	require.Equal(t, DefaultLogLevel, LogLevel)
}

func TestInitFlags_EnvFallback(t *testing.T) {
	resetFlags()
	t.Setenv(EnvVarConfigFile, "/tmp/custom.toml")
	t.Setenv(EnvVarLogPath, "/tmp/mcpbox.log")
	t.Setenv(EnvVarLogLevel, "DEBUG")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	InitFlags(fs)

	require.NoError(t, fs.Parse(nil))
	require.Equal(t, "/tmp/custom.toml", ConfigFile)
	require.Equal(t, "/tmp/mcpbox.log", LogPath)
	// Levels are normalized to lower case.
	require.Equal(t, "debug", LogLevel)
}

func TestInitFlags_FlagOverridesEnv(t *testing.T) {
	resetFlags()
	t.Setenv(EnvVarConfigFile, "/tmp/from-env.toml")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	InitFlags(fs)

	require.NoError(t, fs.Parse([]string{"--" + FlagNameConfigFile, "/tmp/from-flag.toml"}))
	require.Equal(t, "/tmp/from-flag.toml", ConfigFile)
}
