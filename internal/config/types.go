package config

import (
	"time"
)

var (
	_ Provider = (*DefaultLoader)(nil)
)

// Loader loads configuration from a file path.
type Loader interface {
	Load(path string) (*Config, error)
}

// Initializer scaffolds a new configuration file.
type Initializer interface {
	Init(path string) error
}

type Provider interface {
	Initializer
	Loader
}

type DefaultLoader struct{}

// Config represents the .mcpbox.toml file structure. It is loaded once at
// startup and treated as immutable for the process lifetime.
type Config struct {
	LogLevel string        `toml:"log_level" json:"log_level" yaml:"log_level"`
	Model    ModelConfig   `toml:"model" json:"model" yaml:"model"`
	Servers  []ServerEntry `toml:"servers" json:"servers" yaml:"servers"`

	configFilePath string `toml:"-"`
}

// ModelConfig configures the model API boundary and the retry policy applied
// around model calls.
type ModelConfig struct {
	// Name is the model identifier sent to the API.
	Name string `toml:"name" json:"name" yaml:"name"`

	// MaxTokens caps the response length per model call.
	MaxTokens int64 `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`

	// MaxToolIterations caps the number of model->tool->model rounds in a
	// single conversational turn.
	MaxToolIterations int `toml:"max_tool_iterations" json:"max_tool_iterations" yaml:"max_tool_iterations"`

	// MaxRetries is the number of retries after the first model call attempt,
	// applied only to transient failures.
	MaxRetries int `toml:"max_retries" json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the initial backoff delay, doubled per attempt.
	BaseDelay Duration `toml:"base_delay" json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps the backoff delay.
	MaxDelay Duration `toml:"max_delay" json:"max_delay" yaml:"max_delay"`
}

// ServerEntry represents the configuration of a single MCP server.
type ServerEntry struct {
	// Name is the unique name referenced when routing tools, e.g. 'sqlite-database'.
	Name string `toml:"name" json:"name" yaml:"name"`

	// Command is the executable launched to run the server over stdio.
	Command string `toml:"command" json:"command" yaml:"command"`

	// Args are passed to Command verbatim.
	Args []string `toml:"args,omitempty" json:"args,omitempty" yaml:"args,omitempty"`

	// Enabled controls whether the server is launched; nil means enabled.
	Enabled *bool `toml:"enabled,omitempty" json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// TimeoutSeconds bounds the handshake and each tool call to this server.
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`

	// MaxRetries is the number of handshake attempts during initialization.
	MaxRetries int `toml:"max_retries" json:"max_retries" yaml:"max_retries"`

	// HealthCheckIntervalSeconds sets the liveness probe cadence.
	HealthCheckIntervalSeconds int `toml:"health_check_interval_seconds" json:"health_check_interval_seconds" yaml:"health_check_interval_seconds"`

	// Metadata carries free-form descriptive key/values, unused by routing.
	Metadata map[string]string `toml:"metadata,omitempty" json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Duration wraps time.Duration so TOML values like "500ms" decode directly.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// IsEnabled reports whether the server should be launched. Servers are
// enabled unless explicitly switched off.
func (e ServerEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Timeout returns the per-call timeout for this server.
func (e ServerEntry) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// HealthCheckInterval returns the liveness probe cadence for this server.
func (e ServerEntry) HealthCheckInterval() time.Duration {
	return time.Duration(e.HealthCheckIntervalSeconds) * time.Second
}

// Path returns the file path this config was loaded from.
func (c *Config) Path() string {
	return c.configFilePath
}
