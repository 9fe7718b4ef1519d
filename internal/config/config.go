package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"mcpbox/internal/errors"
)

const (
	defaultModelName         = "claude-sonnet-4-5"
	defaultMaxTokens         = 4000
	defaultMaxToolIterations = 8
	defaultMaxRetries        = 3
	defaultBaseDelay         = 500 * time.Millisecond
	defaultMaxDelay          = 8 * time.Second
	defaultTimeoutSeconds    = 30
	defaultHealthSeconds     = 60
)

// defaultConfig is written by Init. The single configured server is the
// embedded SQLite tool server, launched as a child process of this binary.
const defaultConfig = `log_level = "info"

[model]
name = "claude-sonnet-4-5"
max_tokens = 4000
max_tool_iterations = 8
max_retries = 3
base_delay = "500ms"
max_delay = "8s"

[[servers]]
name = "sqlite-database"
command = "mcpbox"
args = ["serve"]
enabled = true
timeout_seconds = 30
max_retries = 3
health_check_interval_seconds = 60

[servers.metadata]
description = "SQLite database MCP server"
version = "1.0.0"
`

// Init creates the base skeleton configuration file for an mcpbox project.
func (d *DefaultLoader) Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func (d *DefaultLoader) Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", errors.ErrConfigLoadFailed)
	}

	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file cannot be found, run: 'mcpbox init'", errors.ErrConfigLoadFailed)
		}
		return nil, fmt.Errorf("%w: failed to stat config file (%s): %w", errors.ErrConfigLoadFailed, path, err)
	}

	var cfg *Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode config from file (%s): %w", errors.ErrConfigLoadFailed, path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config file is empty (%s)", errors.ErrConfigLoadFailed, path)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.configFilePath = path

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		c.Model.Name = defaultModelName
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = defaultMaxTokens
	}
	if c.Model.MaxToolIterations <= 0 {
		c.Model.MaxToolIterations = defaultMaxToolIterations
	}
	if c.Model.MaxRetries <= 0 {
		c.Model.MaxRetries = defaultMaxRetries
	}
	if c.Model.BaseDelay <= 0 {
		c.Model.BaseDelay = Duration(defaultBaseDelay)
	}
	if c.Model.MaxDelay <= 0 {
		c.Model.MaxDelay = Duration(defaultMaxDelay)
	}

	for i := range c.Servers {
		if c.Servers[i].TimeoutSeconds <= 0 {
			c.Servers[i].TimeoutSeconds = defaultTimeoutSeconds
		}
		if c.Servers[i].MaxRetries <= 0 {
			c.Servers[i].MaxRetries = 1
		}
		if c.Servers[i].HealthCheckIntervalSeconds <= 0 {
			c.Servers[i].HealthCheckIntervalSeconds = defaultHealthSeconds
		}
	}
}

// Validate enforces the structural invariants the rest of the system relies
// on: unique non-empty server names, and a launch command for every enabled
// server. Violations are fatal at startup.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Servers))

	for _, s := range c.Servers {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("%w: server name cannot be empty", errors.ErrConfigInvalid)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate server name %q", errors.ErrConfigInvalid, name)
		}
		seen[name] = struct{}{}

		if s.IsEnabled() && strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("%w: server %q has no launch command", errors.ErrConfigInvalid, name)
		}
	}

	if c.Model.MaxDelay < c.Model.BaseDelay {
		return fmt.Errorf("%w: model max_delay must not be below base_delay", errors.ErrConfigInvalid)
	}

	return nil
}

// EnabledServers returns the servers that should be launched.
func (c *Config) EnabledServers() []ServerEntry {
	out := make([]ServerEntry, 0, len(c.Servers))
	for _, s := range c.Servers {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}
