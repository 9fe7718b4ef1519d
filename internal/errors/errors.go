// Package errors defines domain-level errors used throughout the application.
// These errors represent business logic failures; callers match them with
// errors.Is and decide whether a failure is recoverable (e.g. retried,
// degraded) or terminal for the current request.
package errors

import (
	"errors"
)

var (
	// ErrConfigLoadFailed indicates the configuration file could not be read or decoded.
	// Fatal at startup.
	ErrConfigLoadFailed = errors.New("config load failed")

	// ErrConfigInvalid indicates the configuration was read but failed validation,
	// e.g. duplicate server names or a missing launch command. Fatal at startup.
	ErrConfigInvalid = errors.New("invalid config")

	// ErrSessionInit indicates that no usable MCP server came up during initialization.
	ErrSessionInit = errors.New("no MCP servers available")

	// ErrServerNotFound indicates that the named MCP server does not exist or is not configured.
	ErrServerNotFound = errors.New("server not found")

	// ErrDuplicateTool indicates two enabled servers advertise the same tool name.
	// Treated as a hard configuration error at initialization, never resolved by precedence.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrToolUnavailable indicates the server owning a tool is absent, unhealthy or
	// disabled. Returned without attempting a transport call.
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrToolTimeout indicates a single tool call exceeded the owning server's
	// configured timeout. Not retried automatically.
	ErrToolTimeout = errors.New("tool call timed out")

	// ErrToolCallFailed indicates a transport-level failure while calling a
	// tool (connection dropped, protocol error). The connection is marked
	// unhealthy.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrToolError indicates the tool server returned a structured tool-level
	// error result. The connection itself is fine; the error text is carried
	// alongside so callers can feed it back to the model.
	ErrToolError = errors.New("tool returned an error")

	// ErrInvalidToolArgs indicates tool arguments did not validate against the
	// tool's advertised input schema.
	ErrInvalidToolArgs = errors.New("invalid tool arguments")

	// ErrToolLoopExceeded indicates the model kept requesting tools past the
	// per-turn iteration cap.
	ErrToolLoopExceeded = errors.New("tool iteration limit exceeded")

	// ErrModelTransient indicates a retryable model API failure
	// (rate limit, timeout, 5xx-equivalent). Retried with backoff.
	ErrModelTransient = errors.New("transient model API error")

	// ErrModelFatal indicates a non-retryable model API failure
	// (bad request, auth error). Surfaced immediately.
	ErrModelFatal = errors.New("model API error")

	// ErrHealthNotTracked indicates health monitoring is not enabled for the
	// specified server.
	ErrHealthNotTracked = errors.New("server health is not being tracked")
)
