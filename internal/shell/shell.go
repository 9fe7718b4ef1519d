// Package shell implements the interactive chat loop that wraps the
// orchestration client. It is a plain line-oriented REPL: slash commands are
// handled locally, everything else is forwarded as a conversation turn.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"mcpbox/internal/cmd/output"
	"mcpbox/internal/contracts"
	"mcpbox/internal/domain"
	"mcpbox/internal/orchestrator"
)

// Conversation is what the shell needs from the orchestration client.
type Conversation interface {
	Send(ctx context.Context, message string) (*orchestrator.TurnResult, error)
	ClearHistory()
}

// MetricsStore provides the summary view plus the explicit reset operation.
type MetricsStore interface {
	Summary() domain.Summary
	Reset()
}

// Shell is the interactive command loop.
// NewShell should be used to create instances of Shell.
type Shell struct {
	logger  hclog.Logger
	conv    Conversation
	metrics MetricsStore
	health  contracts.MCPHealthMonitor
	in      io.Reader
	out     io.Writer
}

func NewShell(
	logger hclog.Logger,
	conv Conversation,
	metrics MetricsStore,
	health contracts.MCPHealthMonitor,
	in io.Reader,
	out io.Writer,
) *Shell {
	return &Shell{
		logger:  logger.Named("shell"),
		conv:    conv,
		metrics: metrics,
		health:  health,
		in:      in,
		out:     out,
	}
}

// Run reads lines until EOF, /quit, or context cancellation. Errors from
// individual turns are reported and the loop continues; only I/O failure on
// the input stream ends the loop with an error.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "mcpbox chat ready. Type '/help' for commands or '/quit' to exit.")
	fmt.Fprintln(s.out)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(s.out, "you> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			// EOF.
			fmt.Fprintln(s.out)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.handleCommand(line); quit {
				return nil
			}
			continue
		}

		result, err := s.conv.Send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("Turn failed", "error", err)
			fmt.Fprintf(s.out, "\nerror: %v\n\n", err)
			continue
		}

		fmt.Fprintf(s.out, "\nassistant> %s\n", result.Text)
		if len(result.ToolsInvoked) > 0 {
			fmt.Fprintf(s.out, "(tools used: %s)\n", strings.Join(result.ToolsInvoked, ", "))
		}
		fmt.Fprintln(s.out)
	}
}

// handleCommand dispatches a slash command and reports whether the loop
// should exit.
func (s *Shell) handleCommand(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	cmd := fields[0]

	switch cmd {
	case "/quit", "/exit":
		fmt.Fprintln(s.out, "Goodbye!")
		return true
	case "/clear":
		s.conv.ClearHistory()
		fmt.Fprintln(s.out, "Conversation cleared")
		fmt.Fprintln(s.out)
	case "/metrics":
		s.showMetrics(fields[1:])
	case "/servers":
		s.showServers()
	case "/help":
		s.showHelp()
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n\n", line)
	}

	return false
}

func (s *Shell) showHelp() {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  /clear                  - Clear conversation history")
	fmt.Fprintln(s.out, "  /metrics [json|yaml]    - Show request metrics summary")
	fmt.Fprintln(s.out, "  /metrics reset          - Discard all recorded metrics")
	fmt.Fprintln(s.out, "  /servers                - Show tool server health")
	fmt.Fprintln(s.out, "  /help                   - Show this help")
	fmt.Fprintln(s.out, "  /quit                   - Exit chat")
	fmt.Fprintln(s.out)
}

// showMetrics prints the current summary. With no argument it writes a plain
// key/value listing; "json" and "yaml" produce machine-readable output via
// the shared output handlers.
func (s *Shell) showMetrics(args []string) {
	format := ""
	if len(args) > 0 {
		format = args[0]
	}

	if format == "reset" {
		s.metrics.Reset()
		fmt.Fprintln(s.out, "Metrics cleared")
		fmt.Fprintln(s.out)
		return
	}

	summary := s.summaryWithHealth()

	switch format {
	case "json":
		h := output.NewJSONHandler[domain.Summary](s.out, 2)
		if err := h.HandleResult(summary); err != nil {
			s.logger.Error("Failed to render metrics", "format", format, "error", err)
		}
	case "yaml":
		h := output.NewYAMLHandler[domain.Summary](s.out, 2)
		if err := h.HandleResult(summary); err != nil {
			s.logger.Error("Failed to render metrics", "format", format, "error", err)
		}
	case "":
		fmt.Fprintln(s.out)
		fmt.Fprintln(s.out, "System metrics:")
		fmt.Fprintf(s.out, "  total_requests:  %d\n", summary.TotalRequests)
		fmt.Fprintf(s.out, "  successful:      %d\n", summary.Successful)
		fmt.Fprintf(s.out, "  failed:          %d\n", summary.Failed)
		fmt.Fprintf(s.out, "  success_rate:    %.2f\n", summary.SuccessRate)
		fmt.Fprintf(s.out, "  avg_duration:    %s\n", summary.AvgDuration)
		fmt.Fprintf(s.out, "  max_duration:    %s\n", summary.MaxDuration)
		fmt.Fprintf(s.out, "  p95_duration:    %s\n", summary.P95Duration)
		for kind, n := range summary.ErrorCounts {
			fmt.Fprintf(s.out, "  errors[%s]: %d\n", kind, n)
		}
		fmt.Fprintf(s.out, "  healthy_servers: %d/%d\n", summary.HealthyServers, summary.TotalServers)
	default:
		fmt.Fprintf(s.out, "Unknown metrics format: %s (expected json or yaml)\n", format)
	}
	fmt.Fprintln(s.out)
}

func (s *Shell) showServers() {
	servers := s.health.List()

	fmt.Fprintln(s.out)
	if len(servers) == 0 {
		fmt.Fprintln(s.out, "No tool servers configured")
		fmt.Fprintln(s.out)
		return
	}

	fmt.Fprintln(s.out, "Tool servers:")
	for _, srv := range servers {
		line := fmt.Sprintf("  %s: %s", srv.Name, srv.Status)
		if srv.Latency != nil {
			line += fmt.Sprintf(" (latency %s)", srv.Latency)
		}
		fmt.Fprintln(s.out, line)
	}
	fmt.Fprintln(s.out)
}

// summaryWithHealth layers the current server counts onto the recomputed
// metrics summary.
func (s *Shell) summaryWithHealth() domain.Summary {
	summary := s.metrics.Summary()
	for _, srv := range s.health.List() {
		summary.TotalServers++
		if srv.Usable() {
			summary.HealthyServers++
		}
	}
	return summary
}
