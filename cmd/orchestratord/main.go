// Command orchestratord runs the orchestration engine: it wires the
// configured LLM provider, MCP servers, and checkpoint store into an Agent
// and exposes a small command tree for serving, invoking, and inspecting a
// session.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "orchestrator.yaml"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := buildRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "orchestratord",
		Short: "Run and inspect the plan/execute/evaluate/finalize agent engine",
		Long: `orchestratord wires an LLM provider, configured MCP servers, and a
checkpoint store into a single agent and exposes commands to run it.`,
	}
	root.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)

	root.AddCommand(
		buildServeCmd(logger),
		buildInvokeCmd(logger),
		buildSessionsCmd(logger),
		buildMcpCmd(logger),
	)
	return root
}
