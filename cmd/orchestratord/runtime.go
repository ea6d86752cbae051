package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/haasonsaas/orchestrator/internal/agent"
	"github.com/haasonsaas/orchestrator/internal/agent/providers"
	"github.com/haasonsaas/orchestrator/internal/checkpoint"
	"github.com/haasonsaas/orchestrator/internal/config"
	"github.com/haasonsaas/orchestrator/internal/llm"
	"github.com/haasonsaas/orchestrator/internal/mcp"
	"github.com/haasonsaas/orchestrator/internal/orchestrator"
)

// runtime bundles everything built from a config file that the command
// handlers need, so each subcommand doesn't repeat the wiring.
type runtime struct {
	cfg         *config.Config
	agent       *orchestrator.Agent
	mcpExecutor *mcp.Executor
	catalog     *mcp.ServerCatalog
}

func newRuntime(configPath string, logger *slog.Logger) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	backend, err := buildLLMBackend(cfg)
	if err != nil {
		return nil, err
	}
	llmProvider := llm.New(
		backend,
		cfg.Workspace,
		cfg.DefaultModel,
		cfg.StructuredRetries,
		time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond,
		logger,
	)

	catalogPath := filepath.Join(cfg.Workspace, "mcp_servers.json")
	catalog, err := mcp.LoadServerCatalog(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("load MCP server catalog: %w", err)
	}
	mcpExecutor := mcp.NewExecutor(catalog, logger)

	store, err := buildCheckpointStore()
	if err != nil {
		return nil, err
	}

	ag := orchestrator.NewAgent(
		llmProvider,
		mcpExecutor,
		store,
		orchestrator.WithMaxTransitions(cfg.MaxTransitions),
		orchestrator.WithLogger(logger),
	)

	return &runtime{cfg: cfg, agent: ag, mcpExecutor: mcpExecutor, catalog: catalog}, nil
}

func (r *runtime) Close() error {
	return r.agent.Close()
}

// buildLLMBackend constructs the agent.LLMProvider named by cfg.Provider.
// API keys are read from the environment, never from the config file.
func buildLLMBackend(cfg *config.Config) (agent.LLMProvider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel: cfg.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY")), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// buildCheckpointStore returns a SQL-backed store when CHECKPOINT_HOST names
// one, otherwise an in-memory store suitable for local runs and tests.
func buildCheckpointStore() (checkpoint.Store, error) {
	host := os.Getenv("CHECKPOINT_HOST")
	if host == "" {
		return checkpoint.NewMemoryStore(), nil
	}

	cfg := checkpoint.DefaultSQLConfig()
	cfg.Host = host
	if db := os.Getenv("CHECKPOINT_DATABASE"); db != "" {
		cfg.Database = db
	}
	if user := os.Getenv("CHECKPOINT_USER"); user != "" {
		cfg.User = user
	}
	cfg.Password = os.Getenv("CHECKPOINT_PASSWORD")

	store, err := checkpoint.NewSQLStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect checkpoint store: %w", err)
	}
	return store, nil
}
