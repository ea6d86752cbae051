package config

import (
	"os"

	"github.com/haasonsaas/orchestrator/internal/engineerr"
	"github.com/haasonsaas/orchestrator/internal/mcp"
)

const component = "config-loader"

// Config holds the orchestration engine's top-level settings, loaded from a
// YAML or JSON5 file via Load.
type Config struct {
	// Workspace is the directory containing SOUL.md, AGENT.md, and
	// mcp_servers.json.
	Workspace string `yaml:"workspace"`

	// DefaultModel is the model identifier passed to the LLM provider when
	// a request does not specify one.
	DefaultModel string `yaml:"default_model"`

	// Provider selects which configured LLMProvider binding to use
	// ("anthropic" or "openai").
	Provider string `yaml:"provider"`

	// MaxTransitions bounds the number of node transitions a single Invoke
	// call may take before the Agent forces finalization.
	MaxTransitions int `yaml:"max_transitions"`

	// StructuredRetries bounds the number of attempts InvokeStructured makes
	// before giving up.
	StructuredRetries int `yaml:"structured_retries"`

	// RetryBaseDelayMs is the base delay, in milliseconds, for the
	// exponential backoff used by structured retries.
	RetryBaseDelayMs int `yaml:"retry_base_delay_ms"`

	// MCP holds the set of configured MCP servers.
	MCP mcp.Config `yaml:"mcp"`
}

// Defaults applied to any zero-valued field after loading.
const (
	DefaultMaxTransitions    = 50
	DefaultStructuredRetries = 3
	DefaultRetryBaseDelayMs  = 500
)

// applyDefaults fills zero-valued fields with the engine's defaults.
func (c *Config) applyDefaults() {
	if c.MaxTransitions <= 0 {
		c.MaxTransitions = DefaultMaxTransitions
	}
	if c.StructuredRetries <= 0 {
		c.StructuredRetries = DefaultStructuredRetries
	}
	if c.RetryBaseDelayMs <= 0 {
		c.RetryBaseDelayMs = DefaultRetryBaseDelayMs
	}
}

// Load reads, resolves $include directives in, and decodes the engine
// configuration file at path. Failures are tagged with the same
// KindConfigMissing/KindConfigMalformed taxonomy the MCP server catalog
// loader uses, so a caller routes on Kind rather than on error text
// regardless of which config file failed to load.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engineerr.Wrap(engineerr.KindConfigMissing, component, err)
		}
		return nil, engineerr.Wrap(engineerr.KindConfigMalformed, component, err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindConfigMalformed, component, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
