package mcp

import (
	"encoding/json"
	"os"

	"github.com/haasonsaas/orchestrator/internal/engineerr"
)

const component = "mcp-config"

// serverFile is the on-disk shape of a single entry in mcp_servers.json.
// Args defaults to an empty slice, Transport defaults to "stdio", Enabled
// defaults to true, and Tools being absent means "discover via
// tools/list" rather than restrict to a named subset.
type serverFile struct {
	Name      string            `json:"name"`
	Transport TransportType     `json:"transport"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	WorkDir   string            `json:"workdir,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Enabled   *bool             `json:"enabled,omitempty"`
	Tools     []string          `json:"tools,omitempty"`
}

// configFile is the on-disk shape of mcp_servers.json: a map of server ID
// to its configuration.
type configFile struct {
	Servers map[string]serverFile `json:"mcpServers"`
}

// ServerMetadata describes one configured MCP server, as resolved from
// mcp_servers.json with defaults applied.
type ServerMetadata struct {
	ID        string
	Config    *ServerConfig
	Enabled   bool
	ToolNames []string // nil means discover via tools/list
}

// ServerCatalog is the MCP Config component: it loads mcp_servers.json once
// and answers questions about which servers are configured and enabled.
type ServerCatalog struct {
	servers map[string]*ServerMetadata
	order   []string
}

// LoadServerCatalog reads and validates mcp_servers.json at path.
func LoadServerCatalog(path string) (*ServerCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engineerr.New(engineerr.KindConfigMissing, component, "missing mcp server config at "+path)
		}
		return nil, engineerr.Wrap(engineerr.KindConfigMissing, component, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, engineerr.Wrap(engineerr.KindConfigMalformed, component, err)
	}

	catalog := &ServerCatalog{servers: make(map[string]*ServerMetadata, len(file.Servers))}
	for id, entry := range file.Servers {
		meta, err := resolveServer(id, entry)
		if err != nil {
			return nil, err
		}
		if err := meta.Config.Validate(); err != nil {
			return nil, engineerr.Wrap(engineerr.KindConfigMalformed, component, err)
		}
		catalog.servers[id] = meta
		catalog.order = append(catalog.order, id)
	}
	return catalog, nil
}

func resolveServer(id string, entry serverFile) (*ServerMetadata, error) {
	transport := entry.Transport
	if transport == "" {
		transport = TransportStdio
	}

	args := entry.Args
	if args == nil {
		args = []string{}
	}

	enabled := true
	if entry.Enabled != nil {
		enabled = *entry.Enabled
	}

	cfg := &ServerConfig{
		ID:        id,
		Name:      entry.Name,
		Transport: transport,
		Command:   entry.Command,
		Args:      args,
		Env:       entry.Env,
		WorkDir:   entry.WorkDir,
		URL:       entry.URL,
		Headers:   entry.Headers,
		AutoStart: enabled,
	}
	if cfg.Name == "" {
		cfg.Name = id
	}

	return &ServerMetadata{
		ID:        id,
		Config:    cfg,
		Enabled:   enabled,
		ToolNames: entry.Tools,
	}, nil
}

// EnabledServers returns the metadata for every server with enabled=true.
// The order follows Go map iteration over the decoded file, so it is not
// the order of mcp_servers.json and can differ between loads.
func (c *ServerCatalog) EnabledServers() []*ServerMetadata {
	out := make([]*ServerMetadata, 0, len(c.order))
	for _, id := range c.order {
		if meta := c.servers[id]; meta.Enabled {
			out = append(out, meta)
		}
	}
	return out
}

// AllServers returns the metadata for every configured server, enabled or
// not, in the same order as EnabledServers (not the file's order).
func (c *ServerCatalog) AllServers() []*ServerMetadata {
	out := make([]*ServerMetadata, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.servers[id])
	}
	return out
}

// IsServerEnabled reports whether the named server exists and is enabled.
func (c *ServerCatalog) IsServerEnabled(id string) bool {
	meta, ok := c.servers[id]
	return ok && meta.Enabled
}

// ServerMetadata returns the metadata for the named server, if configured.
func (c *ServerCatalog) ServerMetadata(id string) (*ServerMetadata, bool) {
	meta, ok := c.servers[id]
	return meta, ok
}

// ToManagerConfig converts the catalog into the mcp.Config shape consumed
// by Manager, including only enabled servers.
func (c *ServerCatalog) ToManagerConfig() *Config {
	cfg := &Config{Enabled: true}
	for _, meta := range c.EnabledServers() {
		cfg.Servers = append(cfg.Servers, meta.Config)
	}
	return cfg
}
