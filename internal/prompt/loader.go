// Package prompt loads the agent's base system prompt from its workspace
// directory.
package prompt

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/orchestrator/internal/engineerr"
)

const component = "prompt-loader"

// Required workspace files, concatenated in this order after trailing
// newlines are trimmed from each.
const (
	SoulFile  = "SOUL.md"
	AgentFile = "AGENT.md"
)

// Load reads SOUL.md and AGENT.md from workspaceDir and concatenates their
// contents, separated by a blank line, to form the base system prompt.
//
// Both files are mandatory: the loader performs no caching and re-reads the
// files on every call, so edits to either file take effect on the next
// invocation. A missing file is a KindIdentityMissing error, fatal for the
// call to Invoke that triggered it.
func Load(workspaceDir string) (string, error) {
	soul, err := readRequired(workspaceDir, SoulFile)
	if err != nil {
		return "", err
	}
	agentDoc, err := readRequired(workspaceDir, AgentFile)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(soul, "\n") + "\n\n" + strings.TrimRight(agentDoc, "\n") + "\n", nil
}

func readRequired(workspaceDir, name string) (string, error) {
	path := filepath.Join(workspaceDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", engineerr.New(engineerr.KindIdentityMissing, component, "missing required workspace file "+path)
		}
		return "", engineerr.Wrap(engineerr.KindIdentityMissing, component, err)
	}
	return string(data), nil
}
