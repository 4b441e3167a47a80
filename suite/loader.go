package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentuse/agentuse/agentfile"
	"github.com/agentuse/agentuse/suiteerrors"
)

// conventionalDirs are probed, in order, when the caller supplies a bare
// suite name rather than a path: first the project-local suites directory,
// then the built-in examples shipped alongside the binary.
var conventionalDirs = []string{"suites", "examples/suites"}

var suiteExtensions = []string{".suite.yaml", ".suite.yml"}

// Resolve locates a suite descriptor from a user-supplied name or path and
// returns its file contents along with the directory agent paths should be
// resolved relative to.
func Resolve(nameOrPath string) (data []byte, dir string, err error) {
	if data, err := os.ReadFile(nameOrPath); err == nil {
		return data, filepath.Dir(nameOrPath), nil
	}

	var candidates []string
	for _, base := range conventionalDirs {
		for _, ext := range suiteExtensions {
			candidates = append(candidates, filepath.Join(base, nameOrPath+ext))
		}
	}
	for _, candidate := range candidates {
		if data, err := os.ReadFile(candidate); err == nil {
			return data, filepath.Dir(candidate), nil
		}
	}

	return nil, "", suiteerrors.New("suitePath", "not_found").WithCandidates(append([]string{nameOrPath}, candidates...))
}

// Load resolves, parses, validates, and fully loads a suite: every agent
// path is parsed at most once even if referenced by multiple tests.
func Load(nameOrPath string) (*Loaded, error) {
	data, dir, err := Resolve(nameOrPath)
	if err != nil {
		return nil, err
	}

	desc, err := validateDescriptor(data)
	if err != nil {
		return nil, err
	}

	agentCache := make(map[string]*agentfile.Agent)
	tests := make([]LoadedTest, 0, len(desc.Tests))
	for i, t := range desc.Tests {
		agentPath := filepath.Join(dir, t.Agent)
		agent, ok := agentCache[agentPath]
		if !ok {
			raw, err := os.ReadFile(agentPath)
			if err != nil {
				return nil, suiteerrors.Wrap(fmt.Sprintf("tests[%d].agent", i), "agent_load_error", err)
			}
			agent, err = agentfile.Parse(agentPath, raw)
			if err != nil {
				return nil, suiteerrors.Wrap(fmt.Sprintf("tests[%d].agent", i), "agent_load_error", err)
			}
			agentCache[agentPath] = agent
		}
		tests = append(tests, LoadedTest{AgentPath: agentPath, Agent: agent, Scenarios: t.Scenarios})
	}

	loaded := &Loaded{
		ID:     desc.ID,
		Name:   desc.Name,
		Config: desc.Config,
		Tests:  tests,
	}
	for _, t := range tests {
		loaded.TotalScenarios += len(t.Scenarios)
	}
	loaded.TotalTrials = loaded.TotalScenarios * len(loaded.Config.Models) * loaded.Config.Runs
	return loaded, nil
}

// ResolveModel performs the static (load-time) substitution: a literal
// "${model}" in the agent's configured model is replaced by modelID. Any
// other value is returned unchanged; no other "${...}" form is expanded by
// this layer.
func ResolveModel(agent *agentfile.Agent, modelID string) *agentfile.Agent {
	if !agent.HasModelPlaceholder() {
		return agent
	}
	return agent.WithModel(modelID)
}

// SplitModelID splits a "provider:modelName" identifier into its two parts.
// The provider prefix is opaque to the core and used only for display
// grouping.
func SplitModelID(modelID string) (provider, name string) {
	idx := strings.IndexByte(modelID, ':')
	if idx < 0 {
		return "", modelID
	}
	return modelID[:idx], modelID[idx+1:]
}
