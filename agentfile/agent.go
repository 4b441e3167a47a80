// Package agentfile parses the Markdown-with-frontmatter agent definition
// files referenced by a suite. Only the fields the benchmark core consumes
// (model, step cap, MCP servers) are modeled here; templating extensions and
// skill-discovery fields belong to the agent runtime, not this core.
package agentfile

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModelPlaceholder is the literal front-matter value that the Suite Loader
// substitutes with the concrete model under test at the start of each trial.
const ModelPlaceholder = "${model}"

// MCPServer describes one MCP tool server the agent depends on.
type MCPServer struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// frontMatter is the subset of agent front-matter fields the core requires.
// Unknown fields are ignored when decoding; collaborators that need them
// must re-parse the raw document themselves.
type frontMatter struct {
	Model     string      `yaml:"model"`
	MaxSteps  *int        `yaml:"maxSteps,omitempty"`
	MCPServers []MCPServer `yaml:"mcpServers,omitempty"`
}

// Agent is the immutable, parsed representation of an agent file. Once
// loaded it is never mutated; the Trial Runner receives a shallow copy with
// Model substituted for the trial's concrete model.
type Agent struct {
	Path         string
	Model        string
	MaxSteps     int
	MCPServers   []MCPServer
	Instructions string
}

// HasModelPlaceholder reports whether the agent's configured model is the
// unresolved "${model}" placeholder.
func (a *Agent) HasModelPlaceholder() bool {
	return a.Model == ModelPlaceholder
}

// WithModel returns a shallow copy of the agent with Model replaced. The
// original is left untouched, preserving the Suite Loader's exclusive
// ownership of the parsed value.
func (a *Agent) WithModel(model string) *Agent {
	cp := *a
	cp.Model = model
	return &cp
}

const defaultMaxSteps = 20

// Parse reads a Markdown file with YAML front-matter delimited by "---"
// lines and returns the parsed Agent. path is recorded for diagnostics only.
func Parse(path string, data []byte) (*Agent, error) {
	fmBytes, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("parsing agent file %s: %w", path, err)
	}

	var parsed frontMatter
	if err := yaml.Unmarshal(fmBytes, &parsed); err != nil {
		return nil, fmt.Errorf("parsing agent front matter %s: %w", path, err)
	}
	if parsed.Model == "" {
		return nil, fmt.Errorf("parsing agent file %s: missing required field %q", path, "model")
	}

	maxSteps := defaultMaxSteps
	if parsed.MaxSteps != nil {
		maxSteps = *parsed.MaxSteps
	}

	return &Agent{
		Path:         path,
		Model:        parsed.Model,
		MaxSteps:     maxSteps,
		MCPServers:   parsed.MCPServers,
		Instructions: body,
	}, nil
}

// splitFrontMatter separates the leading "---\n...\n---\n" YAML block from
// the remaining Markdown body. A document with no front-matter delimiter is
// treated as an error since model is required.
func splitFrontMatter(data []byte) (fm []byte, body string, err error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", fmt.Errorf("missing front matter delimiter %q", delim)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", fmt.Errorf("unterminated front matter block")
	}
	fm = bytes.TrimLeft(rest[:idx], "\n")
	after := rest[idx+len("\n"+delim):]
	after = bytes.TrimPrefix(after, []byte("\n"))
	return fm, string(after), nil
}
