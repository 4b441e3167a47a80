// Package suite loads benchmark suite descriptors: resolving the suite file,
// validating it against the suite JSON schema, resolving referenced agent
// files, and computing the trial matrix.
package suite

import "github.com/agentuse/agentuse/agentfile"

// Difficulty is the closed set of scenario difficulty tiers used for
// weighted scoring.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Weight returns the difficulty weight used when computing a weighted
// overall score: 1 for easy, 2 for medium, 3 for hard. An empty or unknown
// difficulty weighs 1.
func (d Difficulty) Weight() int {
	switch d {
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 1
	}
}

// ValidationType names the output-validation strategy a scenario requests.
type ValidationType string

const (
	ValidationContains  ValidationType = "contains"
	ValidationRegex     ValidationType = "regex"
	ValidationLLMJudge  ValidationType = "llm-judge"
)

// OutputExpectation is the tagged union of output-validation specifications.
// Exactly one of the type-specific fields is populated, selected by Type.
type OutputExpectation struct {
	Type ValidationType `yaml:"type"`

	// Values holds the required substrings for ValidationContains.
	Values []string `yaml:"values,omitempty"`
	// Pattern holds the regular expression for ValidationRegex.
	Pattern string `yaml:"pattern,omitempty"`
	// Criteria and Model configure ValidationLLMJudge. Model is parsed but
	// not consulted: the evaluator sends every llm-judge check to the run's
	// configured judge model, whatever Model says.
	Criteria string `yaml:"criteria,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// ArtifactExpectation describes an expected (or forbidden) file under the
// agent's project root after a trial completes.
type ArtifactExpectation struct {
	Path     string   `yaml:"path"`
	Exists   *bool    `yaml:"exists,omitempty"`
	Contains []string `yaml:"contains,omitempty"`
}

// MustExist reports whether the artifact is expected to exist, defaulting to
// true when Exists is unset.
func (a ArtifactExpectation) MustExist() bool {
	if a.Exists == nil {
		return true
	}
	return *a.Exists
}

// Expectation bundles a scenario's optional output and artifact checks.
type Expectation struct {
	Output    *OutputExpectation    `yaml:"output,omitempty"`
	Artifacts []ArtifactExpectation `yaml:"artifacts,omitempty"`
}

// Scenario is one test case within a Test: an input, optional dynamic
// variables embedded in it, and optional expectations.
type Scenario struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name"`
	Difficulty Difficulty  `yaml:"difficulty,omitempty"`
	Input      string      `yaml:"input"`
	Expected   Expectation `yaml:"expected,omitempty"`
}

// Test references one agent file and the scenarios to run against it.
type Test struct {
	Agent     string     `yaml:"agent"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Config is the suite-level run configuration embedded in the descriptor.
// CLI-supplied RunConfig values take precedence over these at run time.
type Config struct {
	Models              []string `yaml:"models"`
	Runs                int      `yaml:"runs"`
	MaxConcurrentTrials int      `yaml:"maxConcurrentTrials,omitempty"`
}

// Descriptor is the raw, as-parsed suite YAML document, before agent
// resolution.
type Descriptor struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Config Config `yaml:"config"`
	Tests  []Test `yaml:"tests"`
}

// Loaded is a fully resolved suite: the descriptor plus every referenced
// agent file loaded exactly once (duplicate agent paths share one parse) and
// the precomputed trial-matrix size.
type Loaded struct {
	ID    string
	Name  string
	Config Config
	Tests []LoadedTest

	TotalScenarios int
	TotalTrials    int
}

// LoadedTest pairs a resolved agent with its scenarios.
type LoadedTest struct {
	AgentPath string
	Agent     *agentfile.Agent
	Scenarios []Scenario
}
