// Package runconfig defines the resolved run configuration shared by the
// Trial Runner, the orchestrator loop, and the CLI front-end. Values are
// assembled by layering CLI flags over a suite descriptor's config block,
// with CLI values taking precedence.
package runconfig

import "time"

// DefaultTimeout is the per-trial deadline applied when neither the CLI nor
// the suite descriptor supplies one.
const DefaultTimeout = 300 * time.Second

// Config is the fully resolved set of parameters governing one benchmark
// run.
type Config struct {
	SuitePath           string
	OutputDir           string
	Models              []string
	Runs                int
	Timeout             time.Duration
	MaxSteps            int
	BudgetUSD           *float64
	Verbose             bool
	MaxConcurrentTrials int
	JudgeModel          string
}

// TimeoutOrDefault returns the configured per-trial timeout, falling back to
// DefaultTimeout when unset.
func (c Config) TimeoutOrDefault() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Merge layers CLI-supplied fields (c) over suite-declared defaults (base),
// with any non-zero field in c taking precedence.
func Merge(base, c Config) Config {
	out := base
	if len(c.Models) > 0 {
		out.Models = c.Models
	}
	if c.Runs > 0 {
		out.Runs = c.Runs
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	if c.MaxSteps > 0 {
		out.MaxSteps = c.MaxSteps
	}
	if c.BudgetUSD != nil {
		out.BudgetUSD = c.BudgetUSD
	}
	if c.Verbose {
		out.Verbose = true
	}
	if c.MaxConcurrentTrials > 0 {
		out.MaxConcurrentTrials = c.MaxConcurrentTrials
	}
	if c.JudgeModel != "" {
		out.JudgeModel = c.JudgeModel
	}
	if c.OutputDir != "" {
		out.OutputDir = c.OutputDir
	}
	if c.SuitePath != "" {
		out.SuitePath = c.SuitePath
	}
	return out
}
