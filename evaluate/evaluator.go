// Package evaluate scores a trial's output and artifacts against a
// scenario's expectations: substring, regex, or LLM-judge output validation,
// plus filesystem artifact checks.
package evaluate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentuse/agentuse/suite"
)

// Result is the combined outcome of output and artifact validation for one
// trial.
type Result struct {
	Valid             bool
	ValidationDetails []string
	ArtifactsChecked  int
	ArtifactsPassed   int
}

// Judge invokes an LLM to score free-form output against criteria. It is
// satisfied by a model.Client wrapper configured with the judge model.
type Judge interface {
	Judge(ctx context.Context, output, criteria string) (pass bool, reasoning string, err error)
}

// Evaluator scores trial output and artifacts.
type Evaluator struct {
	judge Judge
}

// New constructs an Evaluator. judge may be nil when no scenario in the
// suite uses llm-judge validation.
func New(judge Judge) *Evaluator {
	return &Evaluator{judge: judge}
}

// Evaluate runs output validation (if configured) and artifact validation
// (if configured) and combines them per §4.D: the trial is valid only if
// both checks pass.
func (e *Evaluator) Evaluate(ctx context.Context, output string, expected suite.Expectation, projectRoot string) Result {
	var details []string
	outputValid := true
	if expected.Output != nil {
		var d []string
		outputValid, d = e.evaluateOutput(ctx, output, *expected.Output)
		details = append(details, d...)
	}

	artifactsValid := true
	checked, passed := 0, 0
	if len(expected.Artifacts) > 0 {
		var d []string
		checked, passed, d = e.evaluateArtifacts(expected.Artifacts, projectRoot)
		artifactsValid = passed == checked
		details = append(details, d...)
	}

	return Result{
		Valid:             outputValid && artifactsValid,
		ValidationDetails: details,
		ArtifactsChecked:  checked,
		ArtifactsPassed:   passed,
	}
}

func (e *Evaluator) evaluateOutput(ctx context.Context, output string, exp suite.OutputExpectation) (bool, []string) {
	switch exp.Type {
	case suite.ValidationContains:
		return evaluateContains(output, exp.Values)
	case suite.ValidationRegex:
		return evaluateRegex(output, exp.Pattern)
	case suite.ValidationLLMJudge:
		return e.evaluateLLMJudge(ctx, output, exp.Criteria)
	default:
		return false, []string{fmt.Sprintf("unknown validation type %q", exp.Type)}
	}
}

func evaluateContains(output string, values []string) (bool, []string) {
	lower := strings.ToLower(output)
	var missing []string
	for _, v := range values {
		if !strings.Contains(lower, strings.ToLower(v)) {
			missing = append(missing, v)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}
	return false, []string{fmt.Sprintf("missing expected substrings: %s", strings.Join(missing, ", "))}
}

func evaluateRegex(output, pattern string) (bool, []string) {
	re, err := regexp.Compile("(?is)" + pattern)
	if err != nil {
		return false, []string{fmt.Sprintf("invalid regex %q: %v", pattern, err)}
	}
	if re.MatchString(output) {
		return true, nil
	}
	return false, []string{fmt.Sprintf("output did not match pattern %q", pattern)}
}

func (e *Evaluator) evaluateLLMJudge(ctx context.Context, output, criteria string) (bool, []string) {
	if e.judge == nil {
		return false, []string{"llm-judge validation requested but no judge model configured"}
	}
	pass, reasoning, err := e.judge.Judge(ctx, output, criteria)
	if err != nil {
		return false, []string{fmt.Sprintf("judge call failed: %v", err)}
	}
	if pass {
		return true, nil
	}
	return false, []string{fmt.Sprintf("judge rejected output: %s", reasoning)}
}

func (e *Evaluator) evaluateArtifacts(artifacts []suite.ArtifactExpectation, projectRoot string) (checked, passed int, details []string) {
	for _, a := range artifacts {
		checked++
		full := filepath.Join(projectRoot, a.Path)
		data, err := os.ReadFile(full)
		exists := err == nil

		if exists != a.MustExist() {
			details = append(details, fmt.Sprintf("artifact %s: expected exists=%v, got %v", a.Path, a.MustExist(), exists))
			continue
		}
		if !exists {
			passed++
			continue
		}
		if len(a.Contains) > 0 {
			lower := strings.ToLower(string(data))
			var missing []string
			for _, want := range a.Contains {
				if !strings.Contains(lower, strings.ToLower(want)) {
					missing = append(missing, want)
				}
			}
			if len(missing) > 0 {
				details = append(details, fmt.Sprintf("artifact %s missing content: %s", a.Path, strings.Join(missing, ", ")))
				continue
			}
		}
		passed++
	}
	return checked, passed, details
}
