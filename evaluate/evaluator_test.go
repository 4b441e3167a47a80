package evaluate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuse/agentuse/suite"
)

func TestEvaluateContainsPass(t *testing.T) {
	e := New(nil)
	res := e.Evaluate(context.Background(), "The answer is 42, definitely.", suite.Expectation{
		Output: &suite.OutputExpectation{Type: suite.ValidationContains, Values: []string{"answer", "42"}},
	}, t.TempDir())
	assert.True(t, res.Valid)
}

func TestEvaluateContainsMissing(t *testing.T) {
	e := New(nil)
	res := e.Evaluate(context.Background(), "nothing here", suite.Expectation{
		Output: &suite.OutputExpectation{Type: suite.ValidationContains, Values: []string{"answer"}},
	}, t.TempDir())
	assert.False(t, res.Valid)
	require.Len(t, res.ValidationDetails, 1)
}

func TestEvaluateRegexCaseInsensitiveDotAll(t *testing.T) {
	e := New(nil)
	res := e.Evaluate(context.Background(), "line one\nANSWER: yes", suite.Expectation{
		Output: &suite.OutputExpectation{Type: suite.ValidationRegex, Pattern: "answer:.*yes"},
	}, t.TempDir())
	assert.True(t, res.Valid)
}

func TestEvaluateRegexInvalidPatternIsValidationFailureNotPanic(t *testing.T) {
	e := New(nil)
	res := e.Evaluate(context.Background(), "anything", suite.Expectation{
		Output: &suite.OutputExpectation{Type: suite.ValidationRegex, Pattern: "("},
	}, t.TempDir())
	assert.False(t, res.Valid)
}

func TestEvaluateArtifactsExistsAndContains(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.txt"), []byte("hello world"), 0o644))

	e := New(nil)
	res := e.Evaluate(context.Background(), "", suite.Expectation{
		Artifacts: []suite.ArtifactExpectation{{Path: "out.txt", Contains: []string{"hello"}}},
	}, dir)
	assert.True(t, res.Valid)
	assert.Equal(t, 1, res.ArtifactsChecked)
	assert.Equal(t, 1, res.ArtifactsPassed)
}

func TestEvaluateArtifactsMustNotExist(t *testing.T) {
	dir := t.TempDir()
	no := false
	e := New(nil)
	res := e.Evaluate(context.Background(), "", suite.Expectation{
		Artifacts: []suite.ArtifactExpectation{{Path: "missing.txt", Exists: &no}},
	}, dir)
	assert.True(t, res.Valid)
}

type stubJudge struct {
	pass      bool
	reasoning string
}

func (s stubJudge) Judge(context.Context, string, string) (bool, string, error) {
	return s.pass, s.reasoning, nil
}

func TestEvaluateLLMJudge(t *testing.T) {
	e := New(stubJudge{pass: true, reasoning: "meets criteria"})
	res := e.Evaluate(context.Background(), "output", suite.Expectation{
		Output: &suite.OutputExpectation{Type: suite.ValidationLLMJudge, Criteria: "must be correct"},
	}, t.TempDir())
	assert.True(t, res.Valid)
}

func TestExtractVerdictToleratesSurroundingProse(t *testing.T) {
	v, err := extractVerdict("Sure thing! {\"pass\": true, \"reasoning\": \"ok\"} Hope that helps.")
	require.NoError(t, err)
	assert.True(t, v.Pass)
}
