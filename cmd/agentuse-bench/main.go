// Command agentuse-bench runs a benchmark suite against one or more models
// and writes a JSON, Markdown, and HTML report for the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/agentuse/agentuse/agentfile"
	"github.com/agentuse/agentuse/aggregate"
	"github.com/agentuse/agentuse/evaluate"
	"github.com/agentuse/agentuse/internal/budget"
	"github.com/agentuse/agentuse/internal/modelclient/anthropic"
	"github.com/agentuse/agentuse/internal/modelclient/bedrock"
	"github.com/agentuse/agentuse/internal/modelclient/openai"
	"github.com/agentuse/agentuse/internal/ratelimit"
	"github.com/agentuse/agentuse/model"
	"github.com/agentuse/agentuse/report"
	"github.com/agentuse/agentuse/runconfig"
	"github.com/agentuse/agentuse/suite"
	"github.com/agentuse/agentuse/telemetry"
	"github.com/agentuse/agentuse/trial"
)

const (
	exitOK            = 0
	exitConfigError   = 1
	exitInternalError = 2
)

func main() {
	var (
		suiteF     = flag.String("suite", "", "Path to the suite descriptor (required)")
		outF       = flag.String("out", "./reports", "Directory to write report artifacts to")
		modelsF    = flag.String("models", "", "Comma-separated model overrides (provider:modelName), overrides the suite's config.models")
		runsF      = flag.Int("runs", 0, "Trial count per scenario, overrides the suite's config.runs")
		timeoutF   = flag.Int("timeout", 0, "Per-trial timeout in seconds, overrides the default")
		maxStepsF  = flag.Int("max-steps", 0, "Per-trial LLM turn cap, overrides the agent's maxSteps")
		budgetF    = flag.Float64("budget-usd", 0, "Soft per-scenario cost budget in USD; 0 disables")
		judgeF     = flag.String("judge-model", "", "Model identifier used for llm-judge validation")
		verboseF   = flag.Bool("verbose", false, "Enable debug logging")
		maxTPMF    = flag.Float64("max-tpm", 0, "Adaptive rate limiter ceiling in tokens per minute; 0 disables rate limiting")
		concurrencyF = flag.Int("concurrency", 0, "Maximum number of trials to run concurrently; 0 defers to the suite's config.maxConcurrentTrials, falling back to 1")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *verboseF {
		ctx = log.Context(ctx, log.WithDebug())
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *suiteF == "" {
		log.Error(ctx, fmt.Errorf("missing required -suite flag"))
		os.Exit(exitConfigError)
	}

	cfg := runconfig.Merge(runconfig.Config{}, runconfig.Config{
		SuitePath:           *suiteF,
		OutputDir:           *outF,
		Models:              splitNonEmpty(*modelsF),
		Runs:                *runsF,
		Timeout:             time.Duration(*timeoutF) * time.Second,
		MaxSteps:            *maxStepsF,
		BudgetUSD:           nonZeroPtr(*budgetF),
		Verbose:             *verboseF,
		MaxConcurrentTrials: *concurrencyF,
		JudgeModel:          *judgeF,
	})

	code := run(ctx, cfg, *maxTPMF)
	os.Exit(code)
}

func run(ctx context.Context, cfg runconfig.Config, maxTPM float64) int {
	loaded, err := suite.Load(cfg.SuitePath)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "suitePath", V: cfg.SuitePath})
		return exitConfigError
	}

	models := cfg.Models
	if len(models) == 0 {
		models = loaded.Config.Models
	}
	runs := cfg.Runs
	if runs == 0 {
		runs = loaded.Config.Runs
	}
	if runs <= 0 {
		runs = 1
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error(ctx, fmt.Errorf("creating output directory: %w", err))
		return exitInternalError
	}

	logger := telemetry.NewClueLogger()
	runner := trial.New(logger)

	clients := make(map[string]model.Client)
	ledger := budget.NewLocalLedger()

	concurrency := cfg.MaxConcurrentTrials
	if concurrency <= 0 {
		concurrency = loaded.Config.MaxConcurrentTrials
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var jobs []scenarioJob
	for _, modelID := range models {
		client, err := clientFor(ctx, modelID, maxTPM, clients)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "model", V: modelID})
			return exitConfigError
		}

		judgeModel := cfg.JudgeModel
		if judgeModel == "" {
			judgeModel = modelID
		}
		judge := evaluate.NewModelJudge(client, judgeModel)

		for _, test := range loaded.Tests {
			agent := suite.ResolveModel(test.Agent, modelID)
			for _, scenario := range test.Scenarios {
				jobs = append(jobs, scenarioJob{
					modelID:   modelID,
					client:    client,
					judge:     judge,
					agent:     agent,
					agentPath: test.AgentPath,
					scenario:  scenario,
				})
			}
		}
	}

	// A bounded pool of workers runs scenario jobs concurrently; each job's
	// own trials stay sequential so the per-scenario cost-budget short
	// circuit still applies within it. Results are written to a pre-sized
	// slice by index, so job order (and therefore report order) matches the
	// sequential model/test/scenario iteration above regardless of which
	// worker finishes first.
	groups := make([]aggregate.TrialGroup, len(jobs))
	jobCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				groups[idx] = runScenarioJob(ctx, runner, ledger, cfg, runs, jobs[idx])
			}
		}()
	}
	for idx := range jobs {
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	suiteResult := aggregate.New().Aggregate(loaded.ID, loaded.Name, groups)

	runID := uuid.NewString()
	data := report.Build(suiteResult, runID, time.Now().UTC().Format(time.RFC3339))

	if err := writeReports(cfg.OutputDir, data); err != nil {
		log.Error(ctx, err)
		return exitInternalError
	}

	log.Print(ctx, log.KV{K: "runId", V: runID}, log.KV{K: "models", V: len(suiteResult.Models)})
	return exitOK
}

// scenarioJob is everything one worker needs to run every trial for one
// (model, agent, scenario) combination.
type scenarioJob struct {
	modelID   string
	client    model.Client
	judge     evaluate.Judge
	agent     *agentfile.Agent
	agentPath string
	scenario  suite.Scenario
}

// runScenarioJob runs every trial for one scenario job sequentially,
// honoring the cost-budget ledger's soft backpressure between trials, and
// returns the resulting TrialGroup. Trials across different jobs may run
// concurrently (see the worker pool in run); trials within one job never
// do, so the per-scenario budget short circuit behaves identically to the
// single-worker case.
func runScenarioJob(ctx context.Context, runner *trial.Runner, ledger budget.Ledger, cfg runconfig.Config, runs int, job scenarioJob) aggregate.TrialGroup {
	budgetUSD := 0.0
	if cfg.BudgetUSD != nil {
		budgetUSD = *cfg.BudgetUSD
	}
	ledgerKey := job.modelID + "/" + job.scenario.ID

	var trials []trial.Result
	for n := 1; n <= runs; n++ {
		if exceeded, _ := ledger.Exceeded(ctx, ledgerKey, budgetUSD); exceeded {
			log.Print(ctx, log.KV{K: "scenario", V: job.scenario.ID}, log.KV{K: "model", V: job.modelID}, log.KV{K: "skipped", V: runs - n + 1}, log.KV{K: "reason", V: "budget_exceeded"})
			break
		}
		log.Print(ctx, log.KV{K: "scenario", V: job.scenario.ID}, log.KV{K: "model", V: job.modelID}, log.KV{K: "trial", V: n})
		result := runner.Run(ctx, trial.Params{
			Agent:       job.agent,
			Scenario:    job.scenario,
			TrialNumber: n,
			RunConfig:   cfg,
			SuiteDir:    filepath.Dir(job.agentPath),
			Client:      job.client,
			Judge:       job.judge,
		})
		if result.Usage.EstimatedCostUSD != nil {
			_, _ = ledger.Add(ctx, ledgerKey, *result.Usage.EstimatedCostUSD)
		}
		trials = append(trials, result)
	}
	return aggregate.TrialGroup{
		Model:     job.modelID,
		AgentPath: job.agentPath,
		Scenario:  job.scenario,
		Trials:    trials,
	}
}

func writeReports(outputDir string, data report.ReportData) error {
	jsonBytes, err := report.RenderJSON(data)
	if err != nil {
		return fmt.Errorf("rendering json report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, data.FileName("json")), jsonBytes, 0o644); err != nil {
		return fmt.Errorf("writing json report: %w", err)
	}

	mdBytes := report.RenderMarkdown(data)
	if err := os.WriteFile(filepath.Join(outputDir, data.FileName("md")), mdBytes, 0o644); err != nil {
		return fmt.Errorf("writing markdown report: %w", err)
	}

	htmlBytes, err := report.RenderHTML(data)
	if err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, data.FileName("html")), htmlBytes, 0o644); err != nil {
		return fmt.Errorf("writing html report: %w", err)
	}
	return nil
}

// clientFor builds (and caches) a model.Client for modelID's provider
// prefix, wrapping it in an adaptive rate limiter when maxTPM is positive.
func clientFor(ctx context.Context, modelID string, maxTPM float64, cache map[string]model.Client) (model.Client, error) {
	provider, name := suite.SplitModelID(modelID)
	if c, ok := cache[provider]; ok {
		return c, nil
	}

	var client model.Client
	var err error
	switch provider {
	case "anthropic":
		client, err = anthropic.NewFromAPIKey(os.Getenv("ANTHROPIC_API_KEY"), name)
	case "openai":
		client, err = openai.NewFromAPIKey(os.Getenv("OPENAI_API_KEY"), name)
	case "bedrock":
		var awsCfg aws.Config
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err == nil {
			client, err = bedrock.New(bedrockruntime.NewFromConfig(awsCfg), name)
		}
	default:
		return nil, fmt.Errorf("unknown model provider %q in %q", provider, modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("building client for provider %q: %w", provider, err)
	}

	if maxTPM > 0 {
		client = ratelimit.New(maxTPM, maxTPM).Middleware()(client)
	}
	cache[provider] = client
	return client, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func nonZeroPtr(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
