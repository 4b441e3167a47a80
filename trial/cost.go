package trial

import "strings"

// tokenRate is a per-million-token USD rate pair for one model family.
type tokenRate struct {
	inputPerMillion  float64
	outputPerMillion float64
}

// knownRates is a coarse, prefix-matched pricing table used only to produce
// the benchmark's estimated cost field. It is intentionally approximate:
// exact provider billing is out of scope, and a trial's estimated cost
// exists to rank models relative to each other, not to reconcile an
// invoice.
var knownRates = map[string]tokenRate{
	"claude-opus":   {inputPerMillion: 15, outputPerMillion: 75},
	"claude-sonnet": {inputPerMillion: 3, outputPerMillion: 15},
	"claude-haiku":  {inputPerMillion: 0.8, outputPerMillion: 4},
	"gpt-4o":        {inputPerMillion: 2.5, outputPerMillion: 10},
	"gpt-4o-mini":   {inputPerMillion: 0.15, outputPerMillion: 0.6},
	"gpt-4":         {inputPerMillion: 30, outputPerMillion: 60},
	"o1":            {inputPerMillion: 15, outputPerMillion: 60},
}

// estimateCostUSD looks up a coarse per-token rate for bareModel (matched by
// prefix, longest match wins) and applies it to the trial's token usage. It
// returns nil when no rate is known, rather than guessing.
func estimateCostUSD(bareModel string, usage Usage) *float64 {
	var best string
	for prefix := range knownRates {
		if strings.HasPrefix(bareModel, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil
	}
	rate := knownRates[best]
	cost := float64(usage.InputTokens)/1_000_000*rate.inputPerMillion +
		float64(usage.OutputTokens)/1_000_000*rate.outputPerMillion
	return &cost
}
