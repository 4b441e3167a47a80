package report

import "fmt"

// formatDuration renders a millisecond duration per the report's numeric
// formatting contract: plain milliseconds under one second, one-decimal
// seconds under a minute, otherwise minutes and whole seconds.
func formatDuration(ms float64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%.0fms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", ms/1000)
	default:
		total := int64(ms) / 1000
		return fmt.Sprintf("%dm %ds", total/60, total%60)
	}
}

// formatCost renders a USD amount with precision scaled to its magnitude:
// four decimals under a cent, three under a dollar, two otherwise.
func formatCost(usd float64) string {
	switch {
	case usd < 0.01:
		return fmt.Sprintf("$%.4f", usd)
	case usd < 1:
		return fmt.Sprintf("$%.3f", usd)
	default:
		return fmt.Sprintf("$%.2f", usd)
	}
}

// formatPercent renders a [0,1] fraction as a one-decimal percentage.
func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

// formatTokens renders a token count using K/M suffixes above 1,000 and
// 1,000,000 respectively, one decimal place.
func formatTokens(n float64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", n/1_000_000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", n/1000)
	default:
		return fmt.Sprintf("%.0f", n)
	}
}
