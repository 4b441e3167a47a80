// Package budget implements the cost-budget ledger: a running per-scenario
// sum of estimated trial cost, safe for concurrent increments from parallel
// trial workers, that the orchestrator consults to skip remaining trials in
// a scenario once its budget is exceeded.
package budget

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

func float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }
func bitsFromFloat64(f float64) uint64    { return math.Float64bits(f) }

// Ledger tracks cumulative estimated cost per scenario and reports whether a
// scenario has exceeded a caller-supplied budget.
type Ledger interface {
	// Add records an estimated cost against scenarioKey and returns the
	// scenario's new running total.
	Add(ctx context.Context, scenarioKey string, costUSD float64) (float64, error)
	// Exceeded reports whether scenarioKey's running total is over budget.
	Exceeded(ctx context.Context, scenarioKey string, budgetUSD float64) (bool, error)
}

// LocalLedger is a single-process ledger backed by an in-memory map of
// atomic counters. It is the default: correct for the common case of one
// orchestrator process running trials sequentially or with a bounded local
// worker pool.
type LocalLedger struct {
	mu     sync.Mutex
	totals map[string]*atomic.Uint64 // bit pattern of a float64, via math.Float64bits
}

// NewLocalLedger constructs an empty LocalLedger.
func NewLocalLedger() *LocalLedger {
	return &LocalLedger{totals: make(map[string]*atomic.Uint64)}
}

func (l *LocalLedger) counter(scenarioKey string) *atomic.Uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.totals[scenarioKey]
	if !ok {
		c = &atomic.Uint64{}
		l.totals[scenarioKey] = c
	}
	return c
}

func (l *LocalLedger) Add(_ context.Context, scenarioKey string, costUSD float64) (float64, error) {
	c := l.counter(scenarioKey)
	for {
		old := c.Load()
		next := float64FromBits(old) + costUSD
		if c.CompareAndSwap(old, bitsFromFloat64(next)) {
			return next, nil
		}
	}
}

func (l *LocalLedger) Exceeded(_ context.Context, scenarioKey string, budgetUSD float64) (bool, error) {
	if budgetUSD <= 0 {
		return false, nil
	}
	return float64FromBits(l.counter(scenarioKey).Load()) > budgetUSD, nil
}

// RedisLedger is a Redis-backed ledger for suite runs that shard trials
// across multiple orchestrator processes sharing one Redis instance, so the
// per-scenario cost budget is enforced consistently across the fleet rather
// than per-process.
type RedisLedger struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLedger constructs a RedisLedger. keyPrefix namespaces this run's
// counters (typically the runId) so concurrent runs against the same Redis
// instance do not share totals.
func NewRedisLedger(client *redis.Client, keyPrefix string) *RedisLedger {
	return &RedisLedger{client: client, keyPrefix: keyPrefix}
}

func (l *RedisLedger) key(scenarioKey string) string {
	return fmt.Sprintf("agentuse:budget:%s:%s", l.keyPrefix, scenarioKey)
}

func (l *RedisLedger) Add(ctx context.Context, scenarioKey string, costUSD float64) (float64, error) {
	return l.client.IncrByFloat(ctx, l.key(scenarioKey), costUSD).Result()
}

func (l *RedisLedger) Exceeded(ctx context.Context, scenarioKey string, budgetUSD float64) (bool, error) {
	if budgetUSD <= 0 {
		return false, nil
	}
	val, err := l.client.Get(ctx, l.key(scenarioKey)).Float64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val > budgetUSD, nil
}
