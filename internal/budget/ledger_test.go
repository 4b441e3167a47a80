package budget

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLedgerAddAccumulates(t *testing.T) {
	l := NewLocalLedger()
	ctx := context.Background()

	total, err := l.Add(ctx, "scenario-1", 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, total, 1e-9)

	total, err = l.Add(ctx, "scenario-1", 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, total, 1e-9)
}

func TestLocalLedgerExceeded(t *testing.T) {
	l := NewLocalLedger()
	ctx := context.Background()

	ok, err := l.Exceeded(ctx, "scenario-1", 1.0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Add(ctx, "scenario-1", 1.5)
	require.NoError(t, err)

	ok, err = l.Exceeded(ctx, "scenario-1", 1.0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLedgerExceededIgnoresZeroBudget(t *testing.T) {
	l := NewLocalLedger()
	ctx := context.Background()
	_, err := l.Add(ctx, "scenario-1", 100)
	require.NoError(t, err)

	ok, err := l.Exceeded(ctx, "scenario-1", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLedgerConcurrentAddsAreConsistent(t *testing.T) {
	l := NewLocalLedger()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Add(ctx, "scenario-1", 0.01)
		}()
	}
	wg.Wait()

	total, err := l.Add(ctx, "scenario-1", 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, total, 1e-6)
}
