package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkIfNewSequential(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	first, err := ledger.MarkIfNew(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ledger.MarkIfNew(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	// A different id is unaffected
	other, err := ledger.MarkIfNew(ctx, "evt_2", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMarkIfNewConcurrent(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wasNew, err := ledger.MarkIfNew(ctx, "evt_race", time.Minute)
			assert.NoError(t, err)
			results <- wasNew
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for wasNew := range results {
		if wasNew {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller must observe wasNew=true")
}

func TestExpiryReopensProcessing(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	first, err := ledger.MarkIfNew(ctx, "evt_ttl", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, first)

	duringTTL, err := ledger.MarkIfNew(ctx, "evt_ttl", 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, duringTTL)

	time.Sleep(30 * time.Millisecond)

	afterTTL, err := ledger.MarkIfNew(ctx, "evt_ttl", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, afterTTL, "an expired record must be treated as unseen")
}

func TestMarkIfNewCancelledContext(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ledger.MarkIfNew(ctx, "evt_cancel", time.Minute)
	assert.Error(t, err)
	assert.False(t, ledger.Seen("evt_cancel"))
}
