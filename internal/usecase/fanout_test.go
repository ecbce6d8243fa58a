package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapConcurrent_PreservesOrder(t *testing.T) {
	// Randomized per-item delays force out-of-order completion; the result
	// index must still correspond to the input index.
	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}

	for _, concurrency := range []int{1, 2, 4, 100} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			results, err := MapConcurrent(context.Background(), items, concurrency,
				func(ctx context.Context, item int) (string, error) {
					time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
					return fmt.Sprintf("item-%d", item), nil
				})

			require.NoError(t, err)
			require.Len(t, results, len(items))
			for i, result := range results {
				assert.Equal(t, fmt.Sprintf("item-%d", i), result)
			}
		})
	}
}

func TestMapConcurrent_BoundsParallelism(t *testing.T) {
	var inFlight, peak atomic.Int64
	items := make([]int, 20)

	_, err := MapConcurrent(context.Background(), items, 3,
		func(ctx context.Context, _ int) (struct{}, error) {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			return struct{}{}, nil
		})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestMapConcurrent_ErrorCancelsGroup(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2, 3, 4}

	var sawCancel atomic.Bool
	results, err := MapConcurrent(context.Background(), items, 2,
		func(ctx context.Context, item int) (int, error) {
			if item == 1 {
				return 0, boom
			}
			select {
			case <-ctx.Done():
				sawCancel.Store(true)
				return 0, ctx.Err()
			case <-time.After(50 * time.Millisecond):
				return item, nil
			}
		})

	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, sawCancel.Load(), "in-flight work should observe cancellation")
}

func TestMapConcurrent_EmptyInput(t *testing.T) {
	results, err := MapConcurrent(context.Background(), nil, 4,
		func(ctx context.Context, item int) (int, error) {
			t.Fatal("fn should not be called")
			return 0, nil
		})

	require.NoError(t, err)
	assert.Empty(t, results)
}
