package concurrency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEach_VisitsEveryIndex(t *testing.T) {
	results := make([]int, 100)
	ForEach(context.Background(), 4, len(results), func(_ context.Context, i int) {
		results[i] = i * 2
	})

	for i, v := range results {
		assert.Equal(t, i*2, v)
	}
}

func TestForEach_ZeroTasks(t *testing.T) {
	called := false
	ForEach(context.Background(), 4, 0, func(_ context.Context, i int) {
		called = true
	})
	assert.False(t, called)
}

func TestForEach_MoreWorkersThanTasks(t *testing.T) {
	results := make([]bool, 2)
	ForEach(context.Background(), 8, len(results), func(_ context.Context, i int) {
		results[i] = true
	})
	assert.Equal(t, []bool{true, true}, results)
}

func TestForEach_CancelledContextStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// must return rather than hang; some tasks may be skipped
	ForEach(ctx, 2, 1000, func(_ context.Context, i int) {})
}
