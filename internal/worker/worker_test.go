package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolKeepsOrderPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen = map[int64][]int{}
		wg   sync.WaitGroup
	)
	pool := NewPool(ctx, PoolOptions{MaxConcurrent: 4, Buffer: 32}, func(_ context.Context, key int64, job int) {
		defer wg.Done()
		mu.Lock()
		seen[key] = append(seen[key], job)
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		for _, key := range []int64{1, 2, 3} {
			wg.Add(1)
			require.NoError(t, pool.Submit(key, i))
		}
	}
	wg.Wait()

	assert.Equal(t, 3, pool.Len())
	for _, key := range []int64{1, 2, 3} {
		want := make([]int, 20)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, seen[key])
	}
}

func TestPoolSlowKeyDoesNotBlockOthers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	done := make(chan int64, 2)
	pool := NewPool(ctx, PoolOptions{MaxConcurrent: 2, Buffer: 1}, func(_ context.Context, key int64, _ struct{}) {
		if key == 1 {
			<-release
		}
		done <- key
	})

	require.NoError(t, pool.Submit(1, struct{}{}))
	require.NoError(t, pool.Submit(2, struct{}{}))

	select {
	case key := <-done:
		assert.Equal(t, int64(2), key)
	case <-time.After(2 * time.Second):
		t.Fatal("second key was blocked by the first")
	}
	close(release)
	assert.Equal(t, int64(1), <-done)
}

func TestPoolSubmitFailsFastWhenQueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	pool := NewPool(ctx, PoolOptions{MaxConcurrent: 1, Buffer: 1}, func(_ context.Context, _ int64, _ int) {
		started <- struct{}{}
		<-release
	})
	defer close(release)

	require.NoError(t, pool.Submit(1, 0))
	<-started
	require.NoError(t, pool.Submit(1, 1))

	errc := make(chan error, 1)
	go func() { errc <- pool.Submit(1, 2) }()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}

func TestPoolRetiresIdleWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 4)
	pool := NewPool(ctx, PoolOptions{MaxConcurrent: 2, IdleTimeout: 50 * time.Millisecond}, func(_ context.Context, _ int64, _ int) {
		done <- struct{}{}
	})

	require.NoError(t, pool.Submit(1, 0))
	require.NoError(t, pool.Submit(2, 0))
	<-done
	<-done
	assert.Equal(t, 2, pool.Len())

	assert.Eventually(t, func() bool { return pool.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	// A retired key gets a fresh worker.
	require.NoError(t, pool.Submit(1, 1))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job after retirement was not handled")
	}
}

func TestPoolNegativeIdleKeepsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 1)
	pool := NewPool(ctx, PoolOptions{IdleTimeout: -1}, func(_ context.Context, _ int64, _ int) {
		done <- struct{}{}
	})
	require.NoError(t, pool.Submit(7, 0))
	<-done
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, pool.Len())
}

func TestTryEnqueueStopsWhenWorkersDone(t *testing.T) {
	workersCtx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := make(chan int, 1)
	err := TryEnqueue(workersCtx, jobs, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
