package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	pool := NewPool(4, zap.NewNop())

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		ok := pool.Submit(context.Background(), "count", func(context.Context) {
			ran.Add(1)
		})
		require.True(t, ok)
	}
	pool.Drain()

	require.Equal(t, int64(10), ran.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2, zap.NewNop())

	var active, peak atomic.Int64
	for i := 0; i < 8; i++ {
		pool.Submit(context.Background(), "probe", func(context.Context) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		})
	}
	pool.Drain()

	require.LessOrEqual(t, peak.Load(), int64(2))
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := NewPool(1, zap.NewNop())

	var after atomic.Bool
	pool.Submit(context.Background(), "boom", func(context.Context) {
		panic("boom")
	})
	pool.Submit(context.Background(), "follow-up", func(context.Context) {
		after.Store(true)
	})
	pool.Drain()

	require.True(t, after.Load())
}

func TestPoolRejectsAfterDrain(t *testing.T) {
	pool := NewPool(1, zap.NewNop())
	pool.Drain()

	ok := pool.Submit(context.Background(), "late", func(context.Context) {})
	require.False(t, ok)
}

func TestPoolSubmitHonorsContextWhileFull(t *testing.T) {
	pool := NewPool(1, zap.NewNop())

	release := make(chan struct{})
	pool.Submit(context.Background(), "blocker", func(context.Context) {
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	ok := pool.Submit(ctx, "queued", func(context.Context) {})
	require.False(t, ok)

	close(release)
	pool.Drain()
}
