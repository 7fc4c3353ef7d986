package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphore(t *testing.T) {
	s := NewSemaphore(2)
	assert.Equal(t, 2, s.Capacity())

	require.NoError(t, s.Acquire(context.Background()))
	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
	assert.Equal(t, 2, s.InUse())

	s.Release()
	assert.Equal(t, 1, s.InUse())
	s.Release()
	s.Release() // extra release must not grow the pool
	assert.Equal(t, 0, s.InUse())
	assert.Equal(t, 2, s.Capacity())
}

func TestSemaphoreMinimumOnePermit(t *testing.T) {
	assert.Equal(t, 1, NewSemaphore(0).Capacity())
	assert.Equal(t, 1, NewSemaphore(-3).Capacity())
}

func TestSemaphoreAcquireCancelled(t *testing.T) {
	s := NewSemaphore(1)
	require.True(t, s.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunBoundsConcurrency(t *testing.T) {
	s := NewSemaphore(3)

	var running, peak atomic.Int32
	var mu sync.Mutex
	seen := make(map[int]bool)

	Run(context.Background(), s, 20, func(ctx context.Context, i int) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)

		mu.Lock()
		seen[i] = true
		mu.Unlock()
	}, nil)

	assert.Len(t, seen, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 0, s.InUse())
}

func TestRunSkipsAfterCancel(t *testing.T) {
	s := NewSemaphore(1)
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int32
	var mu sync.Mutex
	var skipped []int

	Run(ctx, s, 5, func(ctx context.Context, i int) {
		ran.Add(1)
		if i == 1 {
			cancel()
		}
	}, func(i int) {
		mu.Lock()
		skipped = append(skipped, i)
		mu.Unlock()
	})

	assert.Equal(t, int(ran.Load())+len(skipped), 5)
	assert.NotEmpty(t, skipped)
	assert.Equal(t, 4, skipped[len(skipped)-1])
}
