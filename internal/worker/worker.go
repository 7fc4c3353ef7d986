// Package worker bounds how many media files are evaluated at once.
package worker

import (
	"context"
	"sync"
)

// Semaphore provides a counting semaphore for controlling concurrency.
// Every evaluation holds one permit while its container is open, so the
// number of open demuxers and decoders never exceeds the permit count.
type Semaphore struct {
	permits chan struct{}
}

// NewSemaphore creates a new semaphore with the given number of permits.
func NewSemaphore(count int) *Semaphore {
	if count <= 0 {
		count = 1
	}
	s := &Semaphore{
		permits: make(chan struct{}, count),
	}
	// Pre-fill the permits
	for i := 0; i < count; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a permit if one is free.
func (s *Semaphore) TryAcquire() bool {
	select {
	case <-s.permits:
		return true
	default:
		return false
	}
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		// Semaphore is full, this shouldn't happen in normal use
	}
}

// Capacity returns the total number of permits.
func (s *Semaphore) Capacity() int {
	return cap(s.permits)
}

// InUse returns how many permits are currently held.
func (s *Semaphore) InUse() int {
	return cap(s.permits) - len(s.permits)
}

// Run calls job for every index in [0, n), holding a permit of sem for
// the duration of each call. It returns once every started job has
// finished. Jobs not started before ctx is done are skipped and reported
// through skipped, which may be nil.
func Run(ctx context.Context, sem *Semaphore, n int, job func(ctx context.Context, i int), skipped func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx); err != nil {
			if skipped != nil {
				for j := i; j < n; j++ {
					skipped(j)
				}
			}
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release()
			job(ctx, i)
		}(i)
	}
	wg.Wait()
}
