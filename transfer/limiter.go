package transfer

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// MaxLimit is the largest concurrency a Limiter can be resized to.
const MaxLimit = 1 << 10

// Limiter is a counting semaphore whose capacity can change while permits
// are held. The underlying semaphore always has MaxLimit permits; the ones
// above the current limit are held in reserve by the Limiter itself.
// Growing releases reserved permits, shrinking acquires permits back as
// in-flight holders return them. Permits already handed out are never
// revoked.
type Limiter struct {
	sem *semaphore.Weighted

	mu    sync.Mutex // serializes Resize
	limit int
}

// NewLimiter returns a Limiter admitting n concurrent holders.
func NewLimiter(n int) (*Limiter, error) {
	if n < 1 || n > MaxLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	sem := semaphore.NewWeighted(MaxLimit)
	// A fresh semaphore is empty, so the reserve is taken immediately.
	if !sem.TryAcquire(int64(MaxLimit - n)) {
		return nil, fmt.Errorf("transfer: reserve permits")
	}
	return &Limiter{sem: sem, limit: n}, nil
}

// Acquire blocks until a permit is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release returns a permit obtained with Acquire.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Limit returns the current capacity.
func (l *Limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Resize changes the capacity to n. Shrinking waits until enough in-flight
// holders release; if ctx ends first the capacity is left unchanged.
func (l *Limiter) Resize(ctx context.Context, n int) error {
	if n < 1 || n > MaxLimit {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case n > l.limit:
		l.sem.Release(int64(n - l.limit))
	case n < l.limit:
		if err := l.sem.Acquire(ctx, int64(l.limit-n)); err != nil {
			return err
		}
	}
	l.limit = n
	return nil
}
