package instance

import (
	"context"
	"sync"
	"time"
)

// bundleFuture models a value that resolves once, asynchronously: a
// value that may not be ready yet, resolved exactly once, and awaited by
// any number of readers.
type bundleFuture interface {
	// wait blocks until the future resolves or ctx is canceled, whichever
	// happens first.
	wait(ctx context.Context) (*Bundle, error)
}

// refreshOperation is the concrete bundleFuture produced by one refresh
// attempt (scheduled, forced, or a post-failure retry). It is resolved
// exactly once, by the goroutine running the refresh.
type refreshOperation struct {
	done   chan struct{}
	once   sync.Once
	bundle *Bundle
	err    error
}

func newRefreshOperation() *refreshOperation {
	return &refreshOperation{done: make(chan struct{})}
}

func (r *refreshOperation) resolve(bundle *Bundle, err error) {
	r.once.Do(func() {
		r.bundle, r.err = bundle, err
		close(r.done)
	})
}

func (r *refreshOperation) wait(ctx context.Context) (*Bundle, error) {
	select {
	case <-r.done:
		return r.bundle, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolved reports whether the operation has completed, and if so whether
// it produced a usable (non-error) bundle.
func (r *refreshOperation) resolved() (bundle *Bundle, done bool) {
	select {
	case <-r.done:
		return r.bundle, true
	default:
		return nil, false
	}
}

// scheduledNext is a future of a future: the outer future resolves when the
// scheduling timer fires and yields the inner refreshOperation it started.
// A forced refresh that preempts the timer replaces it with a new
// scheduledNext created already resolved to the forced refresh. The nesting
// lets ForceRefresh atomically choose between preempting the timer and
// attaching to the refresh the timer already started.
type scheduledNext struct {
	mu    sync.Mutex
	timer *time.Timer // nil for a scheduledNext created already resolved
	ready chan struct{}
	inner *refreshOperation
}

func newScheduledNext() *scheduledNext {
	return &scheduledNext{ready: make(chan struct{})}
}

// deliver resolves the outer future to op. Called exactly once, either by
// the timer callback or by ForceRefresh on the scheduledNext it creates
// when it preempts a timer.
func (s *scheduledNext) deliver(op *refreshOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ready:
		return // already delivered
	default:
	}
	s.inner = op
	close(s.ready)
}

// tryCancel attempts to stop the underlying timer before it fires. It
// returns true if the timer had not yet fired (so no refresh has started on
// its behalf), false if the timer already fired or this scheduledNext was
// created already-fired (e.g. by a prior forced refresh).
func (s *scheduledNext) tryCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return false
	}
	return s.timer.Stop()
}

// wait awaits the outer future (the timer firing, or delivery by
// ForceRefresh) and then the inner refreshOperation it yields.
func (s *scheduledNext) wait(ctx context.Context) (*Bundle, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.inner.wait(ctx)
}
