package execution

import (
	"context"
	"sync"
)

// countdownLatch blocks waiters until its count reaches zero. The count only
// moves down; once released the latch stays released.
type countdownLatch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

func newCountdownLatch(count int) *countdownLatch {
	l := &countdownLatch{count: count, done: make(chan struct{})}
	if count <= 0 {
		l.count = 0
		close(l.done)
	}
	return l
}

// countDown decrements the count once, releasing all waiters when it reaches
// zero. Calls after release are ignored; the satisfaction bookkeeping
// upstream guarantees at most one call per expected arrival.
func (l *countdownLatch) countDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// remaining returns how many countdowns are still outstanding.
func (l *countdownLatch) remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// wait blocks until the count reaches zero or ctx is cancelled, whichever
// comes first.
func (l *countdownLatch) wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
