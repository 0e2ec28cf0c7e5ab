package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCountdownLatch_ReleasesAtZero verifies the latch releases exactly when
// the count reaches zero and tolerates countdowns past it.
func TestCountdownLatch_ReleasesAtZero(t *testing.T) {
	l := newCountdownLatch(2)

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.wait(shortCtx), context.DeadlineExceeded)

	l.countDown()
	require.Equal(t, 1, l.remaining())

	l.countDown()
	require.Equal(t, 0, l.remaining())
	require.NoError(t, l.wait(context.Background()))

	// Extra countdowns past zero are ignored.
	l.countDown()
	require.Equal(t, 0, l.remaining())
}

// TestCountdownLatch_ZeroCount verifies a latch created with nothing to wait
// for is released immediately, which is how a fully pre-buffered round
// completes without any live arrival.
func TestCountdownLatch_ZeroCount(t *testing.T) {
	require.NoError(t, newCountdownLatch(0).wait(context.Background()))
	require.NoError(t, newCountdownLatch(-1).wait(context.Background()))
}
