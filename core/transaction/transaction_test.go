package transaction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionLifecycle(t *testing.T) {
	txn := Begin()
	require.Equal(t, TxnStateRunning, txn.State)
	require.NotEqual(t, txn.ID, Begin().ID)

	txn.MarkRoundExecuted()
	txn.MarkRoundExecuted()
	require.Equal(t, 2, txn.RoundsExecuted())

	require.NoError(t, txn.Commit())
	require.Equal(t, TxnStateCommitted, txn.State)

	// Terminal states reject further transitions.
	require.Error(t, txn.Commit())
	require.Error(t, txn.Abort())
}

func TestTransactionAbort(t *testing.T) {
	txn := Begin()
	require.NoError(t, txn.Abort())
	require.Equal(t, TxnStateAborted, txn.State)

	// Re-aborting is a no-op, committing an aborted transaction is not.
	require.NoError(t, txn.Abort())
	require.Error(t, txn.Commit())
}
