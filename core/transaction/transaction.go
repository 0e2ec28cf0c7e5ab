package transaction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionState represents the in-memory state of a transaction on the
// coordinating node.
type TransactionState int

const (
	TxnStateRunning   TransactionState = iota // Transaction is active, rounds are being executed
	TxnStateCommitted                         // Transaction finished and its effects are durable
	TxnStateAborted                           // Transaction was rolled back, locally or by decision
)

func (s TransactionState) String() string {
	switch s {
	case TxnStateRunning:
		return "RUNNING"
	case TxnStateCommitted:
		return "COMMITTED"
	case TxnStateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("TransactionState(%d)", int(s))
	}
}

// Transaction is the in-memory record of one active transaction. It is the
// handle the executor threads hold while driving execution rounds; the
// round-by-round coordination state itself lives in execution.ExecutionState,
// which is bound to exactly one Transaction.
type Transaction struct {
	ID        uuid.UUID
	State     TransactionState
	StartedAt time.Time

	// roundsExecuted counts completed batch rounds, for accounting only.
	roundsExecuted int
}

// Begin creates a new running transaction with a fresh ID.
func Begin() *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		State:     TxnStateRunning,
		StartedAt: time.Now(),
	}
}

// MarkRoundExecuted records that one batch round ran to completion.
func (t *Transaction) MarkRoundExecuted() {
	t.roundsExecuted++
}

// RoundsExecuted reports how many batch rounds this transaction has completed.
func (t *Transaction) RoundsExecuted() int {
	return t.roundsExecuted
}

// Commit moves the transaction to COMMITTED. Only a running transaction can
// commit.
func (t *Transaction) Commit() error {
	if t.State != TxnStateRunning {
		return fmt.Errorf("cannot commit transaction %s in state %s", t.ID, t.State)
	}
	t.State = TxnStateCommitted
	return nil
}

// Abort moves the transaction to ABORTED. Aborting an already aborted
// transaction is a no-op; aborting a committed one is an error.
func (t *Transaction) Abort() error {
	switch t.State {
	case TxnStateCommitted:
		return fmt.Errorf("cannot abort committed transaction %s", t.ID)
	case TxnStateAborted:
		return nil
	}
	t.State = TxnStateAborted
	return nil
}
