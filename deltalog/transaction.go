package deltalog

import (
	"fmt"
	"sync/atomic"

	"delta-go/action"
	"delta-go/deltaerr"

	"github.com/google/uuid"
)

func newAppID() string {
	return uuid.New().String()
}

// Transaction is a plain, single-writer append: it stages actions and
// commits them at whatever version is next, with no conflict detection.
// Two Transactions racing to commit against the same log each land at their
// own latestVersion()+1 — the log's mutex serializes the race, but neither
// side is told about the other. Use
// OptimisticTransaction when concurrent writers must detect and retry past
// each other.
type Transaction struct {
	log       *DeltaLog
	appID     string
	actions   []action.Action
	committed atomic.Bool
}

func newTransaction(log *DeltaLog) *Transaction {
	return &Transaction{log: log, appID: newAppID()}
}

// AppID returns this transaction's generated identifier.
func (t *Transaction) AppID() string { return t.appID }

// AddAction stages a for this transaction's next commit.
func (t *Transaction) AddAction(a action.Action) error {
	if t.committed.Load() {
		return deltaerr.Wrap(deltaerr.InvalidState, "Transaction.AddAction",
			fmt.Errorf("transaction %s already committed", t.appID))
	}
	t.actions = append(t.actions, a)
	return nil
}

// Commit writes the staged actions at latestVersion()+1 and marks the
// transaction committed. The first commit of a new table lands at version 0.
func (t *Transaction) Commit() (*Transaction, error) {
	if !t.committed.CompareAndSwap(false, true) {
		return nil, deltaerr.Wrap(deltaerr.InvalidState, "Transaction.Commit",
			fmt.Errorf("transaction %s already committed", t.appID))
	}

	d := t.log
	d.mu.Lock()
	defer d.mu.Unlock()

	latest, err := d.store.LatestVersion()
	if err != nil {
		return nil, err
	}
	next := latest + 1

	if err := d.store.Write(next, t.actions); err != nil {
		return nil, err
	}
	d.invalidateLocked()
	if err := d.maybeCheckpointLocked(next); err != nil {
		return nil, err
	}

	return t, nil
}
