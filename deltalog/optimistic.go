package deltalog

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"delta-go/action"
	"delta-go/deltaerr"
)

// OptimisticTransaction extends the plain append with a read version, a read
// set of declared file/metadata dependencies, and a commit protocol that
// detects whether a concurrent commit invalidated those dependencies before
// writing.
type OptimisticTransaction struct {
	log            *DeltaLog
	appID          string
	actions        []action.Action
	committed      atomic.Bool
	isolationLevel IsolationLevel
	readVersion    int64
	readPredicates map[string]struct{}
	newMetadata    map[string]string
	maxRetryCount  int
}

// AppID returns this transaction's generated identifier.
func (tx *OptimisticTransaction) AppID() string { return tx.appID }

// ReadVersion returns the latestVersion() captured when this transaction
// began.
func (tx *OptimisticTransaction) ReadVersion() int64 { return tx.readVersion }

// WithIsolationLevel sets the conflict policy and returns the receiver.
func (tx *OptimisticTransaction) WithIsolationLevel(level IsolationLevel) *OptimisticTransaction {
	tx.isolationLevel = level
	return tx
}

// WithMaxRetryCount overrides the default retry count used by
// CommitWithRetry and returns the receiver.
func (tx *OptimisticTransaction) WithMaxRetryCount(n int) *OptimisticTransaction {
	if n > 0 {
		tx.maxRetryCount = n
	}
	return tx
}

// AddAction stages a for this transaction's next commit.
func (tx *OptimisticTransaction) AddAction(a action.Action) error {
	if tx.committed.Load() {
		return deltaerr.Wrap(deltaerr.InvalidState, "OptimisticTransaction.AddAction",
			fmt.Errorf("transaction %s already committed", tx.appID))
	}
	tx.actions = append(tx.actions, a)
	return nil
}

// ReadFile declares that this transaction's commit depends on the current
// state of path: a concurrent AddFile or RemoveFile of path may conflict
// with it, per isolation level.
func (tx *OptimisticTransaction) ReadFile(path string) {
	tx.readPredicates["file:"+path] = struct{}{}
}

// ReadMetadata declares that this transaction's commit depends on the
// current value of the metadata key key.
func (tx *OptimisticTransaction) ReadMetadata(key string) {
	tx.readPredicates["metadata:"+key] = struct{}{}
}

// UpdateMetadata records a pending metadata write for key. A concurrent
// Metadata commit conflicts with this transaction if it also declared
// ReadMetadata(key).
func (tx *OptimisticTransaction) UpdateMetadata(key, value string) {
	tx.newMetadata[key] = value
}

// Commit runs the fused conflict-check-then-write critical section for
// operation: it re-reads latestVersion() under the log's single mutex,
// classifies every interleaved commit's actions against this transaction's
// read set, and — only if none conflict — writes the staged actions plus a
// CommitInfo describing operation. The check and the write share one lock
// acquisition so no other transaction can interleave between them. A
// transaction whose read version is -1 (begun before the table's first
// commit) skips the classification and always writes.
func (tx *OptimisticTransaction) Commit(operation string) (int64, error) {
	if !tx.committed.CompareAndSwap(false, true) {
		return 0, deltaerr.Wrap(deltaerr.InvalidState, "OptimisticTransaction.Commit",
			fmt.Errorf("transaction %s already committed", tx.appID))
	}

	d := tx.log
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.store.LatestVersion()
	if err != nil {
		return 0, err
	}

	if current != tx.readVersion && tx.readVersion != -1 {
		for v := tx.readVersion + 1; v <= current; v++ {
			committed, err := d.store.ReadVersion(v)
			if err != nil {
				return 0, err
			}
			for _, a := range committed {
				if cause := classifyConflict(tx.isolationLevel, tx.readPredicates, tx.newMetadata, a); cause != nil {
					return 0, deltaerr.Wrap(deltaerr.ConcurrentModification, "OptimisticTransaction.Commit", cause)
				}
			}
		}
	}

	next := current + 1
	commitInfo := action.NewCommitInfo(operation).
		WithParameter("isolationLevel", tx.isolationLevel.String()).
		WithParameter("startVersion", strconv.FormatInt(tx.readVersion, 10)).
		WithParameter("commitTime", strconv.FormatInt(time.Now().UnixMilli(), 10))

	staged := make([]action.Action, 0, len(tx.actions)+1)
	staged = append(staged, tx.actions...)
	staged = append(staged, commitInfo)

	if err := d.store.Write(next, staged); err != nil {
		return 0, err
	}
	d.invalidateLocked()
	if err := d.maybeCheckpointLocked(next); err != nil {
		return 0, err
	}

	return next, nil
}

// classifyConflict reports, as a non-nil error describing the cause, whether
// action a — committed at some version in (readVersion, current] — conflicts
// with a transaction holding readPredicates and newMetadata under level.
func classifyConflict(level IsolationLevel, readPredicates map[string]struct{}, newMetadata map[string]string, a action.Action) error {
	switch v := a.(type) {
	case *action.AddFile:
		if level != Serializable {
			return nil
		}
		if _, read := readPredicates["file:"+v.Path]; read {
			return fmt.Errorf("concurrent add of %q conflicts with a read of that path", v.Path)
		}
	case *action.RemoveFile:
		if _, read := readPredicates["file:"+v.Path]; read {
			return fmt.Errorf("concurrent remove of %q conflicts with a read of that path", v.Path)
		}
	case *action.Metadata:
		for key := range newMetadata {
			if _, read := readPredicates["metadata:"+key]; read {
				return fmt.Errorf("concurrent metadata change conflicts with a read of key %q", key)
			}
		}
	}
	return nil
}
