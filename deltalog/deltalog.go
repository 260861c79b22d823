// Package deltalog is the transaction coordinator: it composes the action
// model, log store, snapshot builder and checkpoint engine behind a single
// per-table handle, DeltaLog, and exposes the two transaction flavors that
// write to it — the plain, single-writer Transaction and the conflict-aware
// OptimisticTransaction.
package deltalog

import (
	"sync"

	"delta-go/action"
	"delta-go/checkpoint"
	"delta-go/logstore"
	"delta-go/snapshot"
)

// DefaultMaxRetryCount is the number of attempts CommitWithRetry makes
// before surfacing the last conflict as an IoError.
const DefaultMaxRetryCount = 3

// DeltaLog is the per-table handle. It owns the table's single mutex: every
// operation that observes or mutates table state (Update, the transaction
// commit paths, Checkpoint) holds it for its entire critical section. The
// mutex is not re-entrant — Go has none in the standard library — so every
// method that must run while already holding it is unexported and named
// with a Locked suffix, never calling back into a public, locking method.
type DeltaLog struct {
	mu                 sync.Mutex
	store              *logstore.Store
	checkpoints        *checkpoint.Engine
	checkpointInterval int
	snapshot           *snapshot.Snapshot
}

// Open returns a handle for the table rooted at tableRoot. checkpointInterval
// of 0 or less falls back to checkpoint.DefaultInterval. Open touches no
// filesystem state; a table with no commits yet is represented the same as
// one whose directory doesn't exist.
func Open(tableRoot string, checkpointInterval int) *DeltaLog {
	if checkpointInterval <= 0 {
		checkpointInterval = checkpoint.DefaultInterval
	}
	store := logstore.Open(tableRoot)
	return &DeltaLog{
		store:              store,
		checkpoints:        checkpoint.New(store.LogDir()),
		checkpointInterval: checkpointInterval,
	}
}

// TableExists reports whether the table has at least one commit.
func (d *DeltaLog) TableExists() bool {
	return d.store.TableExists()
}

// Update recomputes and caches the current snapshot by combining the latest
// checkpoint (if any) with every commit strictly newer than it.
func (d *DeltaLog) Update() (*snapshot.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updateLocked()
}

// Snapshot returns the cached snapshot, computing it as Update does when
// none is cached (on the first call, or after a commit dropped the cache).
func (d *DeltaLog) Snapshot() (*snapshot.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapshot != nil {
		return d.snapshot, nil
	}
	return d.updateLocked()
}

// Checkpoint forces a checkpoint of the current snapshot regardless of
// ShouldCheckpoint, returning the checkpointed version.
func (d *DeltaLog) Checkpoint() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap, err := d.updateLocked()
	if err != nil {
		return 0, err
	}
	return d.checkpoints.Write(snap)
}

// StartTransaction returns a plain, single-writer Transaction against this
// log. Use StartOptimisticTransaction for conflict-aware commits.
func (d *DeltaLog) StartTransaction() *Transaction {
	return newTransaction(d)
}

// StartOptimisticTransaction captures the log's current latestVersion as the
// transaction's read version and returns a new OptimisticTransaction with
// default isolation (Serializable) and default retry count.
func (d *DeltaLog) StartOptimisticTransaction() (*OptimisticTransaction, error) {
	d.mu.Lock()
	readVersion, err := d.store.LatestVersion()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &OptimisticTransaction{
		log:            d,
		appID:          newAppID(),
		isolationLevel: Serializable,
		readVersion:    readVersion,
		readPredicates: make(map[string]struct{}),
		newMetadata:    make(map[string]string),
		maxRetryCount:  DefaultMaxRetryCount,
	}, nil
}

// updateLocked must be called with mu held. It resolves the latest
// checkpoint, replays the checkpoint's actions followed by every commit
// strictly after it, and caches the result.
func (d *DeltaLog) updateLocked() (*snapshot.Snapshot, error) {
	meta, err := d.checkpoints.FindLatest()
	if err != nil {
		return nil, err
	}

	var actions []action.Action
	baseVersion := int64(-1)
	if meta != nil {
		cpActions, err := d.checkpoints.Read(meta.Version)
		if err != nil {
			return nil, err
		}
		actions = append(actions, cpActions...)
		baseVersion = meta.Version
	}

	versions, err := d.store.ListVersions()
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v <= baseVersion {
			continue
		}
		vActions, err := d.store.ReadVersion(v)
		if err != nil {
			return nil, err
		}
		actions = append(actions, vActions...)
	}

	latest, err := d.store.LatestVersion()
	if err != nil {
		return nil, err
	}

	snap := snapshot.Build(actions, latest)
	d.snapshot = snap
	return snap, nil
}

// invalidateLocked drops the cached snapshot so the next Update/Snapshot
// call recomputes it. Must be called with mu held.
func (d *DeltaLog) invalidateLocked() {
	d.snapshot = nil
}

// maybeCheckpointLocked checkpoints the table at version if the configured
// interval says it should. Must be called with mu held.
func (d *DeltaLog) maybeCheckpointLocked(version int64) error {
	if !checkpoint.ShouldCheckpoint(version, d.checkpointInterval) {
		return nil
	}
	snap, err := d.updateLocked()
	if err != nil {
		return err
	}
	_, err = d.checkpoints.Write(snap)
	return err
}
