package deltalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"delta-go/action"
	"delta-go/deltaerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_EmptyLog(t *testing.T) {
	d := Open(t.TempDir(), 10)

	assert.False(t, d.TableExists())

	snap, err := d.Update()
	require.NoError(t, err)
	assert.EqualValues(t, -1, snap.Version())
	assert.Empty(t, snap.AllFiles())
}

func TestScenario_SingleCommit(t *testing.T) {
	d := Open(t.TempDir(), 10)

	tx := d.StartTransaction()
	require.NoError(t, tx.AddAction(&action.Protocol{MinReaderVersion: 1, MinWriterVersion: 1}))
	require.NoError(t, tx.AddAction(&action.Metadata{ID: "t", Name: "Test Table", Format: "csv"}))
	_, err := tx.Commit()
	require.NoError(t, err)

	snap, err := d.Update()
	require.NoError(t, err)
	assert.EqualValues(t, 0, snap.Version())
	require.NotNil(t, snap.Protocol())
	require.NotNil(t, snap.Metadata())
	assert.Empty(t, snap.AllFiles())
}

func TestScenario_AddRemoveLifecycle(t *testing.T) {
	d := Open(t.TempDir(), 10)

	tx0 := d.StartTransaction()
	require.NoError(t, tx0.AddAction(&action.Protocol{MinReaderVersion: 1, MinWriterVersion: 1}))
	require.NoError(t, tx0.AddAction(&action.Metadata{ID: "t"}))
	_, err := tx0.Commit()
	require.NoError(t, err)

	tx1 := d.StartTransaction()
	require.NoError(t, tx1.AddAction(&action.AddFile{Path: "data/file1.csv", Size: 100, DataChange: true}))
	_, err = tx1.Commit()
	require.NoError(t, err)

	snapAtV1, err := d.Update()
	require.NoError(t, err)
	assert.Len(t, snapAtV1.AllFiles(), 1)

	tx2 := d.StartTransaction()
	require.NoError(t, tx2.AddAction(&action.RemoveFile{Path: "data/file1.csv"}))
	_, err = tx2.Commit()
	require.NoError(t, err)

	snapAtV2, err := d.Update()
	require.NoError(t, err)
	assert.Empty(t, snapAtV2.AllFiles())
}

func TestScenario_CheckpointAndTailReplay(t *testing.T) {
	root := t.TempDir()
	d := Open(root, 2)

	commit := func(actions ...action.Action) {
		tx := d.StartTransaction()
		for _, a := range actions {
			require.NoError(t, tx.AddAction(a))
		}
		_, err := tx.Commit()
		require.NoError(t, err)
	}

	commit(&action.Protocol{MinReaderVersion: 1, MinWriterVersion: 1}, &action.Metadata{ID: "t"}) // v0
	commit(
		&action.AddFile{Path: "file1", DataChange: true},
		&action.AddFile{Path: "file2", DataChange: true},
	) // v1, triggers no checkpoint yet (interval 2, version 1)

	// Drive to v2 explicitly since AddRemoveLifecycle used 1 action/commit;
	// here we want file1/file2 landed by v2 mirroring the scenario's
	// numbering, so commit an empty no-op to advance to v2's checkpoint.
	commit() // v2 — interval 2 triggers a checkpoint here.

	meta, err := d.Checkpoint()
	require.NoError(t, err)
	assert.EqualValues(t, 2, meta)

	commit(&action.AddFile{Path: "file3", DataChange: true}) // v3
	commit(&action.RemoveFile{Path: "file1"})                // v4 — interval 2 checkpoints here too
	commit(&action.AddFile{Path: "file4", DataChange: true}) // v5 — the tail after the v4 checkpoint

	// Reopen the log fresh to force a checkpoint+tail replay (v4 checkpoint,
	// then v5), not a reuse of the cached snapshot.
	reopened := Open(root, 2)
	snap, err := reopened.Update()
	require.NoError(t, err)

	paths := make([]string, 0, len(snap.AllFiles()))
	for _, f := range snap.AllFiles() {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"file2", "file3", "file4"}, paths)
}

func TestScenario_ConflictUnderSerializable(t *testing.T) {
	root := t.TempDir()
	d := Open(root, 10)

	tx0 := d.StartTransaction()
	require.NoError(t, tx0.AddAction(&action.AddFile{Path: "file-a", DataChange: true}))
	_, err := tx0.Commit()
	require.NoError(t, err)

	tx1, err := d.StartOptimisticTransaction()
	require.NoError(t, err)
	tx1.ReadFile("file-a")
	require.NoError(t, tx1.AddAction(&action.AddFile{Path: "fileX", DataChange: true}))

	tx2, err := d.StartOptimisticTransaction()
	require.NoError(t, err)
	require.NoError(t, tx2.AddAction(&action.AddFile{Path: "file-a", DataChange: true}))
	_, err = tx2.Commit("WRITE")
	require.NoError(t, err)

	_, err = tx1.Commit("WRITE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, deltaerr.ConcurrentModification))
}

func TestScenario_WriteSerializableToleratesConcurrentAdd(t *testing.T) {
	root := t.TempDir()
	d := Open(root, 10)

	tx0 := d.StartTransaction()
	require.NoError(t, tx0.AddAction(&action.AddFile{Path: "file-a", DataChange: true}))
	_, err := tx0.Commit()
	require.NoError(t, err)

	tx1, err := d.StartOptimisticTransaction()
	require.NoError(t, err)
	tx1.WithIsolationLevel(WriteSerializable)
	tx1.ReadFile("file-a")
	require.NoError(t, tx1.AddAction(&action.AddFile{Path: "fileX", DataChange: true}))

	tx2, err := d.StartOptimisticTransaction()
	require.NoError(t, err)
	require.NoError(t, tx2.AddAction(&action.AddFile{Path: "file-a", DataChange: true}))
	_, err = tx2.Commit("WRITE")
	require.NoError(t, err)

	_, err = tx1.Commit("WRITE")
	assert.NoError(t, err)
}

func TestScenario_AutomaticRetry_SucceedsWithinBudget(t *testing.T) {
	root := t.TempDir()
	d := Open(root, 10)

	// Seed v0 so every attempt starts from a real read version; a
	// transaction whose read version is -1 skips conflict detection.
	seed := d.StartTransaction()
	require.NoError(t, seed.AddAction(&action.Protocol{MinReaderVersion: 1, MinWriterVersion: 1}))
	_, err := seed.Commit()
	require.NoError(t, err)

	attempts := 0
	factory := func() (*OptimisticTransaction, error) {
		tx, err := d.StartOptimisticTransaction()
		if err != nil {
			return nil, err
		}
		tx.WithMaxRetryCount(3)
		require.NoError(t, tx.AddAction(&action.AddFile{Path: "retry-target", DataChange: true}))
		attempts++
		if attempts < 3 {
			// Inject an artificial conflict ahead of this attempt's write by
			// committing a colliding read dependency via a side transaction.
			tx.ReadFile("conflict-seed")
			side := d.StartTransaction()
			require.NoError(t, side.AddAction(&action.AddFile{Path: "conflict-seed", DataChange: true}))
			_, err := side.Commit()
			require.NoError(t, err)
		}
		return tx, nil
	}

	version, err := CommitWithRetry(context.Background(), factory, "WRITE")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, int64(0))
	assert.Equal(t, 3, attempts)
}

func TestScenario_AutomaticRetry_ExhaustsAndSurfacesIoError(t *testing.T) {
	root := t.TempDir()
	d := Open(root, 10)

	// Seed v0 so every attempt starts from a real read version; a
	// transaction whose read version is -1 skips conflict detection.
	seed := d.StartTransaction()
	require.NoError(t, seed.AddAction(&action.Protocol{MinReaderVersion: 1, MinWriterVersion: 1}))
	_, err := seed.Commit()
	require.NoError(t, err)

	factory := func() (*OptimisticTransaction, error) {
		tx, err := d.StartOptimisticTransaction()
		if err != nil {
			return nil, err
		}
		tx.WithMaxRetryCount(3)
		tx.ReadFile("conflict-seed")
		require.NoError(t, tx.AddAction(&action.AddFile{Path: "retry-target", DataChange: true}))

		side := d.StartTransaction()
		require.NoError(t, side.AddAction(&action.AddFile{Path: "conflict-seed", DataChange: true}))
		_, err = side.Commit()
		require.NoError(t, err)

		return tx, nil
	}

	_, err = CommitWithRetry(context.Background(), factory, "WRITE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, deltaerr.IoError))
	assert.True(t, errors.Is(err, deltaerr.ConcurrentModification))
}

func TestConcurrentOptimisticCommits_AtMostOneSucceedsWithoutRetry(t *testing.T) {
	root := t.TempDir()
	d := Open(root, 10)

	tx0 := d.StartTransaction()
	require.NoError(t, tx0.AddAction(&action.Protocol{MinReaderVersion: 1, MinWriterVersion: 1}))
	_, err := tx0.Commit()
	require.NoError(t, err)

	// Start every transaction before any commits so they share read version 0.
	const n = 5
	txs := make([]*OptimisticTransaction, n)
	for i := 0; i < n; i++ {
		tx, err := d.StartOptimisticTransaction()
		require.NoError(t, err)
		tx.ReadFile("shared")
		_ = tx.AddAction(&action.AddFile{Path: "shared", DataChange: true})
		txs[i] = tx
	}

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = txs[i].Commit("WRITE")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.Is(err, deltaerr.ConcurrentModification))
		}
	}
	assert.LessOrEqual(t, succeeded, 1)
}

func TestTransaction_AddActionAfterCommitFails(t *testing.T) {
	d := Open(t.TempDir(), 10)
	tx := d.StartTransaction()
	_, err := tx.Commit()
	require.NoError(t, err)

	err = tx.AddAction(&action.AddFile{Path: "late"})
	assert.True(t, errors.Is(err, deltaerr.InvalidState))

	_, err = tx.Commit()
	assert.True(t, errors.Is(err, deltaerr.InvalidState))
}
