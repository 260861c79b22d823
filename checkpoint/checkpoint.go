// Package checkpoint implements compaction of a snapshot's full action list
// into a binary, Snappy-compressed Parquet file, plus the small textual
// "_last_checkpoint" pointer record that locates the newest one.
//
// The checkpoint schema is deliberately a two-column envelope
// {actionType, actionJson} rather than one column per action variant: this
// lets one schema describe all five action kinds at the cost of not being
// queryable without re-parsing the JSON payload. A richer columnar schema
// per variant is a possible future refinement; the wrapper is acceptable
// for the core.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"delta-go/action"
	"delta-go/deltaerr"
	"delta-go/snapshot"
)

const (
	// DefaultInterval is the number of versions between checkpoints when a
	// log does not configure its own.
	DefaultInterval = 10

	checkpointSuffix   = ".checkpoint.parquet"
	lastCheckpointName = "_last_checkpoint"
	tempCheckpointGlob = ".delta-checkpoint-tmp-"
	versionWidth       = 20
	readBatchSize      = 256
)

// ActionRecord is the single-schema row written for every action in a
// checkpoint: its discriminant plus the canonical JSON line that action.Parse
// can read back.
type ActionRecord struct {
	ActionType string `parquet:"actionType"`
	ActionJSON string `parquet:"actionJson"`
}

// Metadata is the "_last_checkpoint" pointer record: it locates the newest
// checkpoint without requiring a directory scan.
type Metadata struct {
	Version int64  `json:"version"`
	Size    int64  `json:"size"`
	Parts   *int32 `json:"parts"`
}

// CheckpointPath returns the checkpoint file path for version within logDir.
func CheckpointPath(logDir string, version int64) string {
	return filepath.Join(logDir, fmt.Sprintf("%0*d%s", versionWidth, version, checkpointSuffix))
}

// ShouldCheckpoint reports whether version triggers a checkpoint at the
// given interval: true for version 0, and for every version divisible by
// interval. A non-positive interval falls back to DefaultInterval.
func ShouldCheckpoint(version int64, interval int) bool {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return version >= 0 && (version == 0 || version%int64(interval) == 0)
}

// Engine writes and reads checkpoints for the log rooted at logDir.
type Engine struct {
	logDir string
}

// New returns an Engine operating on the _delta_log directory at logDir.
func New(logDir string) *Engine {
	return &Engine{logDir: logDir}
}

func (e *Engine) lastCheckpointPath() string {
	return filepath.Join(e.logDir, lastCheckpointName)
}

// Write serializes snap's full action list into a checkpoint file and
// overwrites the "_last_checkpoint" pointer to reference it. It returns the
// checkpointed version. Both files are written via temp-file-then-rename.
func (e *Engine) Write(snap *snapshot.Snapshot) (int64, error) {
	if snap.Version() < 0 {
		return 0, deltaerr.Wrap(deltaerr.InvalidArgument, "checkpoint.Write",
			fmt.Errorf("cannot checkpoint a non-existent table (version %d)", snap.Version()))
	}

	if err := os.MkdirAll(e.logDir, 0o755); err != nil {
		return 0, deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}

	actions := snap.Actions()
	records := make([]ActionRecord, len(actions))
	for i, a := range actions {
		line, err := a.MarshalLine()
		if err != nil {
			return 0, deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
		}
		records[i] = ActionRecord{ActionType: a.Type(), ActionJSON: string(line)}
	}

	if err := e.writeCheckpointFile(snap.Version(), records); err != nil {
		return 0, err
	}

	// Parts stays nil: this engine only ever writes the single-file form.
	// A non-nil Parts marks a multi-part checkpoint (...checkpoint.NNNN.MMMM.parquet),
	// which this engine does not produce.
	meta := Metadata{Version: snap.Version(), Size: int64(len(actions)), Parts: nil}
	if err := e.writeLastCheckpoint(meta); err != nil {
		return 0, err
	}

	return snap.Version(), nil
}

func (e *Engine) writeCheckpointFile(version int64, records []ActionRecord) error {
	tmp, err := os.CreateTemp(e.logDir, tempCheckpointGlob)
	if err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	writer := parquet.NewGenericWriter[ActionRecord](tmp, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write(records); err != nil {
		_ = writer.Close()
		_ = tmp.Close()
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	if err := writer.Close(); err != nil {
		_ = tmp.Close()
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	if err := tmp.Close(); err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}

	if err := os.Rename(tmpName, CheckpointPath(e.logDir, version)); err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	return nil
}

func (e *Engine) writeLastCheckpoint(meta Metadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}

	tmp, err := os.CreateTemp(e.logDir, tempCheckpointGlob)
	if err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	if err := tmp.Close(); err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}

	if err := os.Rename(tmpName, e.lastCheckpointPath()); err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "checkpoint.Write", err)
	}
	return nil
}

// FindLatest reads the "_last_checkpoint" pointer. A missing pointer file
// returns (nil, nil); a malformed one is CorruptLog.
func (e *Engine) FindLatest() (*Metadata, error) {
	data, err := os.ReadFile(e.lastCheckpointPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, deltaerr.Wrap(deltaerr.IoError, "checkpoint.FindLatest", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, deltaerr.Wrap(deltaerr.CorruptLog, "checkpoint.FindLatest", err)
	}
	return &meta, nil
}

// Read loads every action stored in the checkpoint file for version.
func (e *Engine) Read(version int64) ([]action.Action, error) {
	f, err := os.Open(CheckpointPath(e.logDir, version))
	if err != nil {
		return nil, deltaerr.Wrap(deltaerr.IoError, "checkpoint.Read", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[ActionRecord](f)
	defer reader.Close()

	var actions []action.Action
	batch := make([]ActionRecord, readBatchSize)
	for {
		n, err := reader.Read(batch)
		for _, rec := range batch[:n] {
			a, perr := action.Parse([]byte(rec.ActionJSON))
			if perr != nil {
				return nil, deltaerr.Wrap(deltaerr.CorruptLog, "checkpoint.Read", perr)
			}
			actions = append(actions, a)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, deltaerr.Wrap(deltaerr.IoError, "checkpoint.Read", err)
		}
	}

	return actions, nil
}
