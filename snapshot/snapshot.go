// Package snapshot implements the deterministic replay of an action
// sequence into the materialized table state: the live file set plus the
// most recent protocol and metadata.
package snapshot

import (
	"strings"

	"delta-go/action"
)

// Snapshot is the materialized state of a table at Version. It carries a
// non-owning back-reference to nothing by design — the coordinator
// (deltalog.DeltaLog) holds the Snapshot, never the other way around, so
// there is no ownership cycle to manage.
type Snapshot struct {
	version   int64
	actions   []action.Action
	protocol  *action.Protocol
	metadata  *action.Metadata
	liveFiles map[string]*action.AddFile
}

// Build replays actions in order and returns the resulting Snapshot tagged
// with version. Actions must already be in the order they should be
// applied: ascending version, and within a version, serialized line order.
// When replay starts from a checkpoint, pass the checkpoint's actions
// followed by the actions of every version strictly greater than the
// checkpoint's version, in that order.
func Build(actions []action.Action, version int64) *Snapshot {
	s := &Snapshot{
		version:   version,
		actions:   actions,
		liveFiles: make(map[string]*action.AddFile),
	}

	for _, a := range actions {
		switch v := a.(type) {
		case *action.AddFile:
			s.liveFiles[v.Path] = v
		case *action.RemoveFile:
			delete(s.liveFiles, v.Path)
		case *action.Metadata:
			s.metadata = v
		case *action.Protocol:
			s.protocol = v
		case *action.CommitInfo:
			// Never affects live state.
		}
	}

	return s
}

// Version returns the version this snapshot was replayed to, or -1 for the
// snapshot of a non-existent table.
func (s *Snapshot) Version() int64 { return s.version }

// Protocol returns the last Protocol action seen during replay, or nil if
// none was ever committed.
func (s *Snapshot) Protocol() *action.Protocol { return s.protocol }

// Metadata returns the last Metadata action seen during replay, or nil if
// none was ever committed.
func (s *Snapshot) Metadata() *action.Metadata { return s.metadata }

// Actions returns the full action list this snapshot was built from, in
// replay order. Used by the checkpoint engine to serialize a compaction.
func (s *Snapshot) Actions() []action.Action {
	return s.actions
}

// AllFiles returns every live AddFile. Iteration order is not guaranteed.
func (s *Snapshot) AllFiles() []*action.AddFile {
	files := make([]*action.AddFile, 0, len(s.liveFiles))
	for _, f := range s.liveFiles {
		files = append(files, f)
	}
	return files
}

// Files returns the live files matching predicate. An empty predicate is
// equivalent to AllFiles. Matching is a plain substring test against the
// file's path — a deliberate placeholder for a richer predicate language,
// not to be promoted beyond that.
func (s *Snapshot) Files(predicate string) []*action.AddFile {
	if predicate == "" {
		return s.AllFiles()
	}
	var files []*action.AddFile
	for _, f := range s.liveFiles {
		if strings.Contains(f.Path, predicate) {
			files = append(files, f)
		}
	}
	return files
}
