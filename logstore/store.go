// Package logstore is the filesystem representation of a Delta-style
// transaction log: it owns the _delta_log directory layout, lists and reads
// versioned commit files, and writes new ones atomically via a
// temp-file-then-rename so a reader never observes a partial commit.
package logstore

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"delta-go/action"
	"delta-go/deltaerr"
)

const (
	// LogDirName is the name of the log directory under the table root.
	LogDirName = "_delta_log"
	// DataDirName is the name of the data directory under the table root.
	DataDirName = "data"

	versionWidth   = 20
	commitSuffix   = ".json"
	tempFilePrefix = ".delta-tmp-"
)

var commitFilePattern = regexp.MustCompile(`^\d{20}\.json$`)

// Store translates table versions to filesystem paths and performs the raw
// reads/writes of commit files. It holds no lock itself: callers (the
// deltalog package) serialize writes under their own mutex, per spec.
type Store struct {
	tableRoot string
	logDir    string
	dataDir   string
}

// Open returns a Store rooted at tableRoot. It does not touch the
// filesystem; the log directory is created lazily by Write.
func Open(tableRoot string) *Store {
	return &Store{
		tableRoot: tableRoot,
		logDir:    filepath.Join(tableRoot, LogDirName),
		dataDir:   filepath.Join(tableRoot, DataDirName),
	}
}

// LogDir returns the table's _delta_log directory.
func (s *Store) LogDir() string { return s.logDir }

// DataDir returns the table's data directory.
func (s *Store) DataDir() string { return s.dataDir }

// TableRoot returns the table's root directory.
func (s *Store) TableRoot() string { return s.tableRoot }

// commitPath returns the path of the commit file for version v.
func (s *Store) commitPath(v int64) string {
	return filepath.Join(s.logDir, fmt.Sprintf("%0*d%s", versionWidth, v, commitSuffix))
}

// ListVersions scans the log directory for commit files named
// <20-digit version>.json, returning their version numbers in ascending
// order. Non-matching entries are ignored silently. A missing log
// directory yields an empty list, not an error.
func (s *Store) ListVersions() ([]int64, error) {
	entries, err := os.ReadDir(s.logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, deltaerr.Wrap(deltaerr.IoError, "logstore.ListVersions", err)
	}

	var versions []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !commitFilePattern.MatchString(name) {
			continue
		}
		versionStr := name[:len(name)-len(commitSuffix)]
		v, err := strconv.ParseInt(versionStr, 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// LatestVersion returns the highest committed version, or -1 if the log is
// empty (no table exists yet).
func (s *Store) LatestVersion() (int64, error) {
	versions, err := s.ListVersions()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return -1, nil
	}
	return versions[len(versions)-1], nil
}

// ReadVersion reads and parses every action in the commit file for version
// v, in file order. A missing commit file returns an empty, non-error
// result so tolerant scans (e.g. reading a version range that might not
// exist yet) don't need special-casing.
func (s *Store) ReadVersion(v int64) ([]action.Action, error) {
	f, err := os.Open(s.commitPath(v))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, deltaerr.Wrap(deltaerr.IoError, "logstore.ReadVersion", err)
	}
	defer f.Close()

	var actions []action.Action
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		a, err := action.Parse(line)
		if err != nil {
			return nil, deltaerr.Wrap(deltaerr.CorruptLog, "logstore.ReadVersion", err)
		}
		actions = append(actions, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, deltaerr.Wrap(deltaerr.IoError, "logstore.ReadVersion", err)
	}

	return actions, nil
}

// Write serializes actions, one per line, into a new commit file for
// version v. It creates the log directory if needed and writes via a
// temp-file-then-rename so partial writes are never visible. Callers are
// responsible for ensuring v == LatestVersion()+1 under their own lock;
// Write itself does not check this, since enforcing it requires the
// exclusivity that only the caller's lock (or, across processes, a
// create-new-exclusive filesystem primitive, which this package does not
// use) can provide.
func (s *Store) Write(v int64, actions []action.Action) error {
	if err := os.MkdirAll(s.logDir, 0o755); err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
	}

	tmp, err := os.CreateTemp(s.logDir, tempFilePrefix)
	if err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op once renamed away
	}()

	w := bufio.NewWriter(tmp)
	for _, a := range actions {
		line, err := a.MarshalLine()
		if err != nil {
			_ = tmp.Close()
			return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
		}
		if _, err := w.Write(line); err != nil {
			_ = tmp.Close()
			return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			_ = tmp.Close()
			return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
	}
	if err := tmp.Close(); err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
	}

	if err := os.Rename(tmpName, s.commitPath(v)); err != nil {
		return deltaerr.Wrap(deltaerr.IoError, "logstore.Write", err)
	}
	return nil
}

// TableExists reports whether the table has at least one commit file.
func (s *Store) TableExists() bool {
	versions, err := s.ListVersions()
	return err == nil && len(versions) > 0
}

