// Package action defines the tagged variants that make up one line of a
// Delta-style commit file: Protocol, Metadata, AddFile, RemoveFile and
// CommitInfo. Every variant serializes to a self-describing JSON object
// carrying its discriminant in a "type" field, mirroring the
// @JsonTypeInfo/@JsonSubTypes union the reference implementation used.
package action

import (
	"encoding/json"
	"fmt"

	"delta-go/deltaerr"
)

// Discriminants written as the "type" field of a serialized action.
const (
	TypeProtocol   = "protocol"
	TypeMetadata   = "metadata"
	TypeAddFile    = "add"
	TypeRemoveFile = "remove"
	TypeCommitInfo = "commitInfo"
)

// Action is implemented by every log entry variant. The only polymorphic
// operations are serialization and replay pattern-matching; there is no
// inheritance-based dispatch.
type Action interface {
	// Type returns the discriminant written to the "type" field.
	Type() string

	// MarshalLine renders the action as one self-contained JSON line,
	// including its "type" discriminant.
	MarshalLine() ([]byte, error)
}

type typeProbe struct {
	Type string `json:"type"`
}

// Parse decodes one commit-file line into its concrete Action. Blank-line
// handling is the caller's responsibility (logstore skips blank lines before
// calling Parse). An unrecognized "type" discriminant is CorruptLog, as is
// any line that isn't a JSON object.
func Parse(line []byte) (Action, error) {
	var probe typeProbe
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, deltaerr.Wrap(deltaerr.CorruptLog, "action.Parse", err)
	}

	switch probe.Type {
	case TypeProtocol:
		a := NewProtocol()
		if err := json.Unmarshal(line, a); err != nil {
			return nil, deltaerr.Wrap(deltaerr.CorruptLog, "action.Parse", err)
		}
		return a, nil
	case TypeMetadata:
		a := NewMetadata()
		if err := json.Unmarshal(line, a); err != nil {
			return nil, deltaerr.Wrap(deltaerr.CorruptLog, "action.Parse", err)
		}
		return a, nil
	case TypeAddFile:
		a := NewAddFile()
		if err := json.Unmarshal(line, a); err != nil {
			return nil, deltaerr.Wrap(deltaerr.CorruptLog, "action.Parse", err)
		}
		return a, nil
	case TypeRemoveFile:
		a := NewRemoveFile()
		if err := json.Unmarshal(line, a); err != nil {
			return nil, deltaerr.Wrap(deltaerr.CorruptLog, "action.Parse", err)
		}
		return a, nil
	case TypeCommitInfo:
		a := NewCommitInfo("")
		if err := json.Unmarshal(line, a); err != nil {
			return nil, deltaerr.Wrap(deltaerr.CorruptLog, "action.Parse", err)
		}
		return a, nil
	default:
		return nil, deltaerr.Wrap(deltaerr.CorruptLog, "action.Parse", fmt.Errorf("unknown action type %q", probe.Type))
	}
}
