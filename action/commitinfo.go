package action

import "encoding/json"

// CommitInfo is a diagnostic record of the write that produced a version; it
// never affects replayed table state (snapshot.Build skips it entirely).
type CommitInfo struct {
	Version             string            `json:"version"`
	Timestamp           int64             `json:"timestamp"`
	Operation           string            `json:"operation"`
	OperationParameters map[string]string `json:"operationParameters"`
	CommitVersion       int64             `json:"commitVersion"`
}

// NewCommitInfo returns a CommitInfo for the named operation with empty
// (non-nil) parameters, ready for WithParameter chaining.
func NewCommitInfo(operation string) *CommitInfo {
	return &CommitInfo{
		Operation:           operation,
		OperationParameters: map[string]string{},
	}
}

// WithParameter records an operationParameters entry and returns the
// receiver, mirroring the fluent CommitInfo.create(op).withParameter(...)
// builder of the reference implementation this log was distilled from.
func (c *CommitInfo) WithParameter(key, value string) *CommitInfo {
	c.OperationParameters[key] = value
	return c
}

func (c *CommitInfo) Type() string { return TypeCommitInfo }

func (c *CommitInfo) MarshalLine() ([]byte, error) {
	type wire struct {
		Type string `json:"type"`
		CommitInfo
	}
	return json.Marshal(wire{Type: TypeCommitInfo, CommitInfo: *c})
}
