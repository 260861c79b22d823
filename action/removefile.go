package action

import "encoding/json"

// RemoveFile records a data file leaving the live set as of
// DeletionTimestamp. Replaying a RemoveFile for a path with no matching
// live AddFile is a no-op.
type RemoveFile struct {
	Path              string            `json:"path"`
	DeletionTimestamp int64             `json:"deletionTimestamp"`
	DataChange        bool              `json:"dataChange"`
	PartitionValues   map[string]string `json:"partitionValues"`
	Size              int64             `json:"size"`
}

// NewRemoveFile returns the zero-value RemoveFile.
func NewRemoveFile() *RemoveFile {
	return &RemoveFile{
		PartitionValues: map[string]string{},
	}
}

func (r *RemoveFile) Type() string { return TypeRemoveFile }

func (r *RemoveFile) MarshalLine() ([]byte, error) {
	type wire struct {
		Type string `json:"type"`
		RemoveFile
	}
	return json.Marshal(wire{Type: TypeRemoveFile, RemoveFile: *r})
}
