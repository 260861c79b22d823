package action

import "encoding/json"

// Metadata carries the table's identity and configuration. The last
// Metadata action in replay order wins.
type Metadata struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Format           string            `json:"format"`
	Configuration    map[string]string `json:"configuration"`
	PartitionColumns map[string]string `json:"partitionColumns"`
	CreatedTime      int64             `json:"createdTime"`
}

// NewMetadata returns the zero-value Metadata: empty strings, empty
// (non-nil) maps, zero timestamp.
func NewMetadata() *Metadata {
	return &Metadata{
		Configuration:    map[string]string{},
		PartitionColumns: map[string]string{},
	}
}

func (m *Metadata) Type() string { return TypeMetadata }

func (m *Metadata) MarshalLine() ([]byte, error) {
	type wire struct {
		Type string `json:"type"`
		Metadata
	}
	return json.Marshal(wire{Type: TypeMetadata, Metadata: *m})
}
