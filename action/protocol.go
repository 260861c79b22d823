package action

import "encoding/json"

// Protocol declares the minimum reader/writer versions and feature sets
// required to interact with the table. The last Protocol action in replay
// order wins.
type Protocol struct {
	MinReaderVersion int32    `json:"minReaderVersion"`
	MinWriterVersion int32    `json:"minWriterVersion"`
	ReaderFeatures   []string `json:"readerFeatures"`
	WriterFeatures   []string `json:"writerFeatures"`
}

// NewProtocol returns the zero-value Protocol: version fields at 0, feature
// sets as empty (non-nil) ordered slices.
func NewProtocol() *Protocol {
	return &Protocol{
		ReaderFeatures: []string{},
		WriterFeatures: []string{},
	}
}

func (p *Protocol) Type() string { return TypeProtocol }

func (p *Protocol) MarshalLine() ([]byte, error) {
	type wire struct {
		Type string `json:"type"`
		Protocol
	}
	return json.Marshal(wire{Type: TypeProtocol, Protocol: *p})
}
