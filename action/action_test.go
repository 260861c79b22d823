package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, a Action) Action {
	t.Helper()
	line, err := a.MarshalLine()
	require.NoError(t, err)

	parsed, err := Parse(line)
	require.NoError(t, err)
	return parsed
}

func TestRoundTrip_Protocol(t *testing.T) {
	p := &Protocol{
		MinReaderVersion: 1,
		MinWriterVersion: 2,
		ReaderFeatures:   []string{"columnMapping"},
		WriterFeatures:   []string{"deletionVectors", "appendOnly"},
	}
	got := roundTrip(t, p)
	assert.Equal(t, p, got)
	assert.Equal(t, TypeProtocol, got.Type())
}

func TestRoundTrip_Metadata(t *testing.T) {
	m := &Metadata{
		ID:               "table-1",
		Name:             "Test Table",
		Description:      "a table",
		Format:           "csv",
		Configuration:    map[string]string{"key": "value"},
		PartitionColumns: map[string]string{"year": "2024"},
		CreatedTime:      1700000000000,
	}
	got := roundTrip(t, m)
	assert.Equal(t, m, got)
}

func TestRoundTrip_AddFile(t *testing.T) {
	a := &AddFile{
		Path:             "data/file1.csv",
		PartitionValues:  map[string]string{"p": "1"},
		Size:             100,
		ModificationTime: 1700000000000,
		DataChange:       true,
		Stats:            map[string]string{"numRecords": "10"},
		Tags:             "tag-a",
	}
	got := roundTrip(t, a)
	assert.Equal(t, a, got)
}

func TestRoundTrip_RemoveFile(t *testing.T) {
	r := &RemoveFile{
		Path:              "data/file1.csv",
		DeletionTimestamp: 1700000001000,
		DataChange:        true,
		PartitionValues:   map[string]string{"p": "1"},
		Size:              100,
	}
	got := roundTrip(t, r)
	assert.Equal(t, r, got)
}

func TestRoundTrip_CommitInfo(t *testing.T) {
	c := NewCommitInfo("WRITE").WithParameter("mode", "append")
	c.Version = "v1"
	c.Timestamp = 1700000002000
	c.CommitVersion = 3
	got := roundTrip(t, c)
	assert.Equal(t, c, got)
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"bogus"}`))
	require.Error(t, err)
}

func TestParse_BlankAddFileDefaultsDataChangeTrue(t *testing.T) {
	parsed, err := Parse([]byte(`{"type":"add","path":"x"}`))
	require.NoError(t, err)
	add, ok := parsed.(*AddFile)
	require.True(t, ok)
	assert.True(t, add.DataChange)
	assert.Equal(t, "x", add.Path)
	assert.Empty(t, add.PartitionValues)
	assert.NotNil(t, add.PartitionValues)
}

func TestNewZeroValues(t *testing.T) {
	assert.Equal(t, &Protocol{ReaderFeatures: []string{}, WriterFeatures: []string{}}, NewProtocol())
	assert.Equal(t, &Metadata{Configuration: map[string]string{}, PartitionColumns: map[string]string{}}, NewMetadata())
	assert.True(t, NewAddFile().DataChange)
	assert.False(t, NewRemoveFile().DataChange)
}
