package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nixtract/internal/derivation"
)

func testRecord(path string) *derivation.Record {
	name := path + "-1.0"
	return &derivation.Record{
		Name:          name,
		ParsedName:    derivation.ParseDrvName(name),
		AttributePath: path,
		BuildInputs:   []derivation.BuildInput{},
	}
}

func drainRecords(t *testing.T, sink *Sink, records ...*derivation.Record) error {
	t.Helper()
	ch := make(chan *derivation.Record)
	sink.Start(ch)
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return sink.Wait()
}

func TestSink_WritesOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, false)

	require.NoError(t, drainRecords(t, sink, testRecord("hello"), testRecord("world")))
	assert.Equal(t, int64(2), sink.Written())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var record derivation.Record
		require.NoError(t, json.Unmarshal([]byte(line), &record), "each line must be a complete JSON document")
	}
}

func TestSink_PrettyRecordsStayParseable(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, true)

	require.NoError(t, drainRecords(t, sink, testRecord("hello")))

	var record derivation.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record.AttributePath)
	assert.True(t, strings.Contains(buf.String(), "\n  "), "pretty output is indented")
}

func TestSink_WriteFailureIsReported(t *testing.T) {
	sink := NewSink(&failingWriter{}, false)
	err := drainRecords(t, sink, testRecord("hello"), testRecord("world"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
}

type failingWriter struct{}

func (*failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
