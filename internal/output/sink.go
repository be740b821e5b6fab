// Package output serialises completed derivation records as JSONL. A single
// consumer goroutine owns the writer; crawl workers only ever touch the
// records channel.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"nixtract/internal/derivation"
)

// Sink drains a channel of records and writes one JSON document per record,
// LF-terminated. A write failure is remembered and surfaced by Wait; the sink
// keeps draining after a failure so workers never block on a dead writer.
type Sink struct {
	w      *bufio.Writer
	pretty bool

	done    chan struct{}
	err     error
	written atomic.Int64
}

// NewSink wraps a writer. With pretty set, each record is individually
// indented instead of packed on one line.
func NewSink(w io.Writer, pretty bool) *Sink {
	return &Sink{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		done:   make(chan struct{}),
	}
}

// Start begins consuming records. It must be called exactly once; the channel
// must be closed by the producer to end the stream.
func (s *Sink) Start(records <-chan *derivation.Record) {
	go func() {
		defer close(s.done)
		for record := range records {
			if s.err != nil {
				continue
			}
			if err := s.write(record); err != nil {
				s.err = fmt.Errorf("failed to write record: %w", err)
			}
		}
		if s.err == nil {
			s.err = s.w.Flush()
		}
	}()
}

// Wait blocks until the record stream has ended and the writer is flushed,
// returning the first write error if any.
func (s *Sink) Wait() error {
	<-s.done
	return s.err
}

// Written reports how many records have been serialised so far.
func (s *Sink) Written() int64 {
	return s.written.Load()
}

func (s *Sink) write(record *derivation.Record) error {
	var (
		data []byte
		err  error
	)
	if s.pretty {
		data, err = json.MarshalIndent(record, "", "  ")
	} else {
		data, err = json.Marshal(record)
	}
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.written.Add(1)
	return nil
}
