// Package sse implements the chat stream framing: every event is
// `data: {"response": "<chunk>"}` followed by a blank line, chunks are
// incremental, and the stream ends with `data: [DONE]`.
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	ContentType = "text/event-stream"
	DoneMarker  = "[DONE]"
	dataPrefix  = "data: "
)

// Payload is the JSON body of one chunk event.
type Payload struct {
	Response string `json:"response"`
}

// Writer frames chunks onto w. Flush is called after every event when w supports it.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) WriteChunk(chunk string) error {
	data, err := json.Marshal(Payload{Response: chunk})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "%s%s\n\n", dataPrefix, data); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *Writer) WriteDone() error {
	if _, err := fmt.Fprintf(s.w, "%s%s\n\n", dataPrefix, DoneMarker); err != nil {
		return err
	}
	return s.w.Flush()
}

// Event is one decoded data line.
type Event struct {
	Response string
	Done     bool
}

// ErrMalformedEvent is returned for data lines that are neither a payload nor the done marker.
var ErrMalformedEvent = errors.New("sse: malformed event")

// Reader decodes events written by Writer. Non-data lines are ignored.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: sc}
}

// Next returns the next event, or io.EOF when the underlying stream ends.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := strings.TrimPrefix(line, dataPrefix)
		if data == DoneMarker {
			return Event{Done: true}, nil
		}
		var p Payload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return Event{Response: p.Response}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
