// Package sse decodes the `data:` event streams returned by the backend's
// streaming endpoints.
//
// Wire format: newline-delimited lines; a record is a line starting with
// "data:" followed by a JSON object carrying a "type" field, or the sentinel
// "data: [DONE]". Every other line (blank keep-alives, "event:", "id:",
// ":" comments) is ignored. Chunk boundaries of the underlying transport carry
// no meaning: a partial trailing line is buffered until the rest arrives.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/justapithecus/screener/types"
)

const (
	// DataPrefix marks a record line.
	DataPrefix = "data:"
	// DoneSentinel is the payload of the end-of-stream marker line.
	DoneSentinel = "[DONE]"
	// MaxLineSize is the largest line the decoder buffers (4 MiB).
	MaxLineSize = 4 * 1024 * 1024
	// ReadChunkSize is the read size used by Decoder.
	ReadChunkSize = 32 * 1024
)

// DecodeErrorKind classifies decoding errors.
type DecodeErrorKind int

const (
	// DecodeErrorMalformed indicates a record whose payload is not valid JSON.
	DecodeErrorMalformed DecodeErrorKind = iota
	// DecodeErrorMissingType indicates a JSON payload without a "type" field.
	DecodeErrorMissingType
	// DecodeErrorLineTooLong indicates a line exceeding MaxLineSize.
	DecodeErrorLineTooLong
)

// DecodeError represents a record decoding error.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	// Line is the offending line, truncated for logging.
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot continue after this error.
// Malformed or untyped records are skippable; an over-long line is not,
// since there is no way to find the next record boundary safely.
func (e *DecodeError) IsFatal() bool {
	return e.Kind == DecodeErrorLineTooLong
}

// IsFatalDecodeError returns true if err is a fatal decode error.
func IsFatalDecodeError(err error) bool {
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr.IsFatal()
	}
	return false
}

// IsSkippable returns true if err is a decode error that only affects one record.
func IsSkippable(err error) bool {
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return !decErr.IsFatal()
	}
	return false
}

// Record is one recognized record line.
type Record struct {
	// Done is set for the [DONE] sentinel; Event is nil then.
	Done  bool
	Event *types.StreamEvent
}

// ParseLine classifies a single line (without its trailing newline).
// ok is false for lines that are not records.
func ParseLine(line string) (rec Record, ok bool, err error) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, DataPrefix) {
		return Record{}, false, nil
	}
	payload := strings.TrimPrefix(line[len(DataPrefix):], " ")
	if strings.TrimSpace(payload) == DoneSentinel {
		return Record{Done: true}, true, nil
	}

	ev, err := DecodeEvent([]byte(payload))
	if err != nil {
		return Record{}, true, err
	}
	return Record{Event: ev}, true, nil
}

// eventProbe lifts the common fields out of a payload.
type eventProbe struct {
	Type    types.EventType `json:"type"`
	Message string          `json:"message"`
	Content string          `json:"content"`
}

// DecodeEvent decodes a JSON payload into a StreamEvent.
// The payload bytes are copied; the caller may reuse its buffer.
func DecodeEvent(payload []byte) (*types.StreamEvent, error) {
	var probe eventProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, &DecodeError{
			Kind: DecodeErrorMalformed,
			Msg:  "invalid event payload",
			Line: truncate(string(payload)),
			Err:  err,
		}
	}
	if probe.Type == "" {
		return nil, &DecodeError{
			Kind: DecodeErrorMissingType,
			Msg:  "event payload has no type",
			Line: truncate(string(payload)),
		}
	}

	raw := make([]byte, len(payload))
	copy(raw, payload)

	return &types.StreamEvent{
		Type:    probe.Type,
		Message: probe.Message,
		Content: probe.Content,
		Raw:     raw,
	}, nil
}

// LineBuffer splits transport chunks into complete lines.
// The final fragment of each chunk is retained until its newline arrives.
type LineBuffer struct {
	buf     []byte
	maxLine int
}

// NewLineBuffer creates a line buffer bounded by MaxLineSize.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{maxLine: MaxLineSize}
}

// Feed appends a chunk and returns every line it completed, in order.
// Returns a fatal *DecodeError if the pending fragment grows past the bound.
func (b *LineBuffer) Feed(chunk []byte) ([]string, error) {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		if i > b.maxLine {
			return lines, lineTooLong(i)
		}
		lines = append(lines, string(b.buf[:i]))
		b.buf = b.buf[i+1:]
	}

	if len(b.buf) > b.maxLine {
		return lines, lineTooLong(len(b.buf))
	}

	// Compact so the backing array does not grow without bound across chunks.
	if len(b.buf) == 0 {
		b.buf = b.buf[:0:0]
	}
	return lines, nil
}

// Flush returns the pending fragment, if any, and resets the buffer.
// Called at end of stream for a final line that lacks a newline.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.buf) == 0 {
		return "", false
	}
	line := string(b.buf)
	b.buf = nil
	return line, true
}

// Pending returns the number of buffered bytes not yet forming a line.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

func lineTooLong(n int) *DecodeError {
	return &DecodeError{
		Kind: DecodeErrorLineTooLong,
		Msg:  fmt.Sprintf("line of %d bytes exceeds maximum %d", n, MaxLineSize),
	}
}

// Decoder reads records from an event stream.
type Decoder struct {
	reader  io.Reader
	lines   *LineBuffer
	chunk   []byte
	pending []string
	eof     bool
	readErr error
}

// NewDecoder creates a new decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: r,
		lines:  NewLineBuffer(),
		chunk:  make([]byte, ReadChunkSize),
	}
}

// Next returns the next record.
//
// Errors:
//   - io.EOF: stream ended; no more records
//   - *DecodeError (skippable): one malformed record; call Next again to continue
//   - *DecodeError (fatal): line too long; the stream is unusable
//   - any other error: the transport read failed
func (d *Decoder) Next() (Record, error) {
	for {
		if len(d.pending) > 0 {
			line := d.pending[0]
			d.pending = d.pending[1:]

			rec, ok, err := ParseLine(line)
			if err != nil {
				return Record{}, err
			}
			if !ok {
				continue
			}
			return rec, nil
		}

		if d.readErr != nil {
			return Record{}, d.readErr
		}
		if d.eof {
			return Record{}, io.EOF
		}

		if err := d.fill(); err != nil {
			return Record{}, err
		}
	}
}

// fill reads one chunk from the underlying reader into pending lines.
func (d *Decoder) fill() error {
	n, err := d.reader.Read(d.chunk)
	if n > 0 {
		lines, ferr := d.lines.Feed(d.chunk[:n])
		d.pending = append(d.pending, lines...)
		if ferr != nil {
			return ferr
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		d.eof = true
		if tail, ok := d.lines.Flush(); ok {
			d.pending = append(d.pending, tail)
		}
		return nil
	default:
		// Lines completed before the failure are still delivered first.
		d.readErr = err
		return nil
	}
}

// truncate shortens s for inclusion in log fields.
func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
