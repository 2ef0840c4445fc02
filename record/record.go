// Package record persists received stream events as length-prefixed msgpack
// frames so a session can be replayed offline.
//
// Frame layout: a 4-byte big-endian payload length followed by a msgpack
// encoded Entry. A file is a plain concatenation of frames.
package record

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/screener/sse"
	"github.com/justapithecus/screener/types"
)

const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Entry is one recorded stream event.
type Entry struct {
	Version    string          `msgpack:"version"`
	Seq        int64           `msgpack:"seq"`
	ReceivedAt int64           `msgpack:"received_at"` // unix millis
	Feature    string          `msgpack:"feature"`
	Type       types.EventType `msgpack:"type"`
	// Payload is the raw JSON of the event as it appeared on the wire.
	Payload []byte `msgpack:"payload"`
}

// Event re-decodes the recorded payload.
func (e *Entry) Event() (*types.StreamEvent, error) {
	return sse.DecodeEvent(e.Payload)
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the recording cannot be read past this error.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// Writer appends entries to a recording. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       *bufio.Writer
	feature string
	seq     int64
	now     func() time.Time
}

// NewWriter creates a writer tagging every entry with feature.
func NewWriter(w io.Writer, feature string) *Writer {
	return &Writer{
		w:       bufio.NewWriter(w),
		feature: feature,
		now:     time.Now,
	}
}

// WriteEvent appends one stream event and flushes it.
// Events without a raw payload are re-encoded from their lifted fields.
func (w *Writer) WriteEvent(ev *types.StreamEvent) error {
	payload := []byte(ev.Raw)
	if len(payload) == 0 {
		var err error
		payload, err = json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	entry := Entry{
		Version:    types.RecordingVersion,
		Seq:        w.seq,
		ReceivedAt: w.now().UnixMilli(),
		Feature:    w.feature,
		Type:       ev.Type,
		Payload:    payload,
	}

	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if len(data) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(data), MaxPayloadSize),
		}
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return w.w.Flush()
}

// Count returns the number of entries written.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Reader reads entries from a recording.
type Reader struct {
	reader io.Reader
}

// NewReader creates a new recording reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// Next reads a single entry.
//
// Errors:
//   - io.EOF: recording ended cleanly
//   - *FrameError with Kind=FrameErrorPartial: truncated frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
//   - *FrameError with Kind=FrameErrorDecode: undecodable entry
func (r *Reader) Next() (*Entry, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	var entry Entry
	if err := msgpack.Unmarshal(payload, &entry); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode entry",
			Err:  err,
		}
	}
	return &entry, nil
}

// ReadAll reads every entry until EOF.
func ReadAll(r io.Reader) ([]*Entry, error) {
	reader := NewReader(r)
	var entries []*Entry
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}
