package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/screener/types"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "simulation")
	w.now = func() time.Time { return time.UnixMilli(1700000000000) }

	events := []*types.StreamEvent{
		{Type: types.EventTypeStart, Raw: []byte(`{"type":"start","persona":"qualified","name":"Jan"}`)},
		{Type: types.EventTypeAgent, Message: "Hello"},
		{Type: types.EventTypeComplete, Raw: []byte(`{"type":"complete","outcome":"completed"}`)},
	}
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent failed: %v", err)
		}
	}
	if w.Count() != 3 {
		t.Errorf("Count = %d, want 3", w.Count())
	}

	entries, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	for i, entry := range entries {
		if entry.Seq != int64(i+1) {
			t.Errorf("entries[%d].Seq = %d, want %d", i, entry.Seq, i+1)
		}
		if entry.Feature != "simulation" {
			t.Errorf("entries[%d].Feature = %q", i, entry.Feature)
		}
		if entry.ReceivedAt != 1700000000000 {
			t.Errorf("entries[%d].ReceivedAt = %d", i, entry.ReceivedAt)
		}
		if entry.Version != types.RecordingVersion {
			t.Errorf("entries[%d].Version = %q", i, entry.Version)
		}
		if entry.Type != events[i].Type {
			t.Errorf("entries[%d].Type = %q, want %q", i, entry.Type, events[i].Type)
		}
	}

	ev, err := entries[1].Event()
	if err != nil {
		t.Fatalf("Event failed: %v", err)
	}
	if ev.Message != "Hello" {
		t.Errorf("Message = %q, want Hello", ev.Message)
	}

	var start types.SimulationStartPayload
	ev, err = entries[0].Event()
	if err != nil {
		t.Fatalf("Event failed: %v", err)
	}
	if err := ev.Decode(&start); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if start.DisplayName() != "Jan" {
		t.Errorf("DisplayName = %q, want Jan", start.DisplayName())
	}
}

func TestReader_Empty(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil)).Next()
	if !errors.Is(err, io.EOF) {
		t.Errorf("Next = %v, want io.EOF", err)
	}
}

func TestReader_PartialPrefix(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0, 0})).Next()
	if !IsFatalFrameError(err) {
		t.Fatalf("Next = %v, want fatal frame error", err)
	}
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %v, want FrameErrorPartial", frameErr)
	}
}

func TestReader_PartialPayload(t *testing.T) {
	buf := make([]byte, LengthPrefixSize+3)
	binary.BigEndian.PutUint32(buf, 10)

	_, err := NewReader(bytes.NewReader(buf)).Next()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorPartial {
		t.Fatalf("Next = %v, want FrameErrorPartial", err)
	}
}

func TestReader_TooLarge(t *testing.T) {
	buf := make([]byte, LengthPrefixSize)
	binary.BigEndian.PutUint32(buf, MaxPayloadSize+1)

	_, err := NewReader(bytes.NewReader(buf)).Next()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("Next = %v, want FrameErrorTooLarge", err)
	}
}

func TestReader_DecodeErrorIsNotFatal(t *testing.T) {
	payload := []byte{0xc1} // never-used msgpack byte
	buf := make([]byte, LengthPrefixSize, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)

	_, err := NewReader(bytes.NewReader(buf)).Next()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorDecode {
		t.Fatalf("Next = %v, want FrameErrorDecode", err)
	}
	if IsFatalFrameError(err) {
		t.Error("decode error reported as fatal")
	}
}
