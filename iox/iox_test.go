package iox

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type spyCloser struct{ closed bool }

func (s *spyCloser) Close() error { s.closed = true; return errors.New("ignored") }

type spyReadCloser struct {
	io.Reader
	closed bool
}

func (s *spyReadCloser) Close() error { s.closed = true; return nil }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestDrainClose(t *testing.T) {
	r := strings.NewReader("data: {\"type\":\"status\"}\n")
	s := &spyReadCloser{Reader: r}
	DrainClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
	if r.Len() != 0 {
		t.Errorf("body not drained: %d bytes left", r.Len())
	}
}

func TestDrainClose_BoundsLargeBodies(t *testing.T) {
	r := strings.NewReader(strings.Repeat("x", maxDrain+10))
	s := &spyReadCloser{Reader: r}
	DrainClose(s)
	if r.Len() != 10 {
		t.Errorf("expected 10 bytes left undrained, got %d", r.Len())
	}
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestDiscardErr(t *testing.T) {
	called := false
	DiscardErr(func() error {
		called = true
		return errors.New("ignored")
	})
	if !called {
		t.Fatal("fn was not called")
	}
}
