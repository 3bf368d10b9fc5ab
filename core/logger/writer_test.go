package logger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{a, nil, b}, 16)
	for _, line := range []string{"one\n", "two\n"} {
		if err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, buf := range []*bytes.Buffer{a, b} {
		if got := buf.String(); got != "one\ntwo\n" {
			t.Fatalf("sink got %q", got)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}

func TestAsyncWriterReportsFirstError(t *testing.T) {
	w := newAsyncWriter([]io.Writer{failingWriter{}}, 1)
	_ = w.Write([]byte(strings.Repeat("x", 8)))
	err := w.Close()
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected disk full, got %v", err)
	}
	if err := w.Write([]byte("more")); err == nil {
		t.Fatal("expected write after failure to error")
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, s.Allow())
	}
	want := []bool{true, false, false, true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Allow #%d = %v, want %v", i, got[i], want[i])
		}
	}

	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler should allow everything")
	}
}
