package cliapp

import (
	"errors"
	"testing"
)

type breakingWriter struct {
	failAfter int
	calls     int
}

func (w *breakingWriter) Write(b []byte) (int, error) {
	w.calls++
	if w.calls > w.failAfter {
		return 0, errors.New("broken pipe")
	}
	return len(b), nil
}

func TestPipeWriterSwallowsWritesAfterFirstError(t *testing.T) {
	underlying := &breakingWriter{failAfter: 1}
	pw := newPipeWriter(underlying)

	if _, err := pw.Write([]byte("first\n")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := pw.Write([]byte("second\n")); err != nil {
		t.Fatalf("pipeWriter must not surface the underlying error: %v", err)
	}
	if _, err := pw.Write([]byte("third\n")); err != nil {
		t.Fatalf("pipeWriter must keep swallowing after broken: %v", err)
	}
	if underlying.calls != 2 {
		t.Fatalf("expected underlying writer to stop being called after it broke, got %d calls", underlying.calls)
	}
}
