package sink

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	mu      sync.Mutex
	writes  [][]byte
	release chan struct{}
}

func (b *blockingSink) WriteFrame(p []byte) error {
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, p)
	return nil
}

func (b *blockingSink) Close() error { return nil }

func (b *blockingSink) written() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.writes...)
}

type shortWriter struct{ n int }

func (s shortWriter) Write(p []byte) (int, error) { return s.n, nil }
func (s shortWriter) Close() error                { return nil }

func TestWriterSinkShortWrite(t *testing.T) {
	s := NewWriterSink(shortWriter{n: 3})
	err := s.WriteFrame([]byte{1, 2, 3, 4, 5})
	if err == nil {
		t.Fatalf("short write must be reported as an error")
	}
}

func TestAsyncPreservesOrder(t *testing.T) {
	inner := &blockingSink{}
	a := NewAsync(inner, 8)

	for i := 0; i < 5; i++ {
		if err := a.WriteFrame([]byte{byte(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	writes := inner.written()
	if len(writes) != 5 {
		t.Fatalf("wrote %d frames, want 5", len(writes))
	}
	for i, w := range writes {
		if !bytes.Equal(w, []byte{byte(i)}) {
			t.Fatalf("frame %d out of order: %v", i, w)
		}
	}
}

func TestAsyncDropsWholeFramesWhenFull(t *testing.T) {
	inner := &blockingSink{release: make(chan struct{})}
	a := NewAsync(inner, 1)

	// First frame occupies the worker, second fills the queue, the rest
	// must be dropped whole.
	_ = a.WriteFrame([]byte{0})
	time.Sleep(10 * time.Millisecond)
	_ = a.WriteFrame([]byte{1})
	var dropErr error
	for i := 2; i < 6; i++ {
		if err := a.WriteFrame([]byte{byte(i)}); err != nil {
			dropErr = err
		}
	}
	if dropErr == nil {
		t.Fatalf("expected dropped frames on a full queue")
	}
	if a.Dropped() == 0 {
		t.Fatalf("drop counter not incremented")
	}

	close(inner.release)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Whatever made it through must be intact frames in order.
	for i, w := range inner.written() {
		if len(w) != 1 {
			t.Fatalf("torn frame at %d: %v", i, w)
		}
	}
}

func TestAsyncWriteAfterClose(t *testing.T) {
	a := NewAsync(&blockingSink{}, 2)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.WriteFrame([]byte{1}); err == nil {
		t.Fatalf("write after close must fail")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}
}

type failSink struct{ calls int }

func (f *failSink) WriteFrame([]byte) error { f.calls++; return errors.New("nope") }
func (f *failSink) Close() error            { return nil }

func TestAsyncCountsWriteErrors(t *testing.T) {
	inner := &failSink{}
	a := NewAsync(inner, 4)
	_ = a.WriteFrame([]byte{1})
	_ = a.WriteFrame([]byte{2})
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.WriteErrors() != 2 {
		t.Fatalf("write errors = %d, want 2", a.WriteErrors())
	}
}
