// Package sink provides the output destinations fed by the reassembly
// engine: V4L2 loopback devices, plain files, and a ZeroMQ publisher.
package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Sink accepts one complete frame buffer per call.
type Sink interface {
	WriteFrame(p []byte) error
	Close() error
}

// WriterSink writes each frame as a single Write call. A short write is
// reported as an error so the frame counts as dropped; a truncated prefix
// followed by the next frame's bytes must never reach the device.
type WriterSink struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func NewWriterSink(w io.WriteCloser) *WriterSink {
	return &WriterSink{w: w}
}

// OpenFile returns a sink appending frames to path, creating it first.
func OpenFile(path string) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewWriterSink(f), nil
}

func (s *WriterSink) WriteFrame(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return nil
}

func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

// Discard drops every frame. Stands in for a missing output device.
type Discard struct{}

func (Discard) WriteFrame([]byte) error { return nil }
func (Discard) Close() error            { return nil }

// Async decouples ingest from sink I/O with a bounded queue. When the
// queue is full the whole frame is dropped and counted; ordering of the
// frames that do get written is preserved.
type Async struct {
	inner   Sink
	queue   chan []byte
	done    chan struct{}
	dropped atomic.Uint64
	errs    atomic.Uint64
	closed  atomic.Bool
}

func NewAsync(inner Sink, depth int) *Async {
	if depth < 1 {
		depth = 4
	}
	a := &Async{
		inner: inner,
		queue: make(chan []byte, depth),
		done:  make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *Async) drain() {
	defer close(a.done)
	for p := range a.queue {
		if err := a.inner.WriteFrame(p); err != nil {
			a.errs.Add(1)
		}
	}
}

// WriteFrame enqueues p, which the caller must not reuse afterwards.
func (a *Async) WriteFrame(p []byte) error {
	if a.closed.Load() {
		return fmt.Errorf("sink closed")
	}
	select {
	case a.queue <- p:
		return nil
	default:
		a.dropped.Add(1)
		return fmt.Errorf("sink queue full, frame dropped")
	}
}

// Close lets in-flight writes finish before closing the inner sink;
// aborting a write mid-frame would tear it.
func (a *Async) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	close(a.queue)
	<-a.done
	return a.inner.Close()
}

// Dropped returns how many frames were discarded on a full queue.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// WriteErrors returns how many inner writes failed.
func (a *Async) WriteErrors() uint64 { return a.errs.Load() }
