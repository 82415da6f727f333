// Package output persists what the bridge saw: raw USB chunks for
// offline replay and reassembled frames as a CBOR archive.
package output

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChunkLogMagic opens every chunk log file.
const ChunkLogMagic = "FLIRRAW1"

// ChunkLogWriter records raw USB chunks as they arrive. Each record is a
// 12-byte header (unix nanos u64 LE, length u32 LE) followed by the chunk
// bytes, so a session can be replayed through the engine bit-exactly.
type ChunkLogWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func NewChunkLogWriter(dir, prefix string) (*ChunkLogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.bin", timestamp, prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(ChunkLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &ChunkLogWriter{f: f, w: w}, nil
}

func (c *ChunkLogWriter) Record(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return errors.New("chunk log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(chunk)))
	if _, err := c.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := c.w.Write(chunk); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *ChunkLogWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return nil
	}
	if err := c.w.Flush(); err != nil {
		_ = c.f.Close()
		c.w = nil
		return err
	}
	err := c.f.Close()
	c.w = nil
	return err
}

// ChunkRecord is one replayed chunk with its capture timestamp.
type ChunkRecord struct {
	Timestamp time.Time
	Data      []byte
}

// ReadChunkLog iterates the records of a chunk log file.
func ReadChunkLog(r io.Reader, fn func(ChunkRecord) error) error {
	header := make([]byte, len(ChunkLogMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(header) != ChunkLogMagic {
		return fmt.Errorf("unexpected chunk log magic %q", string(header))
	}
	for {
		var meta [12]byte
		if _, err := io.ReadFull(r, meta[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
		ts := int64(binary.LittleEndian.Uint64(meta[:8]))
		size := binary.LittleEndian.Uint32(meta[8:12])
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
		if err := fn(ChunkRecord{Timestamp: time.Unix(0, ts), Data: data}); err != nil {
			return err
		}
	}
}

// Replay streams a recorded session as a chunk channel, the same shape
// the USB transport produces. With pace set, the recorded inter-chunk
// delays are honored; otherwise chunks flow as fast as the engine takes
// them. The channel closes at end of file, which the drive loop treats
// like a device disconnect.
func Replay(ctx context.Context, path string, pace bool) (<-chan []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer f.Close()
		var prev time.Time
		_ = ReadChunkLog(bufio.NewReaderSize(f, 1024*1024), func(rec ChunkRecord) error {
			if pace && !prev.IsZero() {
				if delay := rec.Timestamp.Sub(prev); delay > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
					}
				}
			}
			prev = rec.Timestamp
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- rec.Data:
				return nil
			}
		})
	}()
	return out, nil
}
