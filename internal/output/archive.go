package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"flirone-go/internal/types"
)

// ArchiveMagic opens every frame archive file.
const ArchiveMagic = "FLIRARC1"

// ArchiveHeader is the first CBOR record of an archive.
type ArchiveHeader struct {
	RunID   string  `cbor:"run_id"`
	Started float64 `cbor:"started"`
	Width   int     `cbor:"width"`
	Height  int     `cbor:"height"`
}

// FrameArchive persists reassembled frames as length-prefixed CBOR
// records for offline analysis. The first record is the ArchiveHeader;
// every following record is a types.Frame.
type FrameArchive struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	runID string
}

func NewFrameArchive(dir string, width, height int) (*FrameArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("%s_frames.cbor", timestamp))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	a := &FrameArchive{
		f:     f,
		w:     bufio.NewWriterSize(f, 1024*1024),
		runID: uuid.NewString(),
	}
	if _, err := a.w.WriteString(ArchiveMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	header := ArchiveHeader{
		RunID:   a.runID,
		Started: float64(time.Now().UnixNano()) / 1e9,
		Width:   width,
		Height:  height,
	}
	if err := a.writeRecord(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := a.w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return a, nil
}

// RunID identifies this recording session.
func (a *FrameArchive) RunID() string { return a.runID }

func (a *FrameArchive) Record(f types.Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return errors.New("frame archive is closed")
	}
	return a.writeRecord(f)
}

func (a *FrameArchive) writeRecord(v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(payload)))
	if _, err := a.w.Write(size[:]); err != nil {
		return err
	}
	_, err = a.w.Write(payload)
	return err
}

func (a *FrameArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return nil
	}
	if err := a.w.Flush(); err != nil {
		_ = a.f.Close()
		a.w = nil
		return err
	}
	err := a.f.Close()
	a.w = nil
	return err
}

// ReadArchive iterates an archive: fn is called once with the header and
// then once per frame record.
func ReadArchive(r io.Reader, headerFn func(ArchiveHeader) error, frameFn func(types.Frame) error) error {
	magic := make([]byte, len(ArchiveMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != ArchiveMagic {
		return fmt.Errorf("unexpected archive magic %q", string(magic))
	}
	first := true
	for {
		var size [4]byte
		if _, err := io.ReadFull(r, size[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
		payload := make([]byte, binary.LittleEndian.Uint32(size[:]))
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}
		if first {
			first = false
			var header ArchiveHeader
			if err := cbor.Unmarshal(payload, &header); err != nil {
				return fmt.Errorf("decode archive header: %w", err)
			}
			if headerFn != nil {
				if err := headerFn(header); err != nil {
					return err
				}
			}
			continue
		}
		var frame types.Frame
		if err := cbor.Unmarshal(payload, &frame); err != nil {
			return fmt.Errorf("decode frame record: %w", err)
		}
		if frameFn != nil {
			if err := frameFn(frame); err != nil {
				return err
			}
		}
	}
}
