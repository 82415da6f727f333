package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"flirone-go/internal/types"
)

type captureSink struct {
	writes [][]byte
	err    error
}

func (c *captureSink) WriteFrame(p []byte) error {
	if c.err != nil {
		return c.err
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	c.writes = append(c.writes, buf)
	return nil
}

// buildPacket assembles one wire-format frame: header, thermal payload
// filled with a recognizable pattern, then the given jpeg and status
// regions.
func buildPacket(thermalSize int, jpeg, status []byte) []byte {
	frameSize := thermalSize + len(jpeg) + len(status)
	packet := make([]byte, HeaderSize+frameSize)
	copy(packet, Magic)
	binary.LittleEndian.PutUint32(packet[8:], uint32(frameSize))
	binary.LittleEndian.PutUint32(packet[12:], uint32(thermalSize))
	binary.LittleEndian.PutUint32(packet[16:], uint32(len(jpeg)))
	binary.LittleEndian.PutUint32(packet[20:], uint32(len(status)))
	for i := 0; i < thermalSize; i++ {
		packet[HeaderSize+i] = byte(i)
	}
	copy(packet[HeaderSize+thermalSize:], jpeg)
	copy(packet[HeaderSize+thermalSize+len(jpeg):], status)
	return packet
}

func testJPEG(size int) []byte {
	jpeg := make([]byte, size)
	jpeg[0] = 0xFF
	jpeg[1] = 0xD8
	for i := 2; i < size; i++ {
		jpeg[i] = byte(i * 7)
	}
	return jpeg
}

func TestSingleChunkFrame(t *testing.T) {
	thermalSink := &captureSink{}
	visibleSink := &captureSink{}
	var frames []types.Frame
	e := NewEngine(Config{Padding: 128}, thermalSink, visibleSink, func(f types.Frame) {
		frames = append(frames, f)
	})

	e.Ingest(buildPacket(9600, testJPEG(2000), nil))

	if len(thermalSink.writes) != 1 {
		t.Fatalf("expected 1 thermal write, got %d", len(thermalSink.writes))
	}
	if len(thermalSink.writes[0]) != ThermalBytes {
		t.Fatalf("thermal write is %d bytes, want %d", len(thermalSink.writes[0]), ThermalBytes)
	}
	if len(visibleSink.writes) != 1 {
		t.Fatalf("expected 1 visible write, got %d", len(visibleSink.writes))
	}
	if len(visibleSink.writes[0]) != 2000+128 {
		t.Fatalf("visible write is %d bytes, want %d", len(visibleSink.writes[0]), 2000+128)
	}
	if len(frames) != 1 || !frames[0].SOIValid {
		t.Fatalf("unexpected observer frames: %+v", frames)
	}
	if e.Frames() != 1 {
		t.Fatalf("frame counter = %d", e.Frames())
	}
}

// The same frame split at arbitrary byte boundaries reassembles to
// identical output.
func TestChunkingInvariance(t *testing.T) {
	packet := buildPacket(9600, testJPEG(2000), []byte{1, 2, 3, 4})

	whole := &captureSink{}
	wholeVis := &captureSink{}
	e := NewEngine(Config{Padding: 128}, whole, wholeVis, nil)
	e.Ingest(packet)

	for _, cuts := range [][]int{
		{17, 9000},
		{1, 2},
		{27, 28},
		{4, 9627},
		{5000, 5001},
	} {
		split := &captureSink{}
		splitVis := &captureSink{}
		es := NewEngine(Config{Padding: 128}, split, splitVis, nil)
		prev := 0
		for _, cut := range cuts {
			es.Ingest(packet[prev:cut])
			prev = cut
		}
		es.Ingest(packet[prev:])

		if len(split.writes) != 1 || !bytes.Equal(split.writes[0], whole.writes[0]) {
			t.Fatalf("cuts %v: thermal output differs", cuts)
		}
		if len(splitVis.writes) != 1 || !bytes.Equal(splitVis.writes[0], wholeVis.writes[0]) {
			t.Fatalf("cuts %v: visible output differs", cuts)
		}
	}
}

func TestMarkerMidFrameDiscardsInProgress(t *testing.T) {
	thermalSink := &captureSink{}
	e := NewEngine(Config{Padding: 128}, thermalSink, &captureSink{}, nil)

	packet := buildPacket(9600, testJPEG(500), nil)
	e.Ingest(packet[:6000])
	// A fresh frame marker arrives before the first frame completes.
	e.Ingest(packet)

	if len(thermalSink.writes) != 1 {
		t.Fatalf("expected exactly the restarted frame, got %d writes", len(thermalSink.writes))
	}
	if c := e.Snapshot(); c.Restarts != 1 {
		t.Fatalf("restarts = %d, want 1", c.Restarts)
	}
}

func TestZeroThermalSize(t *testing.T) {
	thermalSink := &captureSink{}
	visibleSink := &captureSink{}
	e := NewEngine(Config{Padding: 128}, thermalSink, visibleSink, nil)

	e.Ingest(buildPacket(0, testJPEG(800), nil))

	if len(thermalSink.writes) != 0 {
		t.Fatalf("no thermal frame expected, got %d", len(thermalSink.writes))
	}
	if len(visibleSink.writes) != 1 {
		t.Fatalf("visible frame still expected, got %d", len(visibleSink.writes))
	}
}

func TestZeroJpegSize(t *testing.T) {
	visibleSink := &captureSink{}
	e := NewEngine(Config{Padding: 128}, &captureSink{}, visibleSink, nil)

	e.Ingest(buildPacket(9600, nil, nil))

	if len(visibleSink.writes) != 0 {
		t.Fatalf("no visible frame expected, got %d", len(visibleSink.writes))
	}
}

// A declared frame size beyond capacity can never complete; the overflow
// guard resets and no partial frame is emitted.
func TestOversizedFrameNeverEmits(t *testing.T) {
	thermalSink := &captureSink{}
	visibleSink := &captureSink{}
	e := NewEngine(Config{Capacity: 8192, Padding: 128}, thermalSink, visibleSink, nil)

	header := make([]byte, HeaderSize)
	copy(header, Magic)
	binary.LittleEndian.PutUint32(header[8:], 1<<30)
	e.Ingest(header)
	for i := 0; i < 10; i++ {
		e.Ingest(make([]byte, 4096))
	}

	if len(thermalSink.writes) != 0 || len(visibleSink.writes) != 0 {
		t.Fatalf("no frame must be emitted from an oversized cycle")
	}
	if c := e.Snapshot(); c.Overflows == 0 {
		t.Fatalf("expected overflow resets")
	}
}

func TestSOIMismatchStillEmits(t *testing.T) {
	visibleSink := &captureSink{}
	e := NewEngine(Config{Padding: 128}, &captureSink{}, visibleSink, nil)

	jpeg := testJPEG(400)
	jpeg[0] = 0x00 // break the SOI marker
	e.Ingest(buildPacket(9600, jpeg, nil))

	if len(visibleSink.writes) != 1 {
		t.Fatalf("frame with bad SOI must still be emitted")
	}
	if c := e.Snapshot(); c.SOIMismatches != 1 {
		t.Fatalf("soi mismatches = %d, want 1", c.SOIMismatches)
	}
}

// Adversarial header sizes must never read outside the accumulated
// bytes and must never crash.
func TestAdversarialSizes(t *testing.T) {
	e := NewEngine(Config{Padding: 128}, &captureSink{}, &captureSink{}, nil)

	packet := make([]byte, HeaderSize+64)
	copy(packet, Magic)
	binary.LittleEndian.PutUint32(packet[8:], 64)         // frame completes
	binary.LittleEndian.PutUint32(packet[12:], 0xFFFFFFF0) // thermal_size lies
	binary.LittleEndian.PutUint32(packet[16:], 0xFFFFFFF0) // jpeg_size lies
	e.Ingest(packet)

	if e.Frames() != 1 {
		t.Fatalf("frame should complete despite bogus region sizes")
	}
}

func TestSinkFailureDoesNotStopReassembly(t *testing.T) {
	thermalSink := &captureSink{err: errors.New("device gone")}
	visibleSink := &captureSink{}
	e := NewEngine(Config{Padding: 128}, thermalSink, visibleSink, nil)

	e.Ingest(buildPacket(9600, testJPEG(300), nil))
	e.Ingest(buildPacket(9600, testJPEG(300), nil))

	if len(visibleSink.writes) != 2 {
		t.Fatalf("visible writes = %d, want 2", len(visibleSink.writes))
	}
	if c := e.Snapshot(); c.ThermalErrors != 2 || c.Frames != 2 {
		t.Fatalf("counters: %+v", c)
	}
}

// De-interleaving is a pure function of the buffer: reassembling the
// same bytes twice yields identical grids.
func TestDeterminism(t *testing.T) {
	packet := buildPacket(9872, testJPEG(1000), nil)

	var first, second []byte
	for i := 0; i < 2; i++ {
		s := &captureSink{}
		e := NewEngine(Config{Padding: 128}, s, nil, nil)
		e.Ingest(packet)
		if len(s.writes) != 1 {
			t.Fatalf("run %d: expected one thermal frame", i)
		}
		if i == 0 {
			first = s.writes[0]
		} else {
			second = s.writes[0]
		}
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("thermal output is not deterministic")
	}
}
