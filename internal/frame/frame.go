// Package frame reassembles FLIR One Pro LT bulk-transfer chunks into
// complete thermal and visible frames. The camera delivers arbitrarily
// sized, arbitrarily aligned chunks; the only synchronization signal is
// the magic marker at the start of a chunk.
package frame

import "encoding/binary"

const (
	// HeaderSize is the fixed packet header length in bytes.
	HeaderSize = 28

	// BufferSize is the reassembly buffer capacity. The camera never
	// produces a packet anywhere near this large; the cap bounds damage
	// from a corrupt frame_size field.
	BufferSize = 1 << 20

	// ThermalWidth and ThermalHeight describe the Pro LT (Gen 3) sensor.
	ThermalWidth  = 80
	ThermalHeight = 60
	ThermalPixels = ThermalWidth * ThermalHeight

	// ThermalBytes is the exact size of one thermal sink write:
	// row-major 16-bit little-endian samples.
	ThermalBytes = ThermalPixels * 2

	// lineStride is the source row stride in samples; each logical row
	// occupies 164 bytes of the interleaved payload.
	lineStride = 82

	// lineOffset is the byte offset of the first sample, measured from
	// the start of the reassembly buffer.
	lineOffset = 32

	// JpegPadding is the zero padding appended after the sliced JPEG.
	// Permissive decoders read past the end-of-image marker; padding
	// turns that into a harmless zero-read.
	JpegPadding = 32 * 1024
)

// Magic marks the start of a protocol packet.
var Magic = []byte{0xEF, 0xBE, 0x00, 0x00}

// Header is the logical view over the first 28 bytes of a packet. The
// length fields are untrusted input: region extraction clamps against
// the bytes actually accumulated, never against these values alone.
type Header struct {
	FrameSize   uint32
	ThermalSize uint32
	JpegSize    uint32
	StatusSize  uint32
}

// ParseHeader extracts the little-endian length fields. The protocol
// carries no checksum; a corrupt frame_size is only ever caught by the
// accumulator overflow guard or by downstream consumers.
func ParseHeader(buf []byte) (Header, bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}
	return Header{
		FrameSize:   binary.LittleEndian.Uint32(buf[8:12]),
		ThermalSize: binary.LittleEndian.Uint32(buf[12:16]),
		JpegSize:    binary.LittleEndian.Uint32(buf[16:20]),
		StatusSize:  binary.LittleEndian.Uint32(buf[20:24]),
	}, true
}

// Complete reports whether buf holds the whole packet described by h.
func (h Header) Complete(buffered int) bool {
	return uint64(buffered) >= uint64(h.FrameSize)+HeaderSize
}
