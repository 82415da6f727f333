package frame

import "encoding/binary"

// The sensor multiplexes two physical sub-rows into each logical row of
// the payload, so the stride is 82 samples for 80 output columns. Columns
// at or beyond primarySplit read their companion data 4 bytes further
// into the stride; on the 80-wide Pro LT every column falls in the
// primary half, but the skew is kept to match the device wiring shared
// with wider sensors.
const primarySplit = 80

// Deinterleave recovers the 80x60 grid of 16-bit samples from a complete
// frame buffer. buf is the whole accumulated packet, header included.
// Any sample whose source index falls outside buf is skipped, leaving the
// zero value in dst; the transform never reads out of bounds no matter
// what the header claimed.
func Deinterleave(buf []byte, dst *[ThermalPixels]uint16) {
	for y := 0; y < ThermalHeight; y++ {
		for x := 0; x < ThermalWidth; x++ {
			idx := 2*(y*lineStride+x) + lineOffset
			if x >= primarySplit {
				idx += 4
			}
			if idx+1 >= len(buf) {
				continue
			}
			dst[y*ThermalWidth+x] = binary.LittleEndian.Uint16(buf[idx : idx+2])
		}
	}
}

// PackThermal serializes the grid as row-major 16-bit little-endian
// samples, the exact layout the thermal sink accepts.
func PackThermal(grid *[ThermalPixels]uint16) []byte {
	out := make([]byte, ThermalBytes)
	for i, v := range grid {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}
