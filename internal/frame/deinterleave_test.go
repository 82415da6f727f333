package frame

import (
	"encoding/binary"
	"testing"
)

func TestDeinterleaveMapping(t *testing.T) {
	// Big enough for every source index: the last sample of row 59,
	// column 79 reads at 2*(59*82+79)+32.
	buf := make([]byte, 2*(59*82+79)+32+2)
	want := func(y, x int) uint16 { return uint16(y*100 + x) }
	for y := 0; y < ThermalHeight; y++ {
		for x := 0; x < ThermalWidth; x++ {
			idx := 2*(y*lineStride+x) + lineOffset
			binary.LittleEndian.PutUint16(buf[idx:], want(y, x))
		}
	}

	var grid [ThermalPixels]uint16
	Deinterleave(buf, &grid)

	for y := 0; y < ThermalHeight; y++ {
		for x := 0; x < ThermalWidth; x++ {
			if got := grid[y*ThermalWidth+x]; got != want(y, x) {
				t.Fatalf("sample (%d,%d) = %d, want %d", x, y, got, want(y, x))
			}
		}
	}
}

func TestDeinterleaveShortBufferSkips(t *testing.T) {
	// Only the first logical row fits; everything else must stay zero
	// and nothing may read past the buffer.
	buf := make([]byte, 2*lineStride+lineOffset)
	for i := range buf {
		buf[i] = 0xFF
	}

	var grid [ThermalPixels]uint16
	Deinterleave(buf, &grid)

	for i := ThermalWidth; i < ThermalPixels; i++ {
		if grid[i] != 0 {
			t.Fatalf("sample %d populated from out-of-range source", i)
		}
	}
}

func TestDeinterleaveEmptyBuffer(t *testing.T) {
	var grid [ThermalPixels]uint16
	Deinterleave(nil, &grid)
	for i, v := range grid {
		if v != 0 {
			t.Fatalf("sample %d = %d from empty buffer", i, v)
		}
	}
}

func TestPackThermal(t *testing.T) {
	var grid [ThermalPixels]uint16
	grid[0] = 0x1234
	grid[ThermalPixels-1] = 0xABCD

	out := PackThermal(&grid)
	if len(out) != ThermalBytes {
		t.Fatalf("packed length %d, want %d", len(out), ThermalBytes)
	}
	if out[0] != 0x34 || out[1] != 0x12 {
		t.Fatalf("first sample not little-endian: % x", out[:2])
	}
	if out[ThermalBytes-2] != 0xCD || out[ThermalBytes-1] != 0xAB {
		t.Fatalf("last sample not little-endian: % x", out[ThermalBytes-2:])
	}
}
