package thermal

import (
	"fmt"
	"os"
)

// Palette is a 256-entry RGB lookup table for display colorization.
type Palette [256][3]uint8

// Grayscale returns the identity palette used when no file is loaded.
func Grayscale() Palette {
	var p Palette
	for i := range p {
		p[i] = [3]uint8{uint8(i), uint8(i), uint8(i)}
	}
	return p
}

// LoadPalette reads a raw 768-byte RGB lookup table, the format the
// stock FLIR palettes (Iron2 and friends) ship in.
func LoadPalette(path string) (Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grayscale(), err
	}
	if len(data) < 768 {
		return Grayscale(), fmt.Errorf("palette %s: got %d bytes, want 768", path, len(data))
	}
	var p Palette
	for i := range p {
		p[i] = [3]uint8{data[i*3], data[i*3+1], data[i*3+2]}
	}
	return p, nil
}

// Apply maps an 8-bit grayscale image through the palette, producing
// packed RGB.
func (p Palette) Apply(gray []uint8) []byte {
	out := make([]byte, len(gray)*3)
	for i, v := range gray {
		c := p[v]
		out[i*3] = c[0]
		out[i*3+1] = c[1]
		out[i*3+2] = c[2]
	}
	return out
}
