package frame

// ExtractVisible copies the JPEG region out of a complete frame buffer.
// The region starts jpeg_size bytes at offset 28+thermal_size; both sizes
// are untrusted, so the slice is clamped to the bytes actually buffered.
// soiOK reports whether the region begins with the JPEG start-of-image
// marker FF D8. A mismatch is the caller's to log; the frame is still
// handed on, since the downstream consumer is the final arbiter.
func ExtractVisible(buf []byte, h Header) (jpeg []byte, soiOK bool) {
	start := uint64(HeaderSize) + uint64(h.ThermalSize)
	end := start + uint64(h.JpegSize)
	return clampRegion(buf, start, end)
}

// ExtractStatus copies the status region that follows the JPEG. The C
// driver ignores it; it carries calibration and shutter state useful for
// diagnostics.
func ExtractStatus(buf []byte, h Header) []byte {
	start := uint64(HeaderSize) + uint64(h.ThermalSize) + uint64(h.JpegSize)
	end := start + uint64(h.StatusSize)
	region, _ := clampRegion(buf, start, end)
	return region
}

func clampRegion(buf []byte, start, end uint64) (region []byte, soiOK bool) {
	if start > uint64(len(buf)) {
		start = uint64(len(buf))
	}
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	if end <= start {
		return nil, false
	}
	region = make([]byte, end-start)
	copy(region, buf[start:end])
	soiOK = len(region) >= 2 && region[0] == 0xFF && region[1] == 0xD8
	return region, soiOK
}

// PadVisible appends padding zero bytes after the JPEG so speculative
// decoder overreads land on zeros instead of the next frame's bytes.
func PadVisible(jpeg []byte, padding int) []byte {
	if padding < 0 {
		padding = 0
	}
	out := make([]byte, len(jpeg)+padding)
	copy(out, jpeg)
	return out
}
