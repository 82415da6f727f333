package frame

import "bytes"

// Reset explains why the accumulator discarded buffered bytes during an
// Append.
type Reset int

const (
	ResetNone Reset = iota
	// ResetNewFrame: the chunk opened with the magic marker while bytes
	// were already buffered. The in-progress frame is superseded.
	ResetNewFrame
	// ResetOverflow: appending would have exceeded capacity.
	ResetOverflow
	// ResetDesync: after the copy the buffer did not begin with the
	// magic marker, so it cannot be a frame start.
	ResetDesync
	// ResetOversize: the chunk alone exceeds capacity and was dropped.
	ResetOversize
)

func (r Reset) String() string {
	switch r {
	case ResetNone:
		return "none"
	case ResetNewFrame:
		return "new-frame"
	case ResetOverflow:
		return "overflow"
	case ResetDesync:
		return "desync"
	case ResetOversize:
		return "oversize"
	default:
		return "unknown"
	}
}

// Accumulator is the fixed-capacity reassembly buffer. It owns the bytes
// of the frame currently being assembled; once non-empty and valid the
// buffer always begins with the magic marker.
type Accumulator struct {
	buf []byte
	n   int
}

func NewAccumulator(capacity int) *Accumulator {
	if capacity <= 0 {
		capacity = BufferSize
	}
	return &Accumulator{buf: make([]byte, capacity)}
}

func (a *Accumulator) Reset() { a.n = 0 }

func (a *Accumulator) Len() int { return a.n }

func (a *Accumulator) Cap() int { return len(a.buf) }

// Bytes returns the accumulated frame bytes. The slice aliases the
// reassembly buffer and is invalidated by the next Append or Reset.
func (a *Accumulator) Bytes() []byte { return a.buf[:a.n] }

// Append copies chunk into the buffer. It returns whether the buffer
// currently holds a plausible frame prefix, plus the reset that occurred,
// if any. A chunk beginning with the magic marker always starts a new
// frame; so does one that would overflow the buffer, since firmware gives
// no other way to regain alignment.
func (a *Accumulator) Append(chunk []byte) (valid bool, reset Reset) {
	if len(chunk) > len(a.buf) {
		a.Reset()
		return false, ResetOversize
	}
	if bytes.HasPrefix(chunk, Magic) {
		if a.n > 0 {
			reset = ResetNewFrame
		}
		a.Reset()
	} else if a.n+len(chunk) >= len(a.buf) {
		a.Reset()
		reset = ResetOverflow
	}

	copy(a.buf[a.n:], chunk)
	a.n += len(chunk)

	if a.n < len(Magic) {
		// Too short to validate; keep accumulating.
		return false, reset
	}
	if !bytes.HasPrefix(a.buf[:a.n], Magic) {
		a.Reset()
		if reset == ResetNone {
			reset = ResetDesync
		}
		return false, reset
	}
	return true, reset
}

// Complete parses the header and reports whether the packet it describes
// has been fully received. Until then the caller must preserve the
// accumulator and wait for more chunks.
func (a *Accumulator) Complete() (Header, bool) {
	h, ok := ParseHeader(a.buf[:a.n])
	if !ok {
		return Header{}, false
	}
	return h, h.Complete(a.n)
}
