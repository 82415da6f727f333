package frame

import (
	"math/rand"
	"testing"
)

func TestAppendRejectsNonFrameStart(t *testing.T) {
	acc := NewAccumulator(1024)

	valid, reset := acc.Append([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	if valid {
		t.Fatalf("expected invalid buffer for garbage chunk")
	}
	if reset != ResetDesync {
		t.Fatalf("expected desync reset, got %v", reset)
	}
	if acc.Len() != 0 {
		t.Fatalf("expected empty accumulator after desync, got %d", acc.Len())
	}
}

func TestAppendAcceptsFrameStart(t *testing.T) {
	acc := NewAccumulator(1024)

	valid, reset := acc.Append(append([]byte{}, Magic...))
	if !valid {
		t.Fatalf("expected valid buffer for magic chunk")
	}
	if reset != ResetNone {
		t.Fatalf("unexpected reset %v", reset)
	}
	if acc.Len() != 4 {
		t.Fatalf("unexpected length %d", acc.Len())
	}
}

func TestAppendMarkerMidFrameRestarts(t *testing.T) {
	acc := NewAccumulator(1024)

	chunk := append(append([]byte{}, Magic...), make([]byte, 40)...)
	if valid, _ := acc.Append(chunk); !valid {
		t.Fatalf("first chunk rejected")
	}

	// A new marker at a chunk start supersedes the in-progress frame.
	valid, reset := acc.Append(append([]byte{}, Magic...))
	if !valid {
		t.Fatalf("restart chunk rejected")
	}
	if reset != ResetNewFrame {
		t.Fatalf("expected new-frame reset, got %v", reset)
	}
	if acc.Len() != 4 {
		t.Fatalf("expected accumulation to restart from the marker, length %d", acc.Len())
	}
}

func TestAppendShortChunksAccumulate(t *testing.T) {
	acc := NewAccumulator(1024)

	// Magic split across two chunks never validates as a frame start:
	// the marker only counts at the start of a chunk, and once four
	// bytes are buffered the prefix check fires.
	if valid, _ := acc.Append(Magic[:2]); valid {
		t.Fatalf("two bytes should not validate")
	}
	if acc.Len() != 2 {
		t.Fatalf("short chunk not kept, length %d", acc.Len())
	}
	valid, reset := acc.Append(Magic[2:])
	if !valid || reset != ResetNone {
		t.Fatalf("reunited marker should validate, valid=%v reset=%v", valid, reset)
	}
}

func TestAppendOverflowResets(t *testing.T) {
	acc := NewAccumulator(256)

	if valid, _ := acc.Append(append(append([]byte{}, Magic...), make([]byte, 200)...)); !valid {
		t.Fatalf("first chunk rejected")
	}
	// Would exceed capacity: reset happens before the copy, and since
	// this chunk does not start with the marker it is then dropped.
	valid, reset := acc.Append(make([]byte, 100))
	if valid {
		t.Fatalf("expected invalid buffer after overflow")
	}
	if reset != ResetDesync && reset != ResetOverflow {
		t.Fatalf("unexpected reset %v", reset)
	}
	if acc.Len() > acc.Cap() {
		t.Fatalf("length %d exceeds capacity %d", acc.Len(), acc.Cap())
	}
}

func TestAppendOversizeChunkDropped(t *testing.T) {
	acc := NewAccumulator(128)

	valid, reset := acc.Append(make([]byte, 256))
	if valid || reset != ResetOversize {
		t.Fatalf("oversize chunk should be dropped, valid=%v reset=%v", valid, reset)
	}
	if acc.Len() != 0 {
		t.Fatalf("unexpected length %d", acc.Len())
	}
}

// The length invariant holds for any chunk sequence whatsoever.
func TestLengthNeverExceedsCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	acc := NewAccumulator(4096)

	for i := 0; i < 10000; i++ {
		chunk := make([]byte, rng.Intn(2000))
		rng.Read(chunk)
		if rng.Intn(4) == 0 && len(chunk) >= 4 {
			copy(chunk, Magic)
		}
		acc.Append(chunk)
		if acc.Len() > acc.Cap() {
			t.Fatalf("iteration %d: length %d exceeds capacity %d", i, acc.Len(), acc.Cap())
		}
	}
}
