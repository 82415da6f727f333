package frame

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"flirone-go/internal/thermal"
	"flirone-go/internal/types"
)

// Sink accepts one complete frame buffer per call. The thermal sink
// receives exactly ThermalBytes per write; the visible sink a variable
// length JPEG plus padding. A failed write drops that frame only.
type Sink interface {
	WriteFrame(p []byte) error
}

// Config tunes the engine. Zero values select the device defaults.
type Config struct {
	Capacity int // accumulator capacity, default BufferSize
	Padding  int // zero bytes appended after the JPEG, default JpegPadding
	LogEvery int // log every Nth recoverable fault, default 100
}

// Counters is a snapshot of the engine's diagnostic counters.
type Counters struct {
	Chunks        uint64
	ChunkBytes    uint64
	Frames        uint64
	ThermalFrames uint64
	VisibleFrames uint64
	Desyncs       uint64
	Overflows     uint64
	Restarts      uint64
	SOIMismatches uint64
	ThermalErrors uint64
	VisibleErrors uint64
}

// Engine is the frame dispatcher: it feeds chunks to the accumulator,
// detects completion, runs the de-interleaver and the visible extractor
// on the same buffer, and routes the results to the two sinks. There is
// a single implicit state, accumulating; every recoverable fault resolves
// by resetting and accumulating again.
type Engine struct {
	acc     *Accumulator
	thermal Sink
	visible Sink
	onFrame func(types.Frame)

	padding  int
	logEvery int
	faults   int

	chunks        atomic.Uint64
	chunkBytes    atomic.Uint64
	frames        atomic.Uint64
	thermalFrames atomic.Uint64
	visibleFrames atomic.Uint64
	desyncs       atomic.Uint64
	overflows     atomic.Uint64
	restarts      atomic.Uint64
	soiMismatches atomic.Uint64
	thermalErrors atomic.Uint64
	visibleErrors atomic.Uint64
}

// NewEngine wires the dispatcher to its sinks. Either sink may be nil,
// in which case that stream is dropped. onFrame, when non-nil, observes
// every reassembled frame with independently owned buffers; it runs on
// the ingest goroutine and should hand off quickly.
func NewEngine(cfg Config, thermalSink, visibleSink Sink, onFrame func(types.Frame)) *Engine {
	if cfg.Padding == 0 {
		cfg.Padding = JpegPadding
	}
	if cfg.LogEvery < 1 {
		cfg.LogEvery = 100
	}
	return &Engine{
		acc:      NewAccumulator(cfg.Capacity),
		thermal:  thermalSink,
		visible:  visibleSink,
		onFrame:  onFrame,
		padding:  cfg.Padding,
		logEvery: cfg.LogEvery,
	}
}

// Ingest processes one chunk in arrival order. Chunks must not be
// mutated during the call; the engine copies what it keeps.
func (e *Engine) Ingest(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	e.chunks.Add(1)
	e.chunkBytes.Add(uint64(len(chunk)))

	valid, reset := e.acc.Append(chunk)
	switch reset {
	case ResetNewFrame:
		e.restarts.Add(1)
	case ResetOverflow, ResetOversize:
		e.overflows.Add(1)
		e.logFault("reassembly overflow (%s), resyncing", reset)
	case ResetDesync:
		e.desyncs.Add(1)
		e.logFault("chunk is not a frame start, dropped %d bytes", len(chunk))
	}
	if !valid {
		return
	}

	h, complete := e.acc.Complete()
	if !complete {
		return
	}
	e.emit(h)
	e.acc.Reset()
}

// Run drives the engine from a chunk stream until the stream closes
// (transport gone) or the context is cancelled. Chunks arriving on the
// channel are owned by the engine for the duration of Ingest.
func (e *Engine) Run(ctx context.Context, chunks <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			e.Ingest(chunk)
		}
	}
}

func (e *Engine) emit(h Header) {
	seq := e.frames.Add(1)
	buf := e.acc.Bytes()

	var grid [ThermalPixels]uint16
	var jpeg []byte
	soiOK := false

	if h.ThermalSize > 0 {
		Deinterleave(buf, &grid)
		if e.thermal != nil {
			if err := e.thermal.WriteFrame(PackThermal(&grid)); err != nil {
				e.thermalErrors.Add(1)
				e.logFault("thermal sink write: %v", err)
			} else {
				e.thermalFrames.Add(1)
			}
		}
	}

	if h.JpegSize > 0 {
		jpeg, soiOK = ExtractVisible(buf, h)
		if !soiOK {
			e.soiMismatches.Add(1)
			log.Printf("frame %d: malformed JPEG header (no SOI), emitting anyway", seq)
		}
		if e.visible != nil && len(jpeg) > 0 {
			if err := e.visible.WriteFrame(PadVisible(jpeg, e.padding)); err != nil {
				e.visibleErrors.Add(1)
				e.logFault("visible sink write: %v", err)
			} else {
				e.visibleFrames.Add(1)
			}
		}
	}

	if e.onFrame != nil {
		f := types.Frame{
			Seq:         seq,
			Timestamp:   float64(time.Now().UnixNano()) / 1e9,
			FrameSize:   h.FrameSize,
			ThermalSize: h.ThermalSize,
			JpegSize:    h.JpegSize,
			StatusSize:  h.StatusSize,
			Jpeg:        jpeg,
			Status:      ExtractStatus(buf, h),
			SOIValid:    soiOK,
		}
		if h.ThermalSize > 0 {
			samples := make([]uint16, ThermalPixels)
			copy(samples, grid[:])
			f.Thermal = samples
			f.Stats = thermal.ComputeStats(samples, ThermalWidth)
		}
		e.onFrame(f)
	}
}

// Frames returns the number of frames reassembled so far.
func (e *Engine) Frames() uint64 { return e.frames.Load() }

// Snapshot returns the current diagnostic counters.
func (e *Engine) Snapshot() Counters {
	return Counters{
		Chunks:        e.chunks.Load(),
		ChunkBytes:    e.chunkBytes.Load(),
		Frames:        e.frames.Load(),
		ThermalFrames: e.thermalFrames.Load(),
		VisibleFrames: e.visibleFrames.Load(),
		Desyncs:       e.desyncs.Load(),
		Overflows:     e.overflows.Load(),
		Restarts:      e.restarts.Load(),
		SOIMismatches: e.soiMismatches.Load(),
		ThermalErrors: e.thermalErrors.Load(),
		VisibleErrors: e.visibleErrors.Load(),
	}
}

func (e *Engine) logFault(format string, args ...any) {
	e.faults++
	if e.faults%e.logEvery == 0 {
		log.Printf(format, args...)
	}
}
