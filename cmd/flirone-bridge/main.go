package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"flirone-go/internal/config"
	"flirone-go/internal/frame"
	"flirone-go/internal/metrics"
	"flirone-go/internal/output"
	"flirone-go/internal/server"
	"flirone-go/internal/simulator"
	"flirone-go/internal/sink"
	"flirone-go/internal/thermal"
	"flirone-go/internal/types"
	"flirone-go/internal/usb"
)

func main() {
	var (
		port            = flag.Int("port", 8899, "HTTP port for the live viewer")
		thermalDev      = flag.String("thermal-dev", "/dev/video10", "V4L2 output device for raw thermal frames (empty to disable)")
		visibleDev      = flag.String("visible-dev", "/dev/video11", "V4L2 output device for visible JPEG frames (empty to disable)")
		debug           = flag.Bool("debug", false, "Run with simulated camera data")
		debugFPS        = flag.Float64("debug-fps", 8.7, "Simulated frame rate")
		debugFallback   = flag.Bool("debug-fallback", false, "Fall back to the simulator when no camera is found")
		uiRate          = flag.Duration("ui-rate", 150*time.Millisecond, "Viewer update interval")
		queueDepth      = flag.Int("queue", 4, "Per-sink frame queue depth")
		palettePath     = flag.String("palette", "", "Path to a raw 768-byte RGB palette for the viewer")
		chunkLog        = flag.Bool("chunk-log", false, "Record raw USB chunks to disk")
		chunkLogDir     = flag.String("chunk-log-dir", "chunklog", "Directory for chunk logs")
		archiveFlag     = flag.Bool("archive", false, "Record reassembled frames as a CBOR archive")
		archiveDir      = flag.String("archive-dir", "archive", "Directory for frame archives")
		replayPath      = flag.String("replay", "", "Replay a recorded chunk log instead of opening the camera")
		replayPace      = flag.Bool("replay-pace", true, "Honor recorded timing during replay")
		publishEndpoint = flag.String("publish-endpoint", "", "ZeroMQ PUSH endpoint for frame publishing, e.g. tcp://*:31001")
		logEvery        = flag.Int("log-every", 100, "Log every Nth recoverable reassembly fault")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Port:            *port,
		ThermalDevice:   *thermalDev,
		VisibleDevice:   *visibleDev,
		ThermalWidth:    frame.ThermalWidth,
		ThermalHeight:   frame.ThermalHeight,
		Debug:           *debug,
		DebugFPS:        *debugFPS,
		DebugFallback:   *debugFallback,
		UIRate:          *uiRate,
		QueueDepth:      *queueDepth,
		Palette:         *palettePath,
		ChunkLogEnabled: *chunkLog,
		ChunkLogDir:     *chunkLogDir,
		ArchiveEnabled:  *archiveFlag,
		ArchiveDir:      *archiveDir,
		ReplayPath:      *replayPath,
		ReplayPace:      *replayPace,
		PublishEndpoint: *publishEndpoint,
		LogEvery:        *logEvery,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	thermalSink := sink.NewAsync(openV4L2Sink(cfg.ThermalDevice, "thermal",
		frame.ThermalWidth, frame.ThermalHeight, sink.PixFmtY16, frame.ThermalBytes), cfg.QueueDepth)
	visibleSink := sink.NewAsync(openV4L2Sink(cfg.VisibleDevice, "visible",
		640, 480, sink.PixFmtMJPEG, frame.BufferSize), cfg.QueueDepth)
	defer thermalSink.Close()
	defer visibleSink.Close()

	var publisher *sink.Publisher
	if cfg.PublishEndpoint != "" {
		p, err := sink.NewPublisher(cfg.PublishEndpoint)
		if err != nil {
			log.Fatalf("bind publish endpoint: %v", err)
		}
		publisher = p
		defer publisher.Close()
		log.Printf("publishing frames on %s", cfg.PublishEndpoint)
	}

	var archive *output.FrameArchive
	if cfg.ArchiveEnabled {
		a, err := output.NewFrameArchive(cfg.ArchiveDir, frame.ThermalWidth, frame.ThermalHeight)
		if err != nil {
			log.Fatalf("start frame archive: %v", err)
		}
		archive = a
		defer archive.Close()
		log.Printf("archiving frames, run %s", archive.RunID())
	}

	palette := thermal.Grayscale()
	if cfg.Palette != "" {
		p, err := thermal.LoadPalette(cfg.Palette)
		if err != nil {
			log.Printf("palette %s unusable (%v), using grayscale", cfg.Palette, err)
		}
		palette = p
	}

	var latestMu sync.Mutex
	var latest types.Frame
	var hasFrame bool
	onFrame := func(f types.Frame) {
		latestMu.Lock()
		latest = f
		hasFrame = true
		latestMu.Unlock()
		if archive != nil {
			if err := archive.Record(f); err != nil {
				log.Printf("archive write failed: %v", err)
			}
		}
		if publisher != nil {
			if err := publisher.Publish(f); err != nil {
				log.Printf("frame publish failed: %v", err)
			}
		}
	}

	engine := frame.NewEngine(frame.Config{LogEvery: cfg.LogEvery}, thermalSink, visibleSink, onFrame)
	m := metrics.New(engine)
	metrics.RegisterSinkDrops("thermal", thermalSink.Dropped)
	metrics.RegisterSinkDrops("visible", visibleSink.Dropped)

	chunks, cleanupSource := openSource(ctx, cfg)
	defer cleanupSource()

	if cfg.ChunkLogEnabled {
		writer, err := output.NewChunkLogWriter(cfg.ChunkLogDir, "usb_chunks")
		if err != nil {
			log.Fatalf("start chunk log: %v", err)
		}
		defer writer.Close()
		chunks = teeChunks(ctx, chunks, writer)
	}

	observed := make(chan []byte, 16)
	go func() {
		defer close(observed)
		for chunk := range chunks {
			m.ChunkSize.Observe(float64(len(chunk)))
			select {
			case <-ctx.Done():
				return
			case observed <- chunk:
			}
		}
	}()

	go func() {
		if err := engine.Run(ctx, observed); err == nil {
			log.Printf("transport closed after %d frames, shutting down", engine.Frames())
			stop()
		}
	}()

	uiMessages := make(chan any, 16)
	go func() {
		defer close(uiMessages)
		ticker := time.NewTicker(cfg.UIRate)
		defer ticker.Stop()
		var lastSeq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				latestMu.Lock()
				f := latest
				ok := hasFrame
				latestMu.Unlock()
				if !ok || f.Seq == lastSeq {
					continue
				}
				lastSeq = f.Seq
				select {
				case uiMessages <- uiFrame(f, palette):
				default:
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c := engine.Snapshot()
				log.Printf("reassembly stats: chunks=%d frames=%d desyncs=%d overflows=%d soi_mismatches=%d",
					c.Chunks, c.Frames, c.Desyncs, c.Overflows, c.SOIMismatches)
			}
		}
	}()

	statusFn := func() map[string]any {
		c := engine.Snapshot()
		payload := map[string]any{
			"chunks_total":            c.Chunks,
			"chunk_bytes_total":       c.ChunkBytes,
			"frames_total":            c.Frames,
			"thermal_frames_total":    c.ThermalFrames,
			"visible_frames_total":    c.VisibleFrames,
			"desyncs_total":           c.Desyncs,
			"overflows_total":         c.Overflows,
			"restarts_total":          c.Restarts,
			"soi_mismatches_total":    c.SOIMismatches,
			"thermal_sink_errors":     c.ThermalErrors,
			"visible_sink_errors":     c.VisibleErrors,
			"thermal_frames_dropped":  thermalSink.Dropped(),
			"visible_frames_dropped":  visibleSink.Dropped(),
		}
		if archive != nil {
			payload["run_id"] = archive.RunID()
		}
		latestMu.Lock()
		if hasFrame {
			payload["last_frame"] = latest.Seq
			payload["last_stats"] = latest.Stats
		}
		latestMu.Unlock()
		return payload
	}

	snapshotFn := func() any {
		latestMu.Lock()
		f := latest
		ok := hasFrame
		latestMu.Unlock()
		if !ok {
			return nil
		}
		return uiFrame(f, palette)
	}

	log.Printf("live viewer at http://localhost:%d", cfg.Port)
	if err := server.Run(ctx, cfg, uiMessages, statusFn, snapshotFn, func(n int) {
		m.WSClients.Set(float64(n))
	}); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

// openV4L2Sink never fails hard: a missing loopback device downgrades
// that stream to discard so the other stream and the viewer keep working.
func openV4L2Sink(device, name string, width, height int, pixelFormat, sizeImage uint32) sink.Sink {
	if device == "" {
		log.Printf("%s output disabled", name)
		return sink.Discard{}
	}
	s, err := sink.OpenV4L2(device, uint32(width), uint32(height), pixelFormat, sizeImage)
	if err != nil {
		log.Printf("%s output unavailable: %v", name, err)
		return sink.Discard{}
	}
	log.Printf("opened %s: %dx%d", device, width, height)
	return s
}

func openSource(ctx context.Context, cfg config.AppConfig) (<-chan []byte, func()) {
	if cfg.ReplayPath != "" {
		chunks, err := output.Replay(ctx, cfg.ReplayPath, cfg.ReplayPace)
		if err != nil {
			log.Fatalf("open replay: %v", err)
		}
		log.Printf("replaying %s", cfg.ReplayPath)
		return chunks, func() {}
	}
	if cfg.Debug {
		log.Printf("running with simulated camera")
		return simulator.Stream(ctx, cfg.DebugFPS), func() {}
	}
	cam, err := usb.Open()
	if err != nil {
		if cfg.DebugFallback {
			log.Printf("camera unavailable (%v), falling back to simulator", err)
			return simulator.Stream(ctx, cfg.DebugFPS), func() {}
		}
		log.Fatalf("open camera: %v", err)
	}
	return cam.Stream(ctx), cam.Close
}

func teeChunks(ctx context.Context, in <-chan []byte, writer *output.ChunkLogWriter) <-chan []byte {
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for chunk := range in {
			if err := writer.Record(chunk); err != nil {
				log.Printf("chunk log write failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
		}
	}()
	return out
}

func uiFrame(f types.Frame, palette thermal.Palette) types.UIFrame {
	msg := types.UIFrame{
		Type:      "frame",
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		Width:     frame.ThermalWidth,
		Height:    frame.ThermalHeight,
		Jpeg:      f.Jpeg,
		Stats:     f.Stats,
	}
	if len(f.Thermal) > 0 {
		msg.Thermal = palette.Apply(thermal.Normalize(f.Thermal))
	}
	return msg
}
