// Package metrics exposes the bridge's counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"flirone-go/internal/frame"
)

// Metrics holds the collectors not derived from the engine snapshot.
type Metrics struct {
	WSClients prometheus.Gauge
	ChunkSize prometheus.Histogram
}

// New registers all bridge metrics on the default registry. Engine-side
// counters are exported as counter funcs over the engine's own atomics,
// so the reassembly core stays free of metrics plumbing.
func New(e *frame.Engine) *Metrics {
	engineCounter := func(name, help string, value func(frame.Counters) uint64) {
		promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, func() float64 {
			return float64(value(e.Snapshot()))
		})
	}

	engineCounter("flirone_chunks_total", "USB chunks ingested",
		func(c frame.Counters) uint64 { return c.Chunks })
	engineCounter("flirone_chunk_bytes_total", "USB payload bytes ingested",
		func(c frame.Counters) uint64 { return c.ChunkBytes })
	engineCounter("flirone_frames_total", "Frames reassembled",
		func(c frame.Counters) uint64 { return c.Frames })
	engineCounter("flirone_thermal_frames_total", "Thermal frames written to the sink",
		func(c frame.Counters) uint64 { return c.ThermalFrames })
	engineCounter("flirone_visible_frames_total", "Visible frames written to the sink",
		func(c frame.Counters) uint64 { return c.VisibleFrames })
	engineCounter("flirone_desyncs_total", "Chunks dropped for not starting a frame",
		func(c frame.Counters) uint64 { return c.Desyncs })
	engineCounter("flirone_overflows_total", "Reassembly buffer overflow resets",
		func(c frame.Counters) uint64 { return c.Overflows })
	engineCounter("flirone_restarts_total", "In-progress frames superseded by a new marker",
		func(c frame.Counters) uint64 { return c.Restarts })
	engineCounter("flirone_soi_mismatches_total", "Visible frames missing the JPEG SOI marker",
		func(c frame.Counters) uint64 { return c.SOIMismatches })
	engineCounter("flirone_thermal_sink_errors_total", "Failed thermal sink writes",
		func(c frame.Counters) uint64 { return c.ThermalErrors })
	engineCounter("flirone_visible_sink_errors_total", "Failed visible sink writes",
		func(c frame.Counters) uint64 { return c.VisibleErrors })

	return &Metrics{
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "flirone_ws_clients",
			Help: "Connected websocket viewer clients",
		}),
		ChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "flirone_chunk_size_bytes",
			Help:    "Size of ingested USB chunks",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B to ~4MB
		}),
	}
}

// RegisterSinkDrops exports a sink's dropped-frame count under a per-sink
// label. value is read at scrape time.
func RegisterSinkDrops(sinkName string, value func() uint64) {
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name:        "flirone_frames_dropped_total",
		Help:        "Frames dropped on a full sink queue",
		ConstLabels: prometheus.Labels{"sink": sinkName},
	}, func() float64 {
		return float64(value())
	})
}
