package config

import "time"

type AppConfig struct {
	Port            int
	ThermalDevice   string
	VisibleDevice   string
	ThermalWidth    int
	ThermalHeight   int
	Debug           bool
	DebugFPS        float64
	DebugFallback   bool
	UIRate          time.Duration
	QueueDepth      int
	Palette         string
	ChunkLogEnabled bool
	ChunkLogDir     string
	ArchiveEnabled  bool
	ArchiveDir      string
	ReplayPath      string
	ReplayPace      bool
	PublishEndpoint string
	LogEvery        int
}
