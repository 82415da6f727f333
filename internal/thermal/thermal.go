// Package thermal converts raw sensor counts to approximate temperatures
// and prepares thermal grids for display.
package thermal

import "flirone-go/internal/types"

// Approximate Pro LT calibration. Real FLIR processing solves Planck's
// law with per-camera constants from metadata; this linear fit is close
// enough for hotspot finding and display scaling.
const (
	PlanckOffset = 8617.0
	PlanckScale  = 0.04
)

// RawToCelsius converts one raw 16-bit sample to degrees Celsius.
func RawToCelsius(raw uint16) float64 {
	return (float64(raw) - PlanckOffset) * PlanckScale
}

// ComputeStats summarizes a row-major thermal grid of the given width.
func ComputeStats(samples []uint16, width int) types.TempStats {
	if len(samples) == 0 || width < 1 {
		return types.TempStats{}
	}
	minIdx, maxIdx := 0, 0
	var sum float64
	for i, v := range samples {
		if v < samples[minIdx] {
			minIdx = i
		}
		if v > samples[maxIdx] {
			maxIdx = i
		}
		sum += RawToCelsius(v)
	}
	return types.TempStats{
		MinC:   RawToCelsius(samples[minIdx]),
		MaxC:   RawToCelsius(samples[maxIdx]),
		MeanC:  sum / float64(len(samples)),
		HotX:   maxIdx % width,
		HotY:   maxIdx / width,
		ColdX:  minIdx % width,
		ColdY:  minIdx / width,
		RawMin: samples[minIdx],
		RawMax: samples[maxIdx],
	}
}

// Normalize scales a 16-bit grid to 8 bits across its own value range.
func Normalize(samples []uint16) []uint8 {
	out := make([]uint8, len(samples))
	if len(samples) == 0 {
		return out
	}
	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := int(hi) - int(lo)
	if span < 1 {
		span = 1
	}
	for i, v := range samples {
		out[i] = uint8((int(v) - int(lo)) * 255 / span)
	}
	return out
}
