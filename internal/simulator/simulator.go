// Package simulator synthesizes the camera's wire format so the whole
// pipeline runs without hardware. Frames are emitted as chunks split at
// random byte boundaries, which is exactly how the real bulk endpoint
// behaves.
package simulator

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"math/rand"
	"time"

	"flirone-go/internal/frame"
)

const (
	// The device pads the thermal region past the last sample index.
	thermalRegionSize = 2*82*frame.ThermalHeight + 32
	statusRegionSize  = 64
	maxChunk          = 16384
)

// Stream emits synthetic frames at fps until ctx is cancelled.
func Stream(ctx context.Context, fps float64) <-chan []byte {
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		if fps <= 0 {
			fps = 8.7 // the real camera's rate
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()

		jpegData := encodeVisible()
		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				packet := buildFrame(seq, jpegData)
				for _, chunk := range splitChunks(packet) {
					select {
					case <-ctx.Done():
						return
					case out <- chunk:
					}
				}
				seq++
			}
		}
	}()
	return out
}

// buildFrame lays out one complete packet: header, interleaved thermal
// payload with a hot blob orbiting the center, JPEG, status region.
func buildFrame(seq uint64, jpegData []byte) []byte {
	frameSize := thermalRegionSize + len(jpegData) + statusRegionSize
	packet := make([]byte, frame.HeaderSize+frameSize)

	copy(packet, frame.Magic)
	binary.LittleEndian.PutUint32(packet[8:], uint32(frameSize))
	binary.LittleEndian.PutUint32(packet[12:], uint32(thermalRegionSize))
	binary.LittleEndian.PutUint32(packet[16:], uint32(len(jpegData)))
	binary.LittleEndian.PutUint32(packet[20:], uint32(statusRegionSize))

	angle := float64(seq) * 0.1
	blobX := 40 + 25*math.Cos(angle)
	blobY := 30 + 18*math.Sin(angle)
	for y := 0; y < frame.ThermalHeight; y++ {
		for x := 0; x < frame.ThermalWidth; x++ {
			dx := float64(x) - blobX
			dy := float64(y) - blobY
			// Roughly 20C ambient with a 60C blob in raw counts.
			v := 9100 + 1000*math.Exp(-(dx*dx+dy*dy)/60) + 20*rand.NormFloat64()
			idx := 2*(y*82+x) + 32
			binary.LittleEndian.PutUint16(packet[idx:], uint16(v))
		}
	}

	jpegStart := frame.HeaderSize + thermalRegionSize
	copy(packet[jpegStart:], jpegData)

	statusStart := jpegStart + len(jpegData)
	binary.LittleEndian.PutUint64(packet[statusStart:], seq)
	return packet
}

func splitChunks(packet []byte) [][]byte {
	var chunks [][]byte
	for len(packet) > 0 {
		n := 1 + rand.Intn(maxChunk)
		if n > len(packet) {
			n = len(packet)
		}
		chunks = append(chunks, packet[:n])
		packet = packet[n:]
	}
	return chunks
}

func encodeVisible() []byte {
	img := image.NewYCbCr(image.Rect(0, 0, 640, 480), image.YCbCrSubsampleRatio420)
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			r := uint8(x * 255 / 640)
			g := uint8(y * 255 / 480)
			yy, cb, cr := color.RGBToYCbCr(r, g, 128)
			img.Y[img.YOffset(x, y)] = yy
			img.Cb[img.COffset(x, y)] = cb
			img.Cr[img.COffset(x, y)] = cr
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		// Unreachable for an in-memory encode; keep the stream alive
		// with a bare SOI/EOI pair.
		return []byte{0xFF, 0xD8, 0xFF, 0xD9}
	}
	return buf.Bytes()
}
