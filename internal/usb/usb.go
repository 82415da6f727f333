// Package usb talks to the FLIR One Pro LT over libusb and exposes the
// bulk frame endpoint as a chunk stream. It knows nothing about the wire
// format beyond which endpoints carry it.
package usb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/gousb"
)

const (
	VendorID  = 0x09CB
	ProductID = 0x1996

	// The camera exposes three interfaces under configuration 3.
	usbConfig     = 3
	ifaceStatus   = 0 // EP 0x81
	ifaceFileIO   = 1 // EP 0x83, also signals disconnect
	ifaceFrame    = 2 // EP 0x85, the frame stream
	epStatusNum   = 1
	epFileIONum   = 3
	epFrameNum    = 5
	readBufferLen = 1 << 20

	findTimeout = 5 * time.Second
)

// Camera is an open, streaming FLIR One Pro LT.
type Camera struct {
	usbCtx *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	ifaces [3]*gousb.Interface
	frame  *gousb.InEndpoint
	status *gousb.InEndpoint
	fileIO *gousb.InEndpoint
}

// Open finds the camera, claims its interfaces and runs the control
// sequence that starts video streaming. It retries discovery briefly so
// plugging the camera in just before launch works.
func Open() (*Camera, error) {
	usbCtx := gousb.NewContext()
	cam := &Camera{usbCtx: usbCtx}
	if err := cam.open(); err != nil {
		cam.Close()
		return nil, err
	}
	return cam, nil
}

func (c *Camera) open() error {
	deadline := time.Now().Add(findTimeout)
	for {
		dev, err := c.usbCtx.OpenDeviceWithVIDPID(VendorID, ProductID)
		if err != nil {
			return fmt.Errorf("open device: %w", err)
		}
		if dev != nil {
			c.dev = dev
			break
		}
		if time.Now().After(deadline) {
			return errors.New("FLIR One Pro LT not found, is it connected?")
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := c.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("auto detach: %w", err)
	}
	cfg, err := c.dev.Config(usbConfig)
	if err != nil {
		return fmt.Errorf("set configuration %d: %w", usbConfig, err)
	}
	c.cfg = cfg
	for i := 0; i < 3; i++ {
		intf, err := cfg.Interface(i, 0)
		if err != nil {
			return fmt.Errorf("claim interface %d: %w", i, err)
		}
		c.ifaces[i] = intf
	}

	if c.frame, err = c.ifaces[ifaceFrame].InEndpoint(epFrameNum); err != nil {
		return fmt.Errorf("frame endpoint: %w", err)
	}
	if c.status, err = c.ifaces[ifaceStatus].InEndpoint(epStatusNum); err != nil {
		return fmt.Errorf("status endpoint: %w", err)
	}
	if c.fileIO, err = c.ifaces[ifaceFileIO].InEndpoint(epFileIONum); err != nil {
		return fmt.Errorf("fileio endpoint: %w", err)
	}

	return c.startStreaming()
}

// startStreaming replays the vendor handshake: stop both stream
// interfaces, restart FILEIO, then ask for video on the frame endpoint.
func (c *Camera) startStreaming() error {
	c.dev.ControlTimeout = 200 * time.Millisecond
	data := make([]byte, 2)

	// Best effort stops; a camera fresh off the cable rejects them.
	_, _ = c.dev.Control(0x01, 0x0b, 0, ifaceFrame, data)
	_, _ = c.dev.Control(0x01, 0x0b, 0, ifaceFileIO, data)

	if _, err := c.dev.Control(0x01, 0x0b, 1, ifaceFileIO, data); err != nil {
		return fmt.Errorf("start fileio: %w", err)
	}
	if _, err := c.dev.Control(0x01, 0x0b, 1, ifaceFrame, data); err != nil {
		return fmt.Errorf("start video stream: %w", err)
	}
	log.Printf("video streaming started")
	return nil
}

// Stream returns the chunk channel for the frame endpoint. Chunks are
// delivered in arrival order, each an independent copy. The channel is
// closed when the device disappears, which the drive loop treats as a
// clean shutdown signal.
func (c *Camera) Stream(ctx context.Context) <-chan []byte {
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		buf := make([]byte, readBufferLen)
		scratch := make([]byte, readBufferLen)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			readCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			n, err := c.frame.ReadContext(readCtx, buf)
			cancel()
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case <-ctx.Done():
					return
				case out <- chunk:
				}
			}
			if gone(err) {
				log.Printf("device disconnected")
				return
			}

			// Drain the status endpoint and poke FILEIO; a dead FILEIO
			// read is how disconnect shows up on an idle stream.
			pollCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			_, _ = c.status.ReadContext(pollCtx, scratch)
			cancel()
			pollCtx, cancel = context.WithTimeout(ctx, 10*time.Millisecond)
			_, err = c.fileIO.ReadContext(pollCtx, scratch)
			cancel()
			if gone(err) {
				log.Printf("device disconnected")
				return
			}
		}
	}()
	return out
}

func gone(err error) bool {
	return errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.TransferNoDevice)
}

// Close stops streaming and releases the device. Safe on a partially
// opened camera.
func (c *Camera) Close() {
	if c.dev != nil {
		data := make([]byte, 2)
		_, _ = c.dev.Control(0x01, 0x0b, 0, ifaceFrame, data)
		_, _ = c.dev.Control(0x01, 0x0b, 0, ifaceFileIO, data)
	}
	for _, intf := range c.ifaces {
		if intf != nil {
			intf.Close()
		}
	}
	if c.cfg != nil {
		_ = c.cfg.Close()
	}
	if c.dev != nil {
		_ = c.dev.Close()
	}
	if c.usbCtx != nil {
		_ = c.usbCtx.Close()
	}
}
