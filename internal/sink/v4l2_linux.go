//go:build linux

package sink

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FourCC pixel formats understood by the loopback devices we feed.
const (
	PixFmtY16   = 'Y' | '1'<<8 | '6'<<16 | ' '<<24 // 16-bit greyscale
	PixFmtMJPEG = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
)

const (
	vidiocSFmt          = 0xc0d05605 // VIDIOC_S_FMT, 64-bit layout
	bufTypeVideoOutput  = 2          // V4L2_BUF_TYPE_VIDEO_OUTPUT
	fieldNone           = 1          // V4L2_FIELD_NONE
	v4l2FormatSize      = 208
	v4l2PixFormatOffset = 8
)

// V4L2 writes frames to a v4l2loopback output device. Thermal uses Y16
// with one write of exactly width*height*2 bytes per frame; visible uses
// MJPEG with variable-size writes.
type V4L2 struct {
	*WriterSink
	Device string
}

// OpenV4L2 opens the device and negotiates the output format.
func OpenV4L2(device string, width, height, pixelFormat, sizeImage uint32) (*V4L2, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}

	var fmtBuf [v4l2FormatSize]byte
	binary.LittleEndian.PutUint32(fmtBuf[0:], bufTypeVideoOutput)
	pix := fmtBuf[v4l2PixFormatOffset:]
	binary.LittleEndian.PutUint32(pix[0:], width)
	binary.LittleEndian.PutUint32(pix[4:], height)
	binary.LittleEndian.PutUint32(pix[8:], pixelFormat)
	binary.LittleEndian.PutUint32(pix[12:], fieldNone)
	var bytesPerLine uint32
	switch pixelFormat {
	case PixFmtY16:
		bytesPerLine = width * 2
	}
	binary.LittleEndian.PutUint32(pix[16:], bytesPerLine)
	binary.LittleEndian.PutUint32(pix[20:], sizeImage)

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		vidiocSFmt,
		uintptr(unsafe.Pointer(&fmtBuf[0])),
	)
	if errno != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("VIDIOC_S_FMT on %s: %w", device, errno)
	}

	return &V4L2{WriterSink: NewWriterSink(f), Device: device}, nil
}
