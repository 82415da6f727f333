//go:build !linux

package sink

import "errors"

const (
	PixFmtY16   = 0
	PixFmtMJPEG = 0
)

type V4L2 struct {
	*WriterSink
	Device string
}

func OpenV4L2(device string, width, height, pixelFormat, sizeImage uint32) (*V4L2, error) {
	return nil, errors.New("v4l2 output requires linux")
}
