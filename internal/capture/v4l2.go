package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/watchcam/watchcam/internal/frame"
	"github.com/watchcam/watchcam/internal/logging"
)

const v4l2WarmupFrames = 9
const v4l2BufferCount = 4

// V4LWorker captures from a local video device, matching spec.md §4.1's
// local-device variant.
type V4LWorker struct {
	label string
	path  string
	log   *slog.Logger
}

// NewV4L builds a local-device capture worker for one camera.
func NewV4L(label, path string) *V4LWorker {
	return &V4LWorker{label: label, path: path, log: logging.L("capture." + label)}
}

// Run opens the device at a fixed buffer count of 4, drops the first 9
// frames as sensor warm-up, and broadcasts every subsequent buffer. YUYV
// buffers are converted to BGR24; buffers in any other negotiated pixel
// format are copied unconverted, yet still tagged BGR. A source-open
// failure is returned to the
// caller, which is fatal to this camera only (per spec.md §4.1).
func (w *V4LWorker) Run(syncSinks []SyncSink, async AsyncSink) error {
	b := &broadcaster{sync: syncSinks, async: async, log: w.log}

	dev, err := device.Open(w.path, device.WithBufferSize(v4l2BufferCount))
	if err != nil {
		return fmt.Errorf("capture: open device %s: %w", w.path, err)
	}
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := dev.Start(ctx); err != nil {
		return fmt.Errorf("capture: start device %s: %w", w.path, err)
	}

	fourcc := dev.PixFormat().PixelFormat
	width := int(dev.PixFormat().Width)
	height := int(dev.PixFormat().Height)

	index := 0
	for buf := range dev.GetOutput() {
		index++
		if index <= v4l2WarmupFrames {
			continue
		}
		if len(buf) == 0 {
			continue
		}
		if width == 0 {
			continue
		}

		var pix []byte
		switch fourcc {
		case v4l2.PixelFmtYUYV:
			pix = frame.YUYVToBGR(buf)
		default:
			pix = frame.AllocBuffer(len(buf))
			copy(pix, buf)
		}

		f := &frame.Frame{
			Pix:        pix,
			Width:      width,
			Height:     height,
			Colorspace: frame.BGR,
			Timestamp:  time.Now().UTC(),
		}
		b.publish(frame.New(f))
	}
	return nil
}
