package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/watchcam/watchcam/internal/frame"
	"github.com/watchcam/watchcam/internal/logging"
)

// RTSPWorker decodes an RTSP source into BGR24 frames and broadcasts them
// to its sinks, matching spec.md §4.1's RTSP variant.
type RTSPWorker struct {
	label string
	url   string
	log   *slog.Logger
}

// NewRTSP builds an RTSP capture worker for one camera.
func NewRTSP(label, url string) *RTSPWorker {
	return &RTSPWorker{label: label, url: url, log: logging.L("capture." + label)}
}

// Run opens the RTSP source and decodes frames until the process is
// stopped. Packet-iterator exhaustion (end of the source's underlying
// stream) restarts the input loop, since the source is treated as
// long-lived. Every session error, including an open, decoder or scaler
// init failure, is logged and the input is reopened after one second;
// Run never returns.
func (w *RTSPWorker) Run(syncSinks []SyncSink, async AsyncSink) {
	b := &broadcaster{sync: syncSinks, async: async, log: w.log}

	for {
		err := w.openAndDecode(b)
		if err != nil {
			w.log.Error("rtsp session ended", "err", err)
		}
		w.log.Warn("restarting rtsp input", "url", w.url)
		time.Sleep(time.Second)
	}
}

func (w *RTSPWorker) openAndDecode(b *broadcaster) error {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return errors.New("capture: alloc format context")
	}
	defer fc.Free()

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("rtsp_transport", "tcp", 0)
	_ = opts.Set("stimeout", "5000000", 0)

	if err := fc.OpenInput(w.url, nil, opts); err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer fc.CloseInput()

	if err := fc.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("find stream info: %w", err)
	}

	streamIdx := -1
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			streamIdx = i
			break
		}
	}
	if streamIdx < 0 {
		return errors.New("no video stream")
	}
	vst := fc.Streams()[streamIdx]
	vpar := vst.CodecParameters()

	decoder := astiav.FindDecoder(vpar.CodecID())
	if decoder == nil {
		return errors.New("find decoder")
	}
	decCtx := astiav.AllocCodecContext(decoder)
	if decCtx == nil {
		return errors.New("alloc codec context")
	}
	defer decCtx.Free()

	if err := vpar.ToCodecContext(decCtx); err != nil {
		return fmt.Errorf("codec parameters to context: %w", err)
	}
	if err := decCtx.Open(decoder, nil); err != nil {
		return fmt.Errorf("open decoder: %w", err)
	}

	width, height := decCtx.Width(), decCtx.Height()

	ssc, err := astiav.CreateSoftwareScaleContext(
		width, height, decCtx.PixelFormat(),
		width, height, astiav.PixelFormatBgr24,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return fmt.Errorf("create scale context: %w", err)
	}
	defer ssc.Free()

	dst := astiav.AllocFrame()
	defer dst.Free()
	dst.SetWidth(width)
	dst.SetHeight(height)
	dst.SetPixelFormat(astiav.PixelFormatBgr24)
	if err := dst.AllocBuffer(1); err != nil {
		return fmt.Errorf("alloc dst buffer: %w", err)
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	decoded := astiav.AllocFrame()
	defer decoded.Free()

	for {
		err := fc.ReadFrame(pkt)
		if err != nil {
			return fmt.Errorf("packet iterator exhausted: %w", err)
		}

		if pkt.StreamIndex() != streamIdx {
			pkt.Unref()
			continue
		}

		if err := decCtx.SendPacket(pkt); err != nil {
			pkt.Unref()
			w.log.Error("send packet failed, skipping", "err", err)
			continue
		}
		pkt.Unref()

		for {
			if err := decCtx.ReceiveFrame(decoded); err != nil {
				if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
					break
				}
				w.log.Error("receive frame failed", "err", err)
				break
			}

			if err := ssc.ScaleFrame(decoded, dst); err != nil {
				w.log.Error("scale frame failed", "err", err)
				decoded.Unref()
				continue
			}

			n, err := dst.ImageBufferSize(1)
			if err != nil {
				w.log.Error("image buffer size failed", "err", err)
				decoded.Unref()
				continue
			}
			pix := frame.AllocBuffer(n)
			if _, err := dst.ImageCopyToBuffer(pix, 1); err != nil {
				w.log.Error("image copy failed", "err", err)
				decoded.Unref()
				continue
			}

			f := &frame.Frame{
				Pix:        pix,
				Width:      width,
				Height:     height,
				Colorspace: frame.BGR,
				Timestamp:  time.Now().UTC(),
			}
			b.publish(frame.New(f))
			decoded.Unref()
		}
	}
}
