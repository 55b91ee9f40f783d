// Package encode wraps the astiav scale+H.264 encode pipeline shared by
// the file writer (spec.md §4.3) and the live-stream worker (§4.4): both
// take BGR24 frames off a camera's pipeline and need H.264 access units on
// a fixed fps time-base.
package encode

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// VideoProc converts successive BGR24 frames into H.264 packets. A single
// VideoProc is owned by one file-writer episode or one live-stream worker;
// it is not safe for concurrent use.
type VideoProc struct {
	width, height int
	fps           int

	swsCtx *astiav.SoftwareScaleContext
	src    *astiav.Frame
	dst    *astiav.Frame

	codecCtx *astiav.CodecContext
	pkt      *astiav.Packet

	globalHeader bool
}

// NewVideoProc allocates the scaler and opens an H.264 encoder for a
// width x height stream running at the given frame rate. When
// globalHeader is set, the encoder writes its SPS/PPS into extradata
// instead of every keyframe, matching container formats (mp4, mkv) that
// require CodecContextFlagGlobalHeader.
func NewVideoProc(width, height, fps int, globalHeader bool) (*VideoProc, error) {
	p := &VideoProc{width: width, height: height, fps: fps, globalHeader: globalHeader}

	p.src = astiav.AllocFrame()
	p.src.SetWidth(width)
	p.src.SetHeight(height)
	p.src.SetPixelFormat(astiav.PixelFormatBgr24)
	if err := p.src.AllocBuffer(1); err != nil {
		p.Close()
		return nil, fmt.Errorf("encode: alloc src buffer: %w", err)
	}

	p.dst = astiav.AllocFrame()
	p.dst.SetWidth(width)
	p.dst.SetHeight(height)
	p.dst.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := p.dst.AllocBuffer(1); err != nil {
		p.Close()
		return nil, fmt.Errorf("encode: alloc dst buffer: %w", err)
	}

	ssc, err := astiav.CreateSoftwareScaleContext(
		width, height, astiav.PixelFormatBgr24,
		width, height, astiav.PixelFormatYuv420P,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("encode: create scale context: %w", err)
	}
	p.swsCtx = ssc

	codec := astiav.FindEncoder(astiav.CodecIDH264)
	if codec == nil {
		p.Close()
		return nil, fmt.Errorf("encode: h264 encoder not available")
	}

	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		p.Close()
		return nil, fmt.Errorf("encode: alloc codec context")
	}
	ctx.SetWidth(width)
	ctx.SetHeight(height)
	ctx.SetPixelFormat(astiav.PixelFormatYuv420P)
	ctx.SetTimeBase(astiav.NewRational(1, fps))
	ctx.SetFramerate(astiav.NewRational(fps, 1))
	if globalHeader {
		ctx.SetFlags(ctx.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	if err := ctx.Open(codec, nil); err != nil {
		ctx.Free()
		p.Close()
		return nil, fmt.Errorf("encode: open h264 encoder: %w", err)
	}
	p.codecCtx = ctx
	p.pkt = astiav.AllocPacket()

	return p, nil
}

// CodecContext exposes the encoder's context so callers can copy codec
// parameters onto an output stream.
func (p *VideoProc) CodecContext() *astiav.CodecContext { return p.codecCtx }

// TimeBase reports the encoder's time-base (1/fps).
func (p *VideoProc) TimeBase() astiav.Rational { return p.codecCtx.TimeBase() }

// Encode scales a BGR24 frame (pix, row-major, no padding) and feeds it to
// the encoder at the given PTS, invoking emit for every packet the encoder
// has ready to drain. It does not flush the encoder; call Flush for that.
func (p *VideoProc) Encode(pix []byte, pts int64, emit func(*astiav.Packet) error) error {
	if _, err := p.src.ImageCopyFromBuffer(pix, 1); err != nil {
		return fmt.Errorf("encode: copy src buffer: %w", err)
	}
	if err := p.swsCtx.ScaleFrame(p.src, p.dst); err != nil {
		return fmt.Errorf("encode: scale frame: %w", err)
	}
	p.dst.SetPts(pts)

	if err := p.codecCtx.SendFrame(p.dst); err != nil {
		return fmt.Errorf("encode: send frame: %w", err)
	}
	return p.drain(emit)
}

// Flush signals end-of-stream to the encoder and drains remaining packets.
func (p *VideoProc) Flush(emit func(*astiav.Packet) error) error {
	if err := p.codecCtx.SendFrame(nil); err != nil && err != astiav.ErrEof {
		return fmt.Errorf("encode: flush: %w", err)
	}
	return p.drain(emit)
}

func (p *VideoProc) drain(emit func(*astiav.Packet) error) error {
	for {
		err := p.codecCtx.ReceivePacket(p.pkt)
		if err != nil {
			if err == astiav.ErrEagain || err == astiav.ErrEof {
				return nil
			}
			return fmt.Errorf("encode: receive packet: %w", err)
		}
		if emitErr := emit(p.pkt); emitErr != nil {
			p.pkt.Unref()
			return emitErr
		}
		p.pkt.Unref()
	}
}

// Close releases all astiav resources. Safe to call multiple times.
func (p *VideoProc) Close() {
	if p.pkt != nil {
		p.pkt.Free()
		p.pkt = nil
	}
	if p.codecCtx != nil {
		p.codecCtx.Free()
		p.codecCtx = nil
	}
	if p.swsCtx != nil {
		p.swsCtx.Free()
		p.swsCtx = nil
	}
	if p.dst != nil {
		p.dst.Free()
		p.dst = nil
	}
	if p.src != nil {
		p.src.Free()
		p.src = nil
	}
}
