// Package livestream implements the per-camera live-stream worker from
// spec.md §4.4: it consumes the async frame feed downstream of capture
// and, only while at least one peer is subscribed, encodes and emits
// samples onto the camera's LiveTrack.
package livestream

import (
	"log/slog"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/watchcam/watchcam/internal/encode"
	"github.com/watchcam/watchcam/internal/frame"
	"github.com/watchcam/watchcam/internal/livetrack"
	"github.com/watchcam/watchcam/internal/logging"
	"github.com/watchcam/watchcam/internal/ptsclock"
)

// Worker is one camera's live-stream encoder/pacer.
type Worker struct {
	label string
	fps   int
	track *livetrack.LiveTrack
	log   *slog.Logger
}

// New builds a Worker for one camera's LiveTrack.
func New(label string, fps int, track *livetrack.LiveTrack) *Worker {
	return &Worker{
		label: label,
		fps:   fps,
		track: track,
		log:   logging.L("livestream." + label),
	}
}

// Run consumes frames from in until it is closed. The first frame with an
// active subscriber learns width/height and initializes a standalone
// VideoProc: no container is written, the encoder exists purely to
// produce H.264 access units for LiveTrack.WriteSample. A ticker paced at
// 1/fps seconds spaces out sample emission to avoid burst jitter.
func (w *Worker) Run(in <-chan *frame.Ref) {
	ticker := time.NewTicker(time.Second / time.Duration(w.fps))
	defer ticker.Stop()

	var proc *encode.VideoProc
	defer func() {
		if proc != nil {
			proc.Close()
		}
	}()

	var sched ptsclock.Scheduler

	for ref := range in {
		f := ref.Frame()

		if w.track.ActiveSubscribers() == 0 {
			ref.Release()
			continue
		}

		if proc == nil {
			p, err := encode.NewVideoProc(f.Width, f.Height, w.fps, false)
			if err != nil {
				w.log.Error("video encoder init failed", "err", err)
				ref.Release()
				continue
			}
			proc = p
		}

		pts, durationMs := sched.Next(f.Timestamp, w.fps)
		duration := time.Duration(durationMs) * time.Millisecond

		emit := func(pkt *astiav.Packet) error {
			<-ticker.C
			data := make([]byte, len(pkt.Data()))
			copy(data, pkt.Data())
			if err := w.track.WriteSample(data, duration); err != nil {
				w.log.Error("write sample failed", "err", err)
			}
			return nil
		}

		if err := proc.Encode(f.Pix, pts, emit); err != nil {
			w.log.Error("encode failed", "err", err)
		}
		ref.Release()
	}
}
