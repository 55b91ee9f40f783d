// Package motion implements the per-camera motion state machine described
// in spec.md §4.2: it consumes frames from the capture worker, runs
// contour-based motion detection on a downsampled copy of each frame, and
// emits framed, start/end-tagged EpisodeFrame messages to a lazily spawned
// file-writer worker.
package motion

import (
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/watchcam/watchcam/internal/config"
	"github.com/watchcam/watchcam/internal/frame"
	"github.com/watchcam/watchcam/internal/logging"
)

// warmupFrames is how many frames are dropped after camera startup before
// motion comparison begins (the 20th frame becomes the first "previous").
const warmupFrames = 19

// WriterSpawner creates a fresh file-writer worker for a new episode and
// returns the channel feeding it.
type WriterSpawner func(startTime time.Time, width, height int) chan<- *frame.EpisodeFrame

// Detector runs the per-camera motion state machine.
type Detector struct {
	label string
	cfg   config.Motion
	state State
	log   *slog.Logger
}

// New creates a Detector for one camera using the given motion config.
func New(label string, cfg config.Motion) *Detector {
	return &Detector{
		label: label,
		cfg:   cfg,
		state: NewState(),
		log:   logging.L("motion." + label),
	}
}

// Run consumes frames from in until it is closed, driving the motion state
// machine and spawning/feeding/closing file-writer channels via spawn.
// Each incoming *frame.Ref is released exactly once, whether it is
// forwarded to a writer or dropped.
func (d *Detector) Run(in <-chan *frame.Ref, spawn WriterSpawner) {
	var previous gocv.Mat
	havePrevious := false
	index := 0

	var writer chan<- *frame.EpisodeFrame

	for ref := range in {
		index++
		f := ref.Frame()

		if index <= warmupFrames {
			ref.Release()
			continue
		}

		down, err := downsample(f)
		if err != nil {
			d.log.Error("downsample failed", "err", err)
			ref.Release()
			continue
		}

		if !havePrevious {
			previous = down
			havePrevious = true
			ref.Release()
			continue
		}

		result, err := detect(previous, down, float64(d.cfg.MinThresholdSize))
		if err != nil {
			d.log.Error("detect failed", "err", err)
			down.Close()
			ref.Release()
			continue
		}

		ev := d.state.step(f.Timestamp, result.triggered)

		switch ev {
		case eventStart:
			writer = spawn(f.Timestamp, f.Width, f.Height)
			d.forward(writer, ref, result, true, false)
		case eventMid:
			d.forward(writer, ref, result, false, false)
		case eventEnd:
			d.forward(writer, ref, result, false, true)
			close(writer)
			writer = nil
		default: // eventNone
			ref.Release()
		}
		result.contours.Close()

		previous.Close()
		previous = down
	}

	if havePrevious {
		previous.Close()
	}
	if writer != nil {
		close(writer)
	}
}

func (d *Detector) forward(writer chan<- *frame.EpisodeFrame, ref *frame.Ref, result detectResult, isStart, isEnd bool) {
	if d.cfg.DrawContours || d.cfg.DrawRectangles {
		if ref.TryClaim() {
			if err := annotate(ref.Frame(), result.contours, d.cfg.DrawContours, d.cfg.DrawRectangles); err != nil {
				d.log.Warn("annotate failed, forwarding unannotated", "err", err)
			}
		} else {
			d.log.Warn("frame not uniquely owned, forwarding unannotated")
		}
	}
	writer <- &frame.EpisodeFrame{Frame: ref, IsStart: isStart, IsEnd: isEnd}
}
