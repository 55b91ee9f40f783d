// Package camera wires one configured camera's capture, motion, writer,
// and live-stream workers together, matching the supervisor described in
// spec.md §2.
package camera

import (
	"log/slog"

	"github.com/watchcam/watchcam/internal/capture"
	"github.com/watchcam/watchcam/internal/config"
	"github.com/watchcam/watchcam/internal/frame"
	"github.com/watchcam/watchcam/internal/livestream"
	"github.com/watchcam/watchcam/internal/livetrack"
	"github.com/watchcam/watchcam/internal/logging"
	"github.com/watchcam/watchcam/internal/motion"
	"github.com/watchcam/watchcam/internal/writer"
)

// motionChannelDepth is the bounded capture->motion queue depth spec.md §9
// resolves to a block-producer policy rather than an unbounded channel.
const motionChannelDepth = 8

// liveChannelDepth is the async capture->live-stream bridge's bounded
// queue, per spec.md §5's backpressure section.
const liveChannelDepth = 1000

// Supervisor owns every worker goroutine for one camera and its
// LiveTrack. Each worker runs under its own panic recovery so a crash in
// one does not take down the others or the process.
type Supervisor struct {
	Label     string
	LiveTrack *livetrack.LiveTrack

	cfg  config.Camera
	full config.Config
	log  *slog.Logger

	writer *writer.Writer
}

// New builds (but does not start) the supervisor for one camera.
func New(cfg config.Camera, full *config.Config, wr *writer.Writer) (*Supervisor, error) {
	lt, err := livetrack.New(cfg.Label)
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		Label:     cfg.Label,
		LiveTrack: lt,
		cfg:       cfg,
		full:      *full,
		log:       logging.L("camera." + cfg.Label),
		writer:    wr,
	}, nil
}

// Start launches the capture, motion, and (when display is enabled)
// live-stream workers as goroutines. It returns immediately.
func (s *Supervisor) Start() {
	motionCh := make(chan *frame.Ref, motionChannelDepth)

	var liveCh chan *frame.Ref
	if s.full.Display.Enabled {
		liveCh = make(chan *frame.Ref, liveChannelDepth)
	}

	go s.runGuarded("capture", func() { s.runCapture(motionCh, liveCh) })
	go s.runGuarded("motion", func() { s.runMotion(motionCh) })
	if liveCh != nil {
		go s.runGuarded("livestream", func() { s.runLiveStream(liveCh) })
	}
}

// runGuarded recovers a panic in fn, logs it, and returns - tearing down
// only this one worker, matching spec.md §5's "a per-camera worker panic
// terminates only that worker".
func (s *Supervisor) runGuarded(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("worker panicked, terminating", "worker", name, "panic", r)
		}
	}()
	fn()
}

func (s *Supervisor) runCapture(motionCh chan *frame.Ref, liveCh chan *frame.Ref) {
	sinks := []capture.SyncSink{motionCh}

	switch s.cfg.CameraType {
	case config.CameraTypeRTSP:
		capture.NewRTSP(s.Label, s.cfg.Source).Run(sinks, liveCh)
	case config.CameraTypeV4L:
		if err := capture.NewV4L(s.Label, s.cfg.Source).Run(sinks, liveCh); err != nil {
			s.log.Error("capture worker failed", "err", err)
		}
	}
}

func (s *Supervisor) runMotion(motionCh chan *frame.Ref) {
	d := motion.New(s.Label, s.full.Motion)
	d.Run(motionCh, s.writer.Spawn)
}

func (s *Supervisor) runLiveStream(liveCh chan *frame.Ref) {
	livestream.New(s.Label, config.FPS, s.LiveTrack).Run(liveCh)
}
