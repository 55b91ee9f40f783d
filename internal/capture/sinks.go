// Package capture implements the per-camera capture worker from spec.md
// §4.1: it owns the decoder for one RTSP stream or local V4L2 device and
// broadcasts each decoded BGR24 frame to every configured sink.
package capture

import (
	"log/slog"

	"github.com/watchcam/watchcam/internal/frame"
)

// SyncSink is a bounded synchronous fan-out target (the motion detector's
// input channel, depth 8 per spec.md's resolved bounding policy). A send
// to a closed sync sink panics, which terminates only this camera's
// capture goroutine - the per-camera supervisor recovers it, matching
// spec.md's "synchronous sinks are best-effort: send failure ... is fatal
// to the worker".
type SyncSink = chan<- *frame.Ref

// AsyncSink is the optional back-pressured fan-out target (the
// live-stream worker's input channel, bounded at 1000). Overflow blocks
// the capture goroutine exactly like a sync sink; a closed async sink is
// logged and does not terminate the worker.
type AsyncSink = chan<- *frame.Ref

// broadcaster clones one Ref per configured sink and fans it out,
// matching spec.md's "a frame handle is cloned once per sink" rule.
type broadcaster struct {
	sync  []SyncSink
	async AsyncSink
	log   *slog.Logger
}

// publish sends a cloned frame to every sink, blocking on full channels as
// spec.md's backpressure policy requires.
func (b *broadcaster) publish(ref *frame.Ref) {
	for _, sink := range b.sync {
		sink <- ref.Clone()
	}
	if b.async != nil {
		b.sendAsync(ref.Clone())
	}
	ref.Release()
}

// sendAsync recovers from a send to a closed async sink so a
// live-stream worker's shutdown never brings down capture.
func (b *broadcaster) sendAsync(clone *frame.Ref) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("async sink closed, dropping frame", "err", r)
			clone.Release()
		}
	}()
	b.async <- clone
}
