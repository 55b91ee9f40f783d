// Package livetrack wraps one camera's WebRTC video track: the
// live-stream worker writes encoded samples into it continuously, while
// zero or more HTTP peer connections bind/unbind as subscribers come and
// go. This replaces the teacher's lower-level TrackLocalStaticRTP/SFU
// manual-rewrite approach with pion's TrackLocalStaticSample, since this
// spec needs one shared encoder per camera rather than per-subscriber
// forwarding.
package livetrack

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// LiveTrack is the per-camera live video track plus its subscriber count.
type LiveTrack struct {
	mu          sync.Mutex
	track       *webrtc.TrackLocalStaticSample
	subscribers int
}

// New creates the underlying TrackLocalStaticSample for one camera label.
func New(label string) (*LiveTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", label,
	)
	if err != nil {
		return nil, err
	}
	return &LiveTrack{track: track}, nil
}

// Track returns the pion track to attach to a new PeerConnection.
func (l *LiveTrack) Track() *webrtc.TrackLocalStaticSample { return l.track }

// Bind registers a new subscriber. Call on successful PeerConnection
// negotiation.
func (l *LiveTrack) Bind() {
	l.mu.Lock()
	l.subscribers++
	l.mu.Unlock()
}

// Unbind removes a subscriber. Call on PeerConnection close/failure. The
// subscriber count never goes negative: an Unbind with no matching Bind
// is a no-op.
func (l *LiveTrack) Unbind() {
	l.mu.Lock()
	if l.subscribers > 0 {
		l.subscribers--
	}
	l.mu.Unlock()
}

// ActiveSubscribers reports the current subscriber count.
func (l *LiveTrack) ActiveSubscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.subscribers
}

// WriteSample writes an encoded access unit to the track when at least
// one subscriber is bound; with zero subscribers it is a no-op, matching
// spec.md's "skip and discard" rule for the live-stream worker.
func (l *LiveTrack) WriteSample(payload []byte, duration time.Duration) error {
	if l.ActiveSubscribers() == 0 {
		return nil
	}
	return l.track.WriteSample(media.Sample{Data: payload, Duration: duration})
}
