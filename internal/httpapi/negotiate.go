package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// decodeOfferBody reads a request body that is itself base64-encoded
// JSON (a marshalled webrtc.SessionDescription), matching spec.md §4.4's
// "base64-encoded JSON SDP offer" contract, and returns the decoded
// SessionDescription.
func decodeOfferBody(r *http.Request) (webrtc.SessionDescription, error) {
	var offer webrtc.SessionDescription

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return offer, fmt.Errorf("read body: %w", err)
	}
	defer r.Body.Close()

	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return offer, fmt.Errorf("decode base64: %w", err)
	}
	if err := json.Unmarshal(decoded, &offer); err != nil {
		return offer, fmt.Errorf("unmarshal offer json: %w", err)
	}
	return offer, nil
}

// encodeAnswerBody base64-encodes the JSON-marshalled answer, the
// mirror image of decodeOfferBody.
func encodeAnswerBody(answer *webrtc.SessionDescription) (string, error) {
	raw, err := json.Marshal(answer)
	if err != nil {
		return "", fmt.Errorf("marshal answer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// interceptorRegistryHolder lazily builds one interceptor.Registry per
// negotiation, since webrtc.RegisterDefaultInterceptors wants a fresh one.
type interceptorRegistryHolder struct {
	reg *interceptor.Registry
}

func (h *interceptorRegistryHolder) registry() *interceptor.Registry {
	if h.reg == nil {
		h.reg = &interceptor.Registry{}
	}
	return h.reg
}

// newDisconnectSignal watches a PeerConnection's state and invokes onGone
// exactly once when it transitions to Disconnected, Failed or Closed, following
// the teacher's peer-scoped disconnect-signal pattern.
func newDisconnectSignal(pc *webrtc.PeerConnection, onGone func()) <-chan struct{} {
	done := make(chan struct{})
	var once sync.Once

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			once.Do(func() {
				onGone()
				close(done)
			})
		}
	})
	return done
}
