package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/watchcam/watchcam/internal/livetrack"
)

func newTestServer(t *testing.T) (*httptest.Server, *livetrack.LiveTrack, string) {
	t.Helper()
	track, err := livetrack.New("front-door")
	if err != nil {
		t.Fatalf("livetrack.New: %v", err)
	}
	storageDir := t.TempDir()
	srv := New(map[string]*livetrack.LiveTrack{"front-door": track}, storageDir, t.TempDir())
	return httptest.NewServer(srv.Router()), track, storageDir
}

// TestOfferUnknownLabelReturns404 verifies half of property 6: an unknown
// camera label returns 404 without attempting negotiation.
func TestOfferUnknownLabelReturns404(t *testing.T) {
	ts, _, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/streams/nonexistent", "application/octet-stream", strings.NewReader("bm90aGluZw=="))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

// TestOfferRoundTrip verifies property 6: a well-formed base64 SDP offer
// against a known label returns 200 and a base64 answer parseable as a
// session description.
func TestOfferRoundTrip(t *testing.T) {
	ts, _, _ := newTestServer(t)
	defer ts.Close()

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("client NewPeerConnection: %v", err)
	}
	defer client.Close()

	if _, err := client.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		t.Fatalf("AddTransceiverFromKind: %v", err)
	}

	offer, err := client.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(client)
	if err := client.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}
	<-gatherComplete

	raw, err := json.Marshal(client.LocalDescription())
	if err != nil {
		t.Fatalf("marshal offer: %v", err)
	}
	body := base64.StdEncoding.EncodeToString(raw)

	resp, err := http.Post(ts.URL+"/api/streams/front-door", "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, data)
	}

	answerB64, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read answer: %v", err)
	}
	answerJSON, err := base64.StdEncoding.DecodeString(string(answerB64))
	if err != nil {
		t.Fatalf("decode answer base64: %v", err)
	}
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(answerJSON, &answer); err != nil {
		t.Fatalf("unmarshal answer: %v", err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("answer.Type = %v, want answer", answer.Type)
	}
}

func TestListStreamsIncludesConfiguredLabel(t *testing.T) {
	ts, _, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/streams")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var labels []string
	if err := json.NewDecoder(resp.Body).Decode(&labels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(labels) != 1 || labels[0] != "front-door" {
		t.Fatalf("labels = %v, want [front-door]", labels)
	}
}

// TestListVideosReturnsFileNamesMatchingLabel verifies spec.md §6:
// GET /api/videos/{label} returns [{file_name}] for every file in
// storage.path whose basename contains label, and excludes others.
func TestListVideosReturnsFileNamesMatchingLabel(t *testing.T) {
	ts, _, storageDir := newTestServer(t)
	defer ts.Close()

	matching := "front-door-2024-01-02T03:04:05+00:00.mkv"
	other := "back-yard-2024-01-02T03:04:05+00:00.mkv"
	for _, name := range []string{matching, other} {
		if err := os.WriteFile(filepath.Join(storageDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}

	resp, err := http.Get(ts.URL + "/api/videos/front-door")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var files []struct {
		FileName string `json:"file_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(files) != 1 || files[0].FileName != matching {
		t.Fatalf("files = %+v, want [{%s}]", files, matching)
	}
}
