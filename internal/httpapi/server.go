// Package httpapi implements the thin REST/WebRTC adapter from spec.md
// §4.4/§6: stream negotiation, recorded-clip access, and the static
// front-end, all routed with gorilla/mux.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pion/webrtc/v4"

	"github.com/watchcam/watchcam/internal/livetrack"
	"github.com/watchcam/watchcam/internal/logging"
)

// videoFile is one entry of the GET /api/videos/{label} response, matching
// spec.md §6's `[{file_name}]` shape.
type videoFile struct {
	FileName string `json:"file_name"`
}

// Server is the HTTP adapter owning camera_label -> LiveTrack and
// exposing the REST surface spec.md §6 describes.
type Server struct {
	tracks     map[string]*livetrack.LiveTrack
	storageDir string
	webRoot    string
	log        *slog.Logger
}

// New builds a Server for the given camera_label -> LiveTrack map.
// storageDir is the directory recordings are written to and scanned from
// for the video-listing endpoints (watchcamd passes storage.path for local
// storage, /tmp otherwise); webRoot is the directory served for every
// other path.
func New(tracks map[string]*livetrack.LiveTrack, storageDir, webRoot string) *Server {
	return &Server{tracks: tracks, storageDir: storageDir, webRoot: webRoot, log: logging.L("httpapi")}
}

// Router builds the gorilla/mux router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/videos/{label}", s.handleListVideos).Methods(http.MethodGet)
	r.HandleFunc("/api/videos/{label}/{video}", s.handleGetVideo).Methods(http.MethodGet)
	r.HandleFunc("/api/streams", s.handleListStreams).Methods(http.MethodGet)
	r.HandleFunc("/api/streams/{label}", s.handleOffer).Methods(http.MethodPost)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.webRoot)))
	return r
}

// handleListVideos implements spec.md §6's `GET /api/videos/{label}`:
// scan storage.path and return every file whose basename contains label,
// mirroring the original's LocalVideoRepository.list_files_by_label.
func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["label"]

	entries, err := os.ReadDir(s.storageDir)
	if err != nil {
		s.log.Error("list videos failed", "label", label, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	files := make([]videoFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), label) {
			continue
		}
		files = append(files, videoFile{FileName: e.Name()})
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	label, video := vars["label"], vars["video"]

	if !strings.Contains(video, label) {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.storageDir, video)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	labels := make([]string, 0, len(s.tracks))
	for label := range s.tracks {
		labels = append(labels, label)
	}
	writeJSON(w, http.StatusOK, labels)
}

// handleOffer implements spec.md §4.4's negotiation sequence: look up the
// track by label (404 if absent), decode the base64 SDP offer, build a
// PeerConnection with the track attached, answer, wait for non-trickle
// ICE gathering to complete, and return the base64 answer.
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["label"]
	track, ok := s.tracks[label]
	if !ok {
		http.NotFound(w, r)
		return
	}

	offer, err := decodeOfferBody(r)
	if err != nil {
		http.Error(w, "invalid offer: "+err.Error(), http.StatusBadRequest)
		return
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		http.Error(w, "media engine init failed", http.StatusInternalServerError)
		return
	}
	i := &interceptorRegistryHolder{}
	if err := webrtc.RegisterDefaultInterceptors(m, i.registry()); err != nil {
		http.Error(w, "interceptor registration failed", http.StatusInternalServerError)
		return
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i.registry()))

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		http.Error(w, "peer connection failed", http.StatusInternalServerError)
		return
	}

	sender, err := pc.AddTrack(track.Track())
	if err != nil {
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	gone := newDisconnectSignal(pc, func() {
		track.Unbind()
	})
	go func() {
		<-gone
		_ = pc.RemoveTrack(sender)
		_ = pc.Close()
	}()

	if err := pc.SetRemoteDescription(offer); err != nil {
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}
	<-gatherComplete

	track.Bind()

	encoded, err := encodeAnswerBody(pc.LocalDescription())
	if err != nil {
		http.Error(w, "encode answer failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(encoded))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
