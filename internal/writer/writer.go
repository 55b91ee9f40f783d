// Package writer implements the per-episode file writer from spec.md
// §4.3: the motion detector lazily spawns one writer per motion episode,
// feeding it frames until the episode's closing frame, at which point the
// writer finalizes the container, hands the file off for optional cloud
// upload, and records it in the video store.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/watchcam/watchcam/internal/config"
	"github.com/watchcam/watchcam/internal/encode"
	"github.com/watchcam/watchcam/internal/frame"
	"github.com/watchcam/watchcam/internal/logging"
	"github.com/watchcam/watchcam/internal/ptsclock"
)

// Uploader ships a finished recording to cloud storage. Implemented by
// internal/upload.Client.
type Uploader interface {
	Upload(ctx context.Context, label, path string) error
}

// Store persists a record of every finished recording. Implemented by
// internal/store.Repository.
type Store interface {
	Insert(label, path string, storageKind config.StorageKind, startTime time.Time, durationMs int64) error
}

// Writer owns the storage and cloud config for one camera; it spawns a
// fresh worker goroutine for each motion episode.
type Writer struct {
	label   string
	storage config.Storage
	cloud   config.Cloud
	fps     int

	uploader Uploader
	store    Store

	log *slog.Logger
}

// New builds a Writer for one camera. uploader and store may be nil,
// matching "cloud disabled" / "no persistence configured".
func New(label string, storage config.Storage, cloud config.Cloud, fps int, uploader Uploader, store Store) *Writer {
	return &Writer{
		label:    label,
		storage:  storage,
		cloud:    cloud,
		fps:      fps,
		uploader: uploader,
		store:    store,
		log:      logging.L("writer." + label),
	}
}

func (w *Writer) muxerAndExt() (muxer, ext string) {
	switch w.storage.VideoFileType {
	case config.VideoFileMP4:
		return "mp4", "mp4"
	case config.VideoFileWebM:
		return "webm", "webm"
	default:
		return "matroska", "mkv"
	}
}

func (w *Writer) filePath(startTime time.Time) string {
	dir := "/tmp"
	if w.storage.StorageType == config.StorageLocal && w.storage.Path != "" {
		dir = w.storage.Path
	}
	_, ext := w.muxerAndExt()
	name := fmt.Sprintf("%s-%s.%s", w.label, startTime.UTC().Format("2006-01-02T15:04:05-07:00"), ext)
	return filepath.Join(dir, name)
}

// Spawn opens a fresh episode channel and starts its writer goroutine,
// matching motion.WriterSpawner.
func (w *Writer) Spawn(startTime time.Time, width, height int) chan<- *frame.EpisodeFrame {
	ch := make(chan *frame.EpisodeFrame, 4)
	go w.run(ch, startTime, width, height)
	return ch
}

func (w *Writer) run(in <-chan *frame.EpisodeFrame, startTime time.Time, width, height int) {
	path := w.filePath(startTime)
	muxer, _ := w.muxerAndExt()

	oc, err := astiav.AllocOutputFormatContext(nil, muxer, path)
	if err != nil || oc == nil {
		w.log.Error("alloc output format context failed", "err", err, "path", path)
		w.drain(in)
		return
	}
	defer oc.Free()

	globalHeader := oc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalHeader)

	proc, err := encode.NewVideoProc(width, height, w.fps, globalHeader)
	if err != nil {
		w.log.Error("video encoder init failed", "err", err)
		w.drain(in)
		return
	}
	defer proc.Close()

	stream := oc.NewStream(nil)
	if stream == nil {
		w.log.Error("new stream failed")
		w.drain(in)
		return
	}
	if err := proc.CodecContext().ToCodecParameters(stream.CodecParameters()); err != nil {
		w.log.Error("codec parameters copy failed", "err", err)
		w.drain(in)
		return
	}
	stream.SetTimeBase(proc.TimeBase())

	ioFlags := astiav.NewIOContextFlags(astiav.IOContextFlagWrite)
	pb, err := astiav.OpenIOContext(path, ioFlags, nil, nil)
	if err != nil {
		w.log.Error("open io context failed", "err", err, "path", path)
		w.drain(in)
		return
	}
	defer pb.Close()
	oc.SetPb(pb)

	if err := oc.WriteHeader(nil); err != nil {
		w.log.Error("write header failed", "err", err)
		w.drain(in)
		return
	}

	var sched ptsclock.Scheduler
	var sawEnd bool

	writePacket := func(pkt *astiav.Packet) error {
		pkt.SetStreamIndex(stream.Index())
		pkt.RescaleTs(proc.TimeBase(), stream.TimeBase())
		return oc.WriteInterleavedFrame(pkt)
	}

	for ef := range in {
		f := ef.Frame.Frame()
		pts, _ := sched.Next(f.Timestamp, w.fps)

		if err := proc.Encode(f.Pix, pts, writePacket); err != nil {
			w.log.Error("encode failed", "err", err)
		}
		ef.Frame.Release()
		if ef.IsEnd {
			sawEnd = true
			break
		}
	}

	if err := proc.Flush(writePacket); err != nil {
		w.log.Error("flush failed", "err", err)
	}
	if err := oc.WriteTrailer(); err != nil {
		w.log.Error("write trailer failed", "err", err)
	}

	if !sawEnd {
		w.log.Warn("writer channel closed before episode end", "path", path)
	}

	w.log.Info("recording finished", "path", path)
	w.finish(path, startTime)
}

// drain discards remaining episode frames after a setup failure so the
// motion detector's send on a full channel never blocks forever.
func (w *Writer) drain(in <-chan *frame.EpisodeFrame) {
	for ef := range in {
		ef.Frame.Release()
	}
}

func (w *Writer) finish(path string, startTime time.Time) {
	_, err := os.Stat(path)
	durationMs := time.Since(startTime).Milliseconds()

	if w.cloud.Enabled && w.uploader != nil {
		if err := w.uploader.Upload(context.Background(), w.label, path); err != nil {
			w.log.Error("cloud upload failed, keeping local file", "err", err, "path", path)
		} else {
			if err := os.Remove(path); err != nil {
				w.log.Warn("local file cleanup after upload failed", "err", err, "path", path)
			}
			w.log.Info("cloud upload finished", "path", path)
		}
	} else {
		w.log.Info("cloud disabled, keeping local file", "path", path)
	}

	if w.store != nil {
		if err := w.store.Insert(w.label, path, w.storage.StorageType, startTime, durationMs); err != nil {
			w.log.Error("video record insert failed", "err", err)
		}
	}
	if err != nil {
		w.log.Warn("stat finished recording failed", "err", err)
	}
}
