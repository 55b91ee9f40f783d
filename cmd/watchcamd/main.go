// Command watchcamd is the multi-camera motion recorder and live
// streamer's entrypoint: a single cobra root command that loads config,
// brings up one camera.Supervisor per configured camera plus the HTTP
// adapter, and blocks on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/asticode/go-astiav"
	"github.com/spf13/cobra"

	"github.com/watchcam/watchcam/internal/camera"
	"github.com/watchcam/watchcam/internal/config"
	"github.com/watchcam/watchcam/internal/httpapi"
	"github.com/watchcam/watchcam/internal/livetrack"
	"github.com/watchcam/watchcam/internal/logging"
	"github.com/watchcam/watchcam/internal/store"
	"github.com/watchcam/watchcam/internal/upload"
	"github.com/watchcam/watchcam/internal/writer"
)

const version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "watchcamd",
	Short: "Multi-camera motion recorder and live streamer",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start capture, motion detection, recording, and live streaming for every configured camera",
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("watchcamd v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./settings.toml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func ffmpegLogLevel(level string) astiav.LogLevel {
	switch level {
	case "quiet":
		return astiav.LogLevelQuiet
	case "error":
		return astiav.LogLevelError
	case "warn", "warning":
		return astiav.LogLevelWarning
	case "info":
		return astiav.LogLevelInfo
	case "debug":
		return astiav.LogLevelDebug
	default:
		return astiav.LogLevelWarning
	}
}

func run() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("watchcamd: load config: %w", err)
	}

	logging.Init(cfg.LogLevel)
	log := logging.L("main")
	astiav.SetLogLevel(ffmpegLogLevel(cfg.FFmpegLevel))

	storageDir := cfg.Storage.Path
	if storageDir == "" {
		storageDir = "/tmp"
	}
	// videoDir is where recorded files actually land: storage.path for
	// local storage, /tmp otherwise, matching writer.Writer.filePath.
	videoDir := "/tmp"
	if cfg.Storage.StorageType == config.StorageLocal && cfg.Storage.Path != "" {
		videoDir = cfg.Storage.Path
	}
	repo, err := store.Open(filepath.Join(storageDir, "watchcam.db"))
	if err != nil {
		log.Warn("video store unavailable, recordings will not be indexed", "err", err)
		repo = nil
	}

	var uploader *upload.Client
	if cfg.Cloud.Enabled {
		uploader, err = upload.New(context.Background(), cfg.Cloud)
		if err != nil {
			return fmt.Errorf("watchcamd: cloud upload init: %w", err)
		}
	}

	tracks := make(map[string]*livetrack.LiveTrack, len(cfg.Cameras))
	supervisors := make([]*camera.Supervisor, 0, len(cfg.Cameras))

	for _, camCfg := range cfg.Cameras {
		var wrUploader writer.Uploader
		var wrStore writer.Store
		if uploader != nil {
			wrUploader = uploader
		}
		if repo != nil {
			wrStore = repo
		}
		wr := writer.New(camCfg.Label, cfg.Storage, cfg.Cloud, config.FPS, wrUploader, wrStore)

		sup, err := camera.New(camCfg, cfg, wr)
		if err != nil {
			log.Error("camera init failed, skipping", "label", camCfg.Label, "err", err)
			continue
		}
		tracks[camCfg.Label] = sup.LiveTrack
		supervisors = append(supervisors, sup)
	}

	if len(supervisors) == 0 {
		return fmt.Errorf("watchcamd: no camera could be initialized")
	}

	for _, sup := range supervisors {
		sup.Start()
	}
	log.Info("all cameras started", "count", len(supervisors))

	if cfg.Display.Enabled {
		srv := httpapi.New(tracks, videoDir, "./web")
		httpSrv := &http.Server{Addr: ":8080", Handler: srv.Router()}
		go func() {
			log.Info("http server listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server failed", "err", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	return nil
}
