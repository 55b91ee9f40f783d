// Package config loads the once-at-startup, immutable watchcamd configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// CameraType identifies how a camera's source is opened.
type CameraType string

const (
	CameraTypeRTSP CameraType = "rtsp"
	CameraTypeV4L  CameraType = "v4l"
)

// StorageKind identifies where recorded files are kept.
type StorageKind string

const (
	StorageLocal StorageKind = "local"
	StorageS3    StorageKind = "s3"
)

// VideoFileType is the configured container format.
type VideoFileType string

const (
	VideoFileMatroska VideoFileType = "matroska"
	VideoFileMP4      VideoFileType = "mp4"
	VideoFileWebM     VideoFileType = "webm"
)

// Camera describes one configured camera.
type Camera struct {
	Label      string     `mapstructure:"label"`
	CameraType CameraType `mapstructure:"camera_type"`
	Source     string     `mapstructure:"source"`
}

// Cloud controls object-store upload of recorded files.
type Cloud struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Region  string `mapstructure:"region"`
}

// Motion controls detection sensitivity and annotation.
type Motion struct {
	MinThresholdSize int  `mapstructure:"min_threshold_size"`
	DrawContours     bool `mapstructure:"draw_contours"`
	DrawRectangles   bool `mapstructure:"draw_rectangles"`
}

// Display controls the live-stream + HTTP server.
type Display struct {
	Enabled bool `mapstructure:"enabled"`
}

// Storage controls where recorded files are written and in what container.
type Storage struct {
	StorageType   StorageKind   `mapstructure:"storage_type"`
	Path          string        `mapstructure:"path"`
	VideoFileType VideoFileType `mapstructure:"video_file_type"`
}

// Config is the top-level, read-only settings object.
type Config struct {
	Cameras     []Camera `mapstructure:"cameras"`
	Cloud       Cloud    `mapstructure:"cloud"`
	Motion      Motion   `mapstructure:"motion"`
	Display     Display  `mapstructure:"display"`
	Storage     Storage  `mapstructure:"storage"`
	LogLevel    string   `mapstructure:"log_level"`
	FFmpegLevel string   `mapstructure:"ffmpeg_level"`
}

// FPS is the fixed encoder/recording frame rate. It is not part of the
// configured schema in spec.md's external-interfaces section, so it is kept
// as a package constant rather than a tunable, matching the warm-up-count
// precedent in spec.md §9.
const FPS = 15

// Default returns a Config seeded with the defaults spec.md §6/§8 require:
// display enabled, cloud upload disabled.
func Default() *Config {
	return &Config{
		Display: Display{Enabled: true},
		Cloud:   Cloud{Enabled: false},
		Storage: Storage{
			StorageType:   StorageLocal,
			Path:          "/tmp",
			VideoFileType: VideoFileMatroska,
		},
		LogLevel:    "info",
		FFmpegLevel: "warn",
	}
}

// Load reads settings.toml (or the file at path, if non-empty) into a fresh Config.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot possibly run.
func (c *Config) Validate() error {
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera must be configured")
	}
	for _, cam := range c.Cameras {
		if cam.Label == "" {
			return fmt.Errorf("camera entry missing label")
		}
		switch cam.CameraType {
		case CameraTypeRTSP, CameraTypeV4L:
		default:
			return fmt.Errorf("camera %q: unknown camera_type %q", cam.Label, cam.CameraType)
		}
		if cam.Source == "" {
			return fmt.Errorf("camera %q: source is required", cam.Label)
		}
	}
	if c.Storage.StorageType != StorageLocal && c.Storage.StorageType != StorageS3 {
		return fmt.Errorf("unknown storage_type %q", c.Storage.StorageType)
	}
	switch c.Storage.VideoFileType {
	case VideoFileMatroska, VideoFileMP4, VideoFileWebM:
	default:
		return fmt.Errorf("unknown video_file_type %q", c.Storage.VideoFileType)
	}
	if c.Cloud.Enabled && c.Cloud.Bucket == "" {
		return fmt.Errorf("cloud.enabled requires cloud.bucket")
	}
	return nil
}
