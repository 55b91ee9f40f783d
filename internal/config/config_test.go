package config

import "testing"

// TestConfigDefaults verifies the "Config defaults" scenario: missing
// display.enabled defaults to true, missing cloud.enabled defaults to
// false (uploads disabled).
func TestConfigDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.Display.Enabled {
		t.Fatalf("Display.Enabled = false, want true (default)")
	}
	if cfg.Cloud.Enabled {
		t.Fatalf("Cloud.Enabled = true, want false (default)")
	}
}

func TestValidateRejectsEmptyCameras(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() with no cameras: want error, got nil")
	}
}

func TestValidateRejectsCloudEnabledWithoutBucket(t *testing.T) {
	cfg := Default()
	cfg.Cameras = []Camera{{Label: "front", CameraType: CameraTypeRTSP, Source: "rtsp://x"}}
	cfg.Cloud.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() with cloud enabled, no bucket: want error, got nil")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := Default()
	cfg.Cameras = []Camera{{Label: "front", CameraType: CameraTypeV4L, Source: "/dev/video0"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}
