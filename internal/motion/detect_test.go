package motion

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// blankGray returns a black w x h single-channel Mat.
func blankGray(w, h int) gocv.Mat {
	return gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
}

// withSquare draws a filled white square of the given side length at the
// origin onto a copy of base.
func withSquare(base gocv.Mat, side int) gocv.Mat {
	out := base.Clone()
	gocv.Rectangle(&out, image.Rect(0, 0, side, side), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return out
}

// TestThresholdGate exercises scenario "Threshold gate" at the level of the
// detect() primitive: a changed region below min_threshold_size must not
// trigger, and a larger one crossing the threshold must.
func TestThresholdGate(t *testing.T) {
	w, h := 200, 200
	previous := blankGray(w, h)
	defer previous.Close()

	// A 10x10 changed region (area ~100) against a threshold of 200: no trigger.
	small := withSquare(previous, 10)
	defer small.Close()

	res, err := detect(previous, small, 200)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.triggered {
		t.Fatalf("10x10 region (area ~100) must not trigger threshold=200")
	}

	// A 30x30 changed region (area ~900) against the same threshold: triggers.
	large := withSquare(previous, 30)
	defer large.Close()

	res, err = detect(previous, large, 200)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !res.triggered {
		t.Fatalf("30x30 region (area ~900) must trigger threshold=200")
	}
}

// TestDetectNoChangeNoTrigger verifies that comparing a frame to itself
// never reports motion, regardless of threshold.
func TestDetectNoChangeNoTrigger(t *testing.T) {
	m := blankGray(100, 100)
	defer m.Close()

	res, err := detect(m, m, 1)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.triggered {
		t.Fatalf("identical frames must never trigger motion")
	}
}
