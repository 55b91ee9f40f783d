package ptsclock

import (
	"testing"
	"time"
)

func TestFirstFrameHasZeroPTSAndDuration(t *testing.T) {
	var s Scheduler
	pts, dur := s.Next(time.Now(), 15)
	if pts != 0 || dur != 0 {
		t.Fatalf("first frame: got pts=%d dur=%d, want 0,0", pts, dur)
	}
}

// TestPTSMonotonicity verifies property 4: for a non-decreasing timestamp
// stream, PTS is strictly non-decreasing and equals the cumulative
// round(delta_ms * fps / 1000).
func TestPTSMonotonicity(t *testing.T) {
	const fps = 30
	var s Scheduler
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	deltasMs := []int64{0, 33, 33, 34, 100, 16, 500}
	var cumulative int64
	var lastPTS int64 = -1
	ts := base

	for i, d := range deltasMs {
		ts = ts.Add(time.Duration(d) * time.Millisecond)
		pts, dur := s.Next(ts, fps)

		if i == 0 {
			if pts != 0 {
				t.Fatalf("first call: pts=%d, want 0", pts)
			}
		} else {
			cumulative += roundDiv(d*fps, 1000)
			if pts != cumulative {
				t.Fatalf("step %d: pts=%d, want cumulative=%d", i, pts, cumulative)
			}
			if dur != d {
				t.Fatalf("step %d: duration=%d, want %d", i, dur, d)
			}
		}
		if pts < lastPTS {
			t.Fatalf("step %d: pts=%d decreased from %d", i, pts, lastPTS)
		}
		lastPTS = pts
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct{ num, den, want int64 }{
		{0, 1000, 0},
		{500, 1000, 1},   // round(0.5) = 1 (round half away from zero)
		{499, 1000, 0},
		{1500, 1000, 2},
		{-500, 1000, -1},
	}
	for _, c := range cases {
		if got := roundDiv(c.num, c.den); got != c.want {
			t.Fatalf("roundDiv(%d,%d) = %d, want %d", c.num, c.den, got, c.want)
		}
	}
}
