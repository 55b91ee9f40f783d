package motion

import (
	"testing"
	"time"
)

func TestStateIdleToActiveOnTrigger(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ev := s.step(base, true)
	if ev != eventStart {
		t.Fatalf("want eventStart, got %v", ev)
	}
	if !s.InMotion || !s.InMotionWindow {
		t.Fatalf("expected in_motion and in_motion_window true after start, got %+v", s)
	}
	if !s.LastMotionTime.Equal(base) {
		t.Fatalf("last_motion_time = %v, want %v", s.LastMotionTime, base)
	}
}

func TestStateIdleNoTriggerStaysIdle(t *testing.T) {
	s := NewState()
	ev := s.step(time.Now(), false)
	if ev != eventNone {
		t.Fatalf("want eventNone, got %v", ev)
	}
	if s.InMotion || s.InMotionWindow {
		t.Fatalf("expected to remain idle, got %+v", s)
	}
}

// TestHysteresisClosure verifies property 2: if no triggering contour occurs
// for any frame whose timestamp is >= last_motion_time + 10s, the episode
// closes on the next frame satisfying that inequality, and not before.
func TestHysteresisClosure(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if ev := s.step(base, true); ev != eventStart {
		t.Fatalf("setup: want eventStart, got %v", ev)
	}

	// Frames inside the 10s window with no trigger must stay "mid".
	for i := 1; i <= 9; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		if ev := s.step(ts, false); ev != eventMid {
			t.Fatalf("frame at +%ds: want eventMid, got %v", i, ev)
		}
	}

	// The first frame at or past last_motion_time+10s must close the episode.
	closing := base.Add(10 * time.Second)
	if ev := s.step(closing, false); ev != eventEnd {
		t.Fatalf("frame at +10s: want eventEnd, got %v", ev)
	}
	if s.InMotion || s.InMotionWindow {
		t.Fatalf("expected idle after close, got %+v", s)
	}
}

// TestActiveTriggerEmitsMidAndRefreshesLastMotionTime verifies that a
// triggering frame during an already-active episode emits a mid frame
// (the episode must contain the frames that are actually moving, not
// just the start frame and the trailing stills) while still refreshing
// last_motion_time.
func TestActiveTriggerEmitsMidAndRefreshesLastMotionTime(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.step(base, true)

	refreshed := base.Add(5 * time.Second)
	if ev := s.step(refreshed, true); ev != eventMid {
		t.Fatalf("active+trigger: want eventMid, got %v", ev)
	}
	if !s.LastMotionTime.Equal(refreshed) {
		t.Fatalf("last_motion_time not refreshed: got %v, want %v", s.LastMotionTime, refreshed)
	}

	// Hysteresis window now counts from the refreshed time, not the
	// original trigger.
	stillOpen := refreshed.Add(9 * time.Second)
	if ev := s.step(stillOpen, false); ev != eventMid {
		t.Fatalf("want eventMid (window extended), got %v", ev)
	}
}

// TestEpisodeWellFormedness drives the state machine across a mixed trace
// and checks property 1: the emitted events partition into episodes with
// exactly one start (first) and one end (last), nothing else between.
func TestEpisodeWellFormedness(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	type step struct {
		offset    time.Duration
		triggered bool
	}
	trace := []step{
		{0, true},                     // start
		{500 * time.Millisecond, false},
		{1 * time.Second, false},
		{11 * time.Second, false}, // closes (>= last(0s)+10s)
		{12 * time.Second, true},  // new episode starts
		{22 * time.Second, false}, // closes (>= last(12s)+10s)
	}

	var events []event
	for _, st := range trace {
		events = append(events, s.step(base.Add(st.offset), st.triggered))
	}

	want := []event{eventStart, eventMid, eventMid, eventEnd, eventStart, eventEnd}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v", i, events[i], want[i])
		}
	}
}
