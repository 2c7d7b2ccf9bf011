package voice

import (
	"testing"
	"time"
)

func TestCaptureKeepsFinalSegmentsOnly(t *testing.T) {
	c := NewCapture(time.Second)
	segs := make(chan Segment, 4)
	segs <- Segment{Text: "paid  500", Final: true}
	segs <- Segment{Text: "for lun", Final: false}
	segs <- Segment{Text: "for lunch", Final: true}
	segs <- Segment{Text: "   ", Final: true}
	close(segs)

	if got := c.Run(segs); got != "paid 500 for lunch" {
		t.Errorf("Run() = %q", got)
	}
}

func TestCaptureStopReturnsTextSoFar(t *testing.T) {
	c := NewCapture(time.Second)
	segs := make(chan Segment)
	done := make(chan string)
	go func() { done <- c.Run(segs) }()

	segs <- Segment{Text: "coffee 120", Final: true}
	c.Stop()
	c.Stop()

	select {
	case got := <-done:
		if got != "coffee 120" {
			t.Errorf("Run() = %q, want %q", got, "coffee 120")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestCaptureStopsAtLimit(t *testing.T) {
	c := NewCapture(20 * time.Millisecond)
	segs := make(chan Segment)

	start := time.Now()
	if got := c.Run(segs); got != "" {
		t.Errorf("Run() = %q, want empty", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("capture ran for %v", elapsed)
	}
}

func TestNewCaptureCapsLimit(t *testing.T) {
	if c := NewCapture(time.Hour); c.limit != MaxCaptureDuration {
		t.Errorf("limit = %v, want %v", c.limit, MaxCaptureDuration)
	}
	if c := NewCapture(0); c.limit != MaxCaptureDuration {
		t.Errorf("limit = %v, want %v", c.limit, MaxCaptureDuration)
	}
}
