package voice

import (
	"strings"
	"sync"
	"time"
)

// MaxCaptureDuration is how long a capture runs before stopping itself.
const MaxCaptureDuration = 30 * time.Second

// Segment is one piece of transcript emitted by a recogniser. Interim
// segments are revised later and are ignored.
type Segment struct {
	Text  string
	Final bool
}

// Capture accumulates final transcript segments. It ends when the segment
// stream closes, Stop is called, or the time limit passes. Stopping a
// capture affects only the capture; an extraction already started from its
// text runs on its own context.
type Capture struct {
	limit time.Duration
	stop  chan struct{}
	once  sync.Once

	mu    sync.Mutex
	parts []string
}

// NewCapture creates a capture limited to limit, or MaxCaptureDuration when
// limit is not positive.
func NewCapture(limit time.Duration) *Capture {
	if limit <= 0 || limit > MaxCaptureDuration {
		limit = MaxCaptureDuration
	}
	return &Capture{limit: limit, stop: make(chan struct{})}
}

// Stop ends the capture. Safe to call more than once and from any goroutine.
func (c *Capture) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Run consumes segments until the capture ends and returns the text
// captured so far.
func (c *Capture) Run(segments <-chan Segment) string {
	timer := time.NewTimer(c.limit)
	defer timer.Stop()

	for {
		select {
		case seg, ok := <-segments:
			if !ok {
				return c.Text()
			}
			c.add(seg)
		case <-c.stop:
			return c.Text()
		case <-timer.C:
			c.Stop()
			return c.Text()
		}
	}
}

// Text returns the final segments captured so far, joined by single spaces.
func (c *Capture) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.parts, " ")
}

func (c *Capture) add(seg Segment) {
	if !seg.Final {
		return
	}
	text := strings.Join(strings.Fields(seg.Text), " ")
	if text == "" {
		return
	}
	c.mu.Lock()
	c.parts = append(c.parts, text)
	c.mu.Unlock()
}
