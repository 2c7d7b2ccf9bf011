package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter counts calls per key in fixed windows. A key's window opens on
// its first call and resets fully once Window has elapsed since then, so a
// key never gets more than Requests calls in any one window.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	requests        int
	window          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

type window struct {
	start time.Time
	count int
}

// Config holds rate limiter configuration.
type Config struct {
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
	// Clock is used instead of time.Now when set.
	Clock func() time.Time
}

// DefaultConfig returns the outbound LLM quota: 15 calls per minute.
func DefaultConfig() Config {
	return Config{
		Requests:        15,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// when done with it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.Requests <= 0 {
		config.Requests = def.Requests
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	rl := &Limiter{
		clients:         make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		requests:        config.Requests,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
		now:             config.Clock,
	}
	go rl.startCleanup()
	return rl
}

// Allow records a call for key and reports whether it is within quota.
// Rejected calls are not counted.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[key] = &window{start: now, count: 1}
		return true
	}
	if w.count >= rl.requests {
		return false
	}
	w.count++
	return true
}

// RetryAfter returns how long until key's current window resets. It is zero
// when key has quota left.
func (rl *Limiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[key]
	if !ok || w.count < rl.requests {
		return 0
	}
	left := rl.window - rl.now().Sub(w.start)
	if left < 0 {
		return 0
	}
	return left
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops keys whose window has expired.
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked keys.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop shuts down the cleanup goroutine. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware rejects requests over quota, keyed by extractKey.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)

			if !rl.Allow(key) {
				retry := int(rl.RetryAfter(key).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
