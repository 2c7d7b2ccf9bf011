// Package cache holds the generic TTL LRU used by the mirror worker to
// remember what it last wrote for each user.
package cache

import (
	"sync"
	"time"

	"spendigo/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Size() int
}

var _ Cache[string] = (*LRUCache[string])(nil)

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans every registered cache.
type Manager struct {
	logger  *log.Logger
	caches  []Cleaner
	stop    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a cache; call before StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanNow()
		case <-m.stop:
			return
		}
	}
}

// CleanNow runs one cleanup pass and returns the number of entries dropped.
func (m *Manager) CleanNow() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	if total > 0 {
		m.logger.Debug("Cleaned expired cache entries", "removed", total)
	}
	return total
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.stop)
		if m.started {
			<-m.done
		}
	})
}
