// Package session holds the per-user state the API server keeps between
// requests: which ledger the user works against and the extractor whose
// LLM quota is keyed by user id.
// A session is opened explicitly and torn down explicitly; nothing here is
// package-level state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
	"spendigo/internal/voice"
)

// ErrEmptyTranscript is returned when a capture ends without any final text.
var ErrEmptyTranscript = errors.New("no speech captured")

// Session is one user's working context.
type Session struct {
	UserID   string
	OpenedAt time.Time

	ledger    ledger.Ledger
	extractor *voice.Extractor
}

// Ledger returns the ledger the session operates on.
func (s *Session) Ledger() ledger.Ledger { return s.ledger }

// Extract turns text into a draft using the user's active sources for
// source detection. It never fails on LLM problems; only a failure to
// read the registry is returned.
func (s *Session) Extract(ctx context.Context, text string) (voice.Extraction, error) {
	sources, err := s.ledger.ListActiveSources(ctx, s.UserID)
	if err != nil {
		return voice.Extraction{}, fmt.Errorf("load sources: %w", err)
	}
	return s.extractor.Extract(ctx, s.UserID, text, sources), nil
}

// Dictate runs capture over segments and extracts from whatever final text
// was captured, including when the capture was stopped early. The
// extraction does not observe the capture's stop.
func (s *Session) Dictate(ctx context.Context, capture *voice.Capture, segments <-chan voice.Segment) (voice.Extraction, error) {
	text := capture.Run(segments)
	if text == "" {
		return voice.Extraction{}, ErrEmptyTranscript
	}
	return s.Extract(ctx, text)
}

// Manager opens and closes sessions. The zero value is not usable.
type Manager struct {
	ledger    ledger.Ledger
	extractor *voice.Extractor
	logger    *log.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(l ledger.Ledger, extractor *voice.Extractor, logger *log.Logger, now func() time.Time) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		ledger:    l,
		extractor: extractor,
		logger:    logger.WithComponent(log.ComponentSession),
		now:       now,
		sessions:  make(map[string]*Session),
	}
}

// Open returns the user's session, creating it on first use. Creating a
// session seeds the default sources for a user who has none.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, core.ErrNoUser
	}

	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	if _, err := m.ledger.EnsureDefaultSources(ctx, userID); err != nil {
		return nil, fmt.Errorf("seed default sources: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	s := &Session{
		UserID:    userID,
		OpenedAt:  m.now(),
		ledger:    m.ledger,
		extractor: m.extractor,
	}
	m.sessions[userID] = s
	metrics.ActiveSessions.Inc()
	m.logger.InfoContext(ctx, "Session opened", log.FieldUserID, userID)
	return s, nil
}

// Close tears down the user's session. It reports whether one was open.
// The user's LLM quota window is left to expire on its own.
func (m *Manager) Close(userID string) bool {
	m.mu.Lock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	metrics.ActiveSessions.Dec()
	m.logger.Info("Session closed", log.FieldUserID, userID)
	return true
}

// CloseAll tears down every session; used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
