// Package memory is the local key-value snapshot store: string keys to JSON
// blobs, held in memory and optionally mirrored to one file per key.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Store struct {
	mu   sync.Mutex
	dir  string
	data map[string][]byte
}

// New returns a purely in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// NewFromDir returns a store that persists every key under dir. Existing
// blobs are loaded lazily on first Get.
func NewFromDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir, data: make(map[string][]byte)}, nil
}

// Get returns the blob stored at key. A missing key is reported with
// ok=false and no error.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.data[key]; ok {
		return append([]byte(nil), v...), true, nil
	}
	if s.dir == "" {
		return nil, false, nil
	}
	v, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	s.data[key] = v
	return append([]byte(nil), v...), true, nil
}

// Set replaces the blob at key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := append([]byte(nil), value...)
	if s.dir != "" {
		tmp := s.path(key) + ".tmp"
		if err := os.WriteFile(tmp, v, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
		if err := os.Rename(tmp, s.path(key)); err != nil {
			return fmt.Errorf("commit %s: %w", key, err)
		}
	}
	s.data[key] = v
	return nil
}

// Keys lists the keys currently cached in memory.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

// SeedCategories reads extra category names from seed_categories.txt in
// base, one per line. Blank lines and # comments are skipped.
func SeedCategories(base string) []string {
	return readLines(filepath.Join(base, "seed_categories.txt"))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
