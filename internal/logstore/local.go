package logstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gazette/internal/core"
)

// localStore is the fallback backend used when no remote store is
// reachable at startup: entries live in memory, capped at maxLogs, and are
// flushed to a JSON-lines file after every append so a restart can recover
// the trailing window.
type localStore struct {
	mu      sync.Mutex
	path    string
	maxLogs int
	entries []core.LogEntry
}

// openLocal loads any existing entries from path (if present) and returns a
// store ready to append to it.
func openLocal(path string, maxLogs int) (*localStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logstore: create log dir: %w", err)
	}

	s := &localStore{path: path, maxLogs: maxLogs}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *localStore) load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("logstore: open log file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry core.LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		s.entries = append(s.entries, entry)
	}
	if len(s.entries) > s.maxLogs {
		s.entries = s.entries[len(s.entries)-s.maxLogs:]
	}
	return scanner.Err()
}

func (s *localStore) Append(ctx context.Context, entry core.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if len(s.entries) > s.maxLogs {
		s.entries = s.entries[len(s.entries)-s.maxLogs:]
	}
	return s.flushLocked()
}

// flushLocked rewrites the whole file; acceptable for a bounded, capped
// log window rather than an unbounded append-only one.
func (s *localStore) flushLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("logstore: create temp log file: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, entry := range s.entries {
		if err := enc.Encode(entry); err != nil {
			f.Close()
			return fmt.Errorf("logstore: encode entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("logstore: flush log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("logstore: close log file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *localStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.LogEntry
	for _, entry := range s.entries {
		if sessionID != "" && entry.SessionID != sessionID {
			continue
		}
		out = append(out, entry)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *localStore) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	dropped := 0
	for _, entry := range s.entries {
		if sessionID == "" || entry.SessionID == sessionID {
			dropped++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	if dropped == 0 {
		return 0, nil
	}
	return dropped, s.flushLocked()
}

func (s *localStore) Close() error {
	return nil
}
