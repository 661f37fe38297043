package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/termgpt/termgpt/pkg/store"
)

// Store implements store.Store on a single JSONL file. The file handle is
// held open for the life of the session; writes go through O_APPEND so
// every Append is one line at the end of the file.
type Store struct {
	mu   sync.Mutex
	id   string
	path string
	f    *os.File
}

func (s *Store) ID() string   { return s.id }
func (s *Store) Path() string { return s.path }

// Append marshals m and writes it as one line. The message is durable when
// Append returns nil.
func (s *Store) Append(m store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return fmt.Errorf("transcript %s: store closed", s.id)
	}

	if m.TS.IsZero() {
		m.TS = time.Now().UTC()
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("transcript %s: marshal record: %w", s.id, err)
	}
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("transcript %s: write record: %w", s.id, err)
	}
	return nil
}

// Load scans the file from the start and returns every parseable record in
// order. Blank lines and lines that fail to decode are skipped with a
// warning so one corrupt record never loses the whole transcript.
func (s *Store) Load() ([]store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil, fmt.Errorf("transcript %s: store closed", s.id)
	}

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("transcript %s: seek: %w", s.id, err)
	}

	var msgs []store.Message
	scanner := bufio.NewScanner(s.f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var m store.Message
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			slog.Warn("Skipping malformed transcript record", "session", s.id, "line", line, "error", err)
			continue
		}
		if !m.Role.Known() {
			slog.Warn("Transcript record has unknown role", "session", s.id, "line", line, "role", m.Role)
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return msgs, fmt.Errorf("transcript %s: scan: %w", s.id, err)
	}
	return msgs, nil
}

// Delete closes the handle and removes the file. A missing file counts as
// success so delete is idempotent.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f != nil {
		s.f.Close()
		s.f = nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transcript %s: delete: %w", s.id, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
