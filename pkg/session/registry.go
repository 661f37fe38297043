package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/termgpt/termgpt/pkg/store"
)

// Settle is the terminal outcome of one request, delivered back onto the
// update loop by the coordinator. Exactly one of Reply/Failure is set.
type Settle struct {
	SessionID string
	RequestID string
	Reply     string
	Failure   string
}

// Registry owns the set of open sessions, tab order, and the active id.
// Invariant: after every operation either at least one session exists or a
// fresh default has been synthesized, so the UI never renders zero tabs.
type Registry struct {
	mu       sync.Mutex
	dir      store.Dir
	sessions map[string]*Session
	order    []string
	activeID string
	nextSeq  int

	warnings chan string
}

func New(dir store.Dir) *Registry {
	return &Registry{
		dir:      dir,
		sessions: make(map[string]*Session),
		nextSeq:  1,
		warnings: make(chan string, 8),
	}
}

// Warnings emits non-fatal persistence warnings for the UI status line.
// Sends are non-blocking; an unread warning is dropped, not queued forever.
func (r *Registry) Warnings() <-chan string {
	return r.warnings
}

func (r *Registry) warn(msg string) {
	slog.Warn(msg)
	select {
	case r.warnings <- msg:
	default:
	}
}

// RestoreAll reconstructs one session per persisted transcript, in sequence
// order, and makes the newest one active. With no transcripts on disk it
// creates a single default session.
func (r *Registry) RestoreAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.dir.IDs()
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	for _, id := range ids {
		ts, err := r.dir.Open(id)
		if err != nil {
			r.warn(fmt.Sprintf("Couldn't open transcript for %s: %v", id, err))
			continue
		}
		msgs, err := ts.Load()
		if err != nil {
			r.warn(fmt.Sprintf("Couldn't fully load history for %s: %v", id, err))
		}
		s := &Session{id: id, title: id, messages: msgs, transcript: ts}
		r.sessions[id] = s
		r.order = append(r.order, id)
		if seq, ok := store.ParseID(id); ok && seq >= r.nextSeq {
			r.nextSeq = seq + 1
		}
	}

	if len(r.order) == 0 {
		if _, err := r.createLocked(); err != nil {
			return err
		}
		return nil
	}

	r.activeID = r.order[len(r.order)-1]
	slog.Info("Restored sessions", "count", len(r.order), "active", r.activeID)
	return nil
}

// Create starts a new empty session at the end of the tab order and makes
// it active.
func (r *Registry) Create() (Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.createLocked()
	if err != nil {
		return Tab{}, err
	}
	return Tab{ID: s.id, Title: s.title, Pending: s.pending}, nil
}

func (r *Registry) createLocked() (*Session, error) {
	id := store.FormatID(r.nextSeq)
	ts, err := r.dir.Open(id)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	r.nextSeq++

	s := &Session{id: id, title: id, transcript: ts}
	r.sessions[id] = s
	r.order = append(r.order, id)
	r.activeID = id

	slog.Info("Created session", "id", id)
	return s, nil
}

// appendLocked records m in memory and persists it. Persistence failure is
// a warning: the message stays part of the live conversation.
func (r *Registry) appendLocked(s *Session, m store.Message) {
	if m.TS.IsZero() {
		m.TS = time.Now().UTC()
	}
	s.messages = append(s.messages, m)
	if err := s.transcript.Append(m); err != nil {
		r.warn(fmt.Sprintf("Couldn't save message for %s: %v", s.id, err))
	}
}

// DeleteSession removes the session and its transcript. When the removed
// session was active, the tab to its left becomes active (or the remaining
// first tab). Deleting the last session synthesizes a fresh default so the
// registry is never empty.
func (r *Registry) DeleteSession(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}

	idx := -1
	for i, oid := range r.order {
		if oid == id {
			idx = i
			break
		}
	}
	delete(r.sessions, id)
	r.order = append(r.order[:idx], r.order[idx+1:]...)

	if err := s.transcript.Delete(); err != nil {
		r.warn(fmt.Sprintf("Couldn't delete transcript for %s: %v", id, err))
	}
	slog.Info("Deleted session", "id", id)

	if len(r.order) == 0 {
		_, err := r.createLocked()
		return err
	}

	if r.activeID == id {
		if idx > 0 {
			r.activeID = r.order[idx-1]
		} else {
			r.activeID = r.order[0]
		}
	}
	return nil
}

// SwitchActive focuses the given session.
func (r *Registry) SwitchActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	r.activeID = id
	return nil
}

// Rename sets the session title. Empty-after-trim titles are a silent
// no-op, not an error.
func (r *Registry) Rename(id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.rename(title) {
		slog.Info("Renamed session", "id", id, "title", s.title)
	}
	return nil
}

// ActiveID returns the currently focused session id.
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// Tabs returns the ordered tab list.
func (r *Registry) Tabs() []Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	tabs := make([]Tab, 0, len(r.order))
	for _, id := range r.order {
		s := r.sessions[id]
		tabs = append(tabs, Tab{ID: s.id, Title: s.title, Pending: s.pending})
	}
	return tabs
}

// Snapshot returns a copy of one session's state for rendering.
func (r *Registry) Snapshot(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// BeginRequest runs the synchronous half of a send: it rejects overlapping
// requests, appends the user message, marks the session pending under the
// given request id, and returns the conversation history the model should
// see. The caller performs the remote call off the update loop.
func (r *Registry) BeginRequest(id, requestID, text string) ([]store.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.pending {
		return nil, ErrBusy
	}

	r.appendLocked(s, store.Message{Role: store.RoleUser, Content: text})
	s.pending = true
	s.pendingReq = requestID
	return s.history(), nil
}

// Settle applies a request outcome. A settle for a deleted session is
// discarded harmlessly, as is one whose request id no longer matches the
// session's pending request. Returns whether visible state changed.
func (r *Registry) Settle(res Settle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[res.SessionID]
	if !ok {
		slog.Debug("Discarding settle for deleted session", "id", res.SessionID)
		return false
	}
	if !s.pending || s.pendingReq != res.RequestID {
		slog.Debug("Discarding stale settle", "id", res.SessionID, "request", res.RequestID)
		return false
	}

	if res.Failure != "" {
		r.appendLocked(s, store.Message{
			Role:    store.RoleSystem,
			Content: "**Error:** " + res.Failure,
		})
	} else {
		r.appendLocked(s, store.Message{Role: store.RoleAssistant, Content: res.Reply})
	}

	s.pending = false
	s.pendingReq = ""
	return true
}
