// Package session holds the in-memory state of every open conversation and
// the registry that owns their lifecycle. All mutation goes through the
// Registry so the render loop never sees a torn tab list.
package session

import (
	"strings"

	"github.com/termgpt/termgpt/pkg/store"
)

// Session is one conversation: identity, display title, the ordered message
// list, and the pending flag guarding against overlapping sends. Fields are
// unexported; the Registry mutates them under its lock.
type Session struct {
	id         string
	title      string
	messages   []store.Message
	pending    bool
	pendingReq string
	transcript store.Store
}

// Tab is the ordered tab-bar view of a session.
type Tab struct {
	ID      string
	Title   string
	Pending bool
}

// Snapshot is a render-safe copy of one session's state.
type Snapshot struct {
	ID       string
	Title    string
	Pending  bool
	Messages []store.Message
}

func (s *Session) snapshot() Snapshot {
	msgs := make([]store.Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		ID:       s.id,
		Title:    s.title,
		Pending:  s.pending,
		Messages: msgs,
	}
}

// rename trims the new title and keeps the old one when the result is
// empty. Returns whether anything changed.
func (s *Session) rename(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" || title == s.title {
		return false
	}
	s.title = title
	return true
}

// history returns the messages the model should see, in transcript order.
// System records are UI notices, not conversation context.
func (s *Session) history() []store.Message {
	var msgs []store.Message
	for _, m := range s.messages {
		if m.Role == store.RoleUser || m.Role == store.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	return msgs
}
