// Package store defines the transcript data model and the persistence
// contracts implemented by the jsonl subpackage.
package store

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Role identifies the sender of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system" // UI notices and recorded failures
)

// Known reports whether r is one of the roles this program writes.
// Unknown roles are tolerated on load and rendered as system text.
func (r Role) Known() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one immutable transcript record. The field set is closed:
// every line in a transcript file is exactly this shape.
type Message struct {
	TS      time.Time `json:"ts"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
}

var idPattern = regexp.MustCompile(`^chat_(\d{3,})$`)

// FormatID renders a sequence number as a session id ("chat_001", ...).
// Numbers past 999 widen naturally.
func FormatID(seq int) string {
	return fmt.Sprintf("chat_%03d", seq)
}

// ParseID extracts the sequence number from a session id.
func ParseID(id string) (int, bool) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
