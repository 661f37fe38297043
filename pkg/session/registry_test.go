package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/termgpt/termgpt/pkg/session"
	"github.com/termgpt/termgpt/pkg/store"
	"github.com/termgpt/termgpt/pkg/store/jsonl"
)

func newRegistry(t *testing.T) (*session.Registry, string) {
	t.Helper()
	root := t.TempDir()
	r := session.New(jsonl.New(root))
	if err := r.RestoreAll(); err != nil {
		t.Fatal(err)
	}
	return r, root
}

func tabIDs(r *session.Registry) []string {
	var ids []string
	for _, tab := range r.Tabs() {
		ids = append(ids, tab.ID)
	}
	return ids
}

func TestRestoreAll_CreatesDefaultWhenEmpty(t *testing.T) {
	r, _ := newRegistry(t)

	tabs := r.Tabs()
	if len(tabs) != 1 {
		t.Fatalf("expected 1 default session, got %d", len(tabs))
	}
	if tabs[0].ID != "chat_001" {
		t.Errorf("default session id = %s, want chat_001", tabs[0].ID)
	}
	if r.ActiveID() != "chat_001" {
		t.Errorf("active = %s, want chat_001", r.ActiveID())
	}
}

func TestRestoreAll_PreservesSequenceOrder(t *testing.T) {
	root := t.TempDir()
	dir := jsonl.New(root)
	for _, id := range []string{"chat_002", "chat_005", "chat_001"} {
		s, err := dir.Open(id)
		if err != nil {
			t.Fatal(err)
		}
		s.Append(store.Message{Role: store.RoleUser, Content: "hi from " + id})
		s.Close()
	}

	r := session.New(dir)
	if err := r.RestoreAll(); err != nil {
		t.Fatal(err)
	}

	got := tabIDs(r)
	want := []string{"chat_001", "chat_002", "chat_005"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("restored order %v, want %v", got, want)
		}
	}
	if r.ActiveID() != "chat_005" {
		t.Errorf("active = %s, want newest chat_005", r.ActiveID())
	}

	snap, ok := r.Snapshot("chat_002")
	if !ok {
		t.Fatal("chat_002 not restored")
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "hi from chat_002" {
		t.Errorf("restored messages mismatch: %+v", snap.Messages)
	}

	// New ids continue past the highest restored sequence.
	tab, err := r.Create()
	if err != nil {
		t.Fatal(err)
	}
	if tab.ID != "chat_006" {
		t.Errorf("next id = %s, want chat_006", tab.ID)
	}
}

func TestCreate_AppendsToTabOrderAndActivates(t *testing.T) {
	r, _ := newRegistry(t)

	tab, err := r.Create()
	if err != nil {
		t.Fatal(err)
	}
	if tab.ID != "chat_002" {
		t.Errorf("second session id = %s, want chat_002", tab.ID)
	}
	if r.ActiveID() != "chat_002" {
		t.Errorf("active = %s, want chat_002", r.ActiveID())
	}

	got := tabIDs(r)
	if got[0] != "chat_001" || got[1] != "chat_002" {
		t.Errorf("tab order %v", got)
	}
}

func TestDeleteSession_LeftNeighborBecomesActive(t *testing.T) {
	r, root := newRegistry(t) // chat_001
	r.Create()                // chat_002
	r.Create()                // chat_003

	if err := r.SwitchActive("chat_002"); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteSession("chat_002"); err != nil {
		t.Fatal(err)
	}

	if r.ActiveID() != "chat_001" {
		t.Errorf("active = %s, want left neighbor chat_001", r.ActiveID())
	}
	got := tabIDs(r)
	if len(got) != 2 || got[0] != "chat_001" || got[1] != "chat_003" {
		t.Errorf("tab order after delete: %v", got)
	}
	if _, err := os.Stat(filepath.Join(root, "chat_002.jsonl")); !os.IsNotExist(err) {
		t.Error("chat_002 transcript still on disk")
	}
}

func TestDeleteSession_FirstTabFallsForward(t *testing.T) {
	r, _ := newRegistry(t) // chat_001
	r.Create()             // chat_002
	r.SwitchActive("chat_001")

	if err := r.DeleteSession("chat_001"); err != nil {
		t.Fatal(err)
	}
	if r.ActiveID() != "chat_002" {
		t.Errorf("active = %s, want chat_002", r.ActiveID())
	}
}

func TestDeleteSession_InactiveKeepsActive(t *testing.T) {
	r, _ := newRegistry(t) // chat_001
	r.Create()             // chat_002, active

	if err := r.DeleteSession("chat_001"); err != nil {
		t.Fatal(err)
	}
	if r.ActiveID() != "chat_002" {
		t.Errorf("active = %s, want chat_002", r.ActiveID())
	}
}

func TestDeleteSession_LastSynthesizesDefault(t *testing.T) {
	r, _ := newRegistry(t)

	if err := r.DeleteSession("chat_001"); err != nil {
		t.Fatal(err)
	}

	tabs := r.Tabs()
	if len(tabs) != 1 {
		t.Fatalf("expected exactly 1 session after deleting the last, got %d", len(tabs))
	}
	// Ids are never reused, even after deletion.
	if tabs[0].ID != "chat_002" {
		t.Errorf("synthesized session id = %s, want chat_002", tabs[0].ID)
	}
	if r.ActiveID() != "chat_002" {
		t.Errorf("active = %s, want chat_002", r.ActiveID())
	}
}

func TestDeleteSession_NotFound(t *testing.T) {
	r, _ := newRegistry(t)
	if err := r.DeleteSession("chat_099"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSwitchActive_NotFound(t *testing.T) {
	r, _ := newRegistry(t)
	if err := r.SwitchActive("chat_099"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if r.ActiveID() != "chat_001" {
		t.Errorf("active changed on failed switch: %s", r.ActiveID())
	}
}

func TestRename(t *testing.T) {
	r, _ := newRegistry(t)

	if err := r.Rename("chat_001", "  Project ideas  "); err != nil {
		t.Fatal(err)
	}
	if got := r.Tabs()[0].Title; got != "Project ideas" {
		t.Errorf("title = %q, want trimmed %q", got, "Project ideas")
	}

	// Empty-after-trim keeps the previous title, silently.
	if err := r.Rename("chat_001", "   "); err != nil {
		t.Fatal(err)
	}
	if got := r.Tabs()[0].Title; got != "Project ideas" {
		t.Errorf("title = %q after empty rename, want unchanged", got)
	}

	if err := r.Rename("chat_099", "x"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBeginRequest_RejectsOverlappingSends(t *testing.T) {
	r, _ := newRegistry(t)

	history, err := r.BeginRequest("chat_001", "req-1", "Hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Role != store.RoleUser || history[0].Content != "Hello" {
		t.Fatalf("history = %+v", history)
	}

	if _, err := r.BeginRequest("chat_001", "req-2", "again"); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("second send err = %v, want ErrBusy", err)
	}

	// The rejected send appended nothing.
	snap, _ := r.Snapshot("chat_001")
	if len(snap.Messages) != 1 {
		t.Errorf("messages = %d after rejected send, want 1", len(snap.Messages))
	}
	if !snap.Pending {
		t.Error("pending cleared by rejected send")
	}

	if _, err := r.BeginRequest("chat_099", "req-3", "x"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBeginRequest_HistoryExcludesSystemNotices(t *testing.T) {
	r, _ := newRegistry(t)

	r.BeginRequest("chat_001", "req-1", "Hello")
	r.Settle(session.Settle{SessionID: "chat_001", RequestID: "req-1", Failure: "network unreachable"})

	history, err := r.BeginRequest("chat_001", "req-2", "retrying")
	if err != nil {
		t.Fatal(err)
	}
	// The recorded failure is a system notice, not model context.
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (user turns only)", len(history))
	}
	for _, m := range history {
		if m.Role == store.RoleSystem {
			t.Errorf("system notice leaked into model context: %+v", m)
		}
	}
}

func TestSettle_Success(t *testing.T) {
	r, _ := newRegistry(t)

	r.BeginRequest("chat_001", "req-1", "Hello")
	changed := r.Settle(session.Settle{SessionID: "chat_001", RequestID: "req-1", Reply: "Hi!"})
	if !changed {
		t.Fatal("settle reported no change")
	}

	snap, _ := r.Snapshot("chat_001")
	if snap.Pending {
		t.Error("pending not cleared after settle")
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(snap.Messages))
	}
	if snap.Messages[1].Role != store.RoleAssistant || snap.Messages[1].Content != "Hi!" {
		t.Errorf("reply message = %+v", snap.Messages[1])
	}
}

func TestSettle_FailureRecordsSystemMessage(t *testing.T) {
	r, _ := newRegistry(t)

	r.BeginRequest("chat_001", "req-1", "Hello")
	r.Settle(session.Settle{SessionID: "chat_001", RequestID: "req-1", Failure: "network unreachable"})

	snap, _ := r.Snapshot("chat_001")
	if snap.Pending {
		t.Error("pending not cleared after failed settle")
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("messages = %d, want exactly 2", len(snap.Messages))
	}
	if snap.Messages[0].Role != store.RoleUser || snap.Messages[0].Content != "Hello" {
		t.Errorf("first message = %+v", snap.Messages[0])
	}
	if snap.Messages[1].Role != store.RoleSystem {
		t.Errorf("failure role = %s, want system", snap.Messages[1].Role)
	}
	if want := "**Error:** network unreachable"; snap.Messages[1].Content != want {
		t.Errorf("failure content = %q, want %q", snap.Messages[1].Content, want)
	}
}

func TestSettle_DeletedSessionIsNoOp(t *testing.T) {
	r, _ := newRegistry(t)
	r.Create() // chat_002 so the delete doesn't synthesize a replacement id clash

	r.BeginRequest("chat_001", "req-1", "Hello")
	if err := r.DeleteSession("chat_001"); err != nil {
		t.Fatal(err)
	}

	if r.Settle(session.Settle{SessionID: "chat_001", RequestID: "req-1", Reply: "too late"}) {
		t.Error("settle for a deleted session reported a change")
	}
}

func TestSettle_StaleRequestDiscarded(t *testing.T) {
	r, _ := newRegistry(t)

	r.BeginRequest("chat_001", "req-1", "Hello")
	if r.Settle(session.Settle{SessionID: "chat_001", RequestID: "req-0", Reply: "stale"}) {
		t.Error("stale settle reported a change")
	}

	snap, _ := r.Snapshot("chat_001")
	if !snap.Pending {
		t.Error("stale settle cleared pending")
	}
	if len(snap.Messages) != 1 {
		t.Errorf("stale settle appended a message: %+v", snap.Messages)
	}
}

func TestSettle_PersistsBothSides(t *testing.T) {
	root := t.TempDir()
	dir := jsonl.New(root)
	r := session.New(dir)
	if err := r.RestoreAll(); err != nil {
		t.Fatal(err)
	}

	r.BeginRequest("chat_001", "req-1", "Hello")
	r.Settle(session.Settle{SessionID: "chat_001", RequestID: "req-1", Reply: "Hi!"})

	// A second registry over the same directory sees both turns.
	r2 := session.New(dir)
	if err := r2.RestoreAll(); err != nil {
		t.Fatal(err)
	}
	snap, ok := r2.Snapshot("chat_001")
	if !ok {
		t.Fatal("chat_001 missing on reload")
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("reloaded messages = %d, want 2", len(snap.Messages))
	}
	if snap.Messages[0].Content != "Hello" || snap.Messages[1].Content != "Hi!" {
		t.Errorf("reloaded transcript mismatch: %+v", snap.Messages)
	}
}
