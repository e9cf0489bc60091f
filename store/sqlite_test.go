package store

import (
	"path/filepath"
	"testing"

	"codexchat/core"
)

func newTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "sessions.db"))

	if n := len(s.Messages("s1")); n != 0 {
		t.Fatalf("expected no messages for fresh session, got %d", n)
	}

	msgs := []core.Message{
		core.NewSystemMessage("You are terse."),
		core.NewUserText("weather in Lyon?"),
		core.NewAssistantToolCalls("", core.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Lyon"}`}),
		core.NewToolResult("c1", `{"temp": 21}`),
		core.NewAssistantMessage("21 degrees."),
	}
	usage := core.Usage{Input: 100, Cached: 10, Output: 50, Total: 150}

	if err := s.Extend("s1", msgs, usage); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}

	got := s.Messages("s1")
	if len(got) != len(msgs) {
		t.Fatalf("expected %d messages, got %d", len(msgs), len(got))
	}

	// tool call fields must survive the JSON round trip
	call := got[2].ToolCalls[0]
	if call.ID != "c1" || call.Name != "get_weather" || call.Arguments != `{"city":"Lyon"}` {
		t.Fatalf("tool call mangled in storage: %+v", call)
	}
	if got[3].ToolCallID != "c1" {
		t.Fatalf("expected tool result keyed by c1, got %q", got[3].ToolCallID)
	}

	u := s.Usage("s1")
	if u != usage {
		t.Fatalf("expected usage %+v, got %+v", usage, u)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	first := newTestStore(t, path)
	msgs := []core.Message{
		core.NewUserText("hello"),
		core.NewAssistantMessage("hi there"),
	}
	if err := first.Extend("s1", msgs, core.Usage{Input: 5, Output: 3, Total: 8}); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	first.Close()

	// a new store instance must see everything the old one wrote
	second := newTestStore(t, path)

	got := second.Messages("s1")
	if len(got) != 2 {
		t.Fatalf("expected 2 messages after reopen, got %d", len(got))
	}
	if text := got[1].Text(); text != "hi there" {
		t.Fatalf("expected assistant text to survive reopen, got %q", text)
	}

	u := second.Usage("s1")
	if u.Total != 8 {
		t.Fatalf("expected total 8 after reopen, got %d", u.Total)
	}
}

func TestSQLiteStoreAccumulatesUsage(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "sessions.db"))

	for i := 0; i < 3; i++ {
		err := s.Extend("s1", []core.Message{core.NewUserText("x")}, core.Usage{Input: 10, Output: 5, Total: 15})
		if err != nil {
			t.Fatalf("Extend failed: %v", err)
		}
	}

	u := s.Usage("s1")
	if u.Input != 30 || u.Output != 15 || u.Total != 45 {
		t.Fatalf("expected accumulated usage 30/15/45, got %+v", u)
	}
}

func TestSQLiteStoreSessionIsolation(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "sessions.db"))

	if err := s.Extend("a", []core.Message{core.NewUserText("for a")}, core.Usage{Input: 1}); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if err := s.Extend("b", []core.Message{core.NewUserText("for b")}, core.Usage{Input: 2}); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}

	if text := s.Messages("a")[0].Text(); text != "for a" {
		t.Fatalf("session a polluted: %q", text)
	}
	if text := s.Messages("b")[0].Text(); text != "for b" {
		t.Fatalf("session b polluted: %q", text)
	}
	if u := s.Usage("b"); u.Input != 2 {
		t.Fatalf("expected session b input 2, got %d", u.Input)
	}
}
