package chatlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndOrder(t *testing.T) {
	dir := t.TempDir()
	log := Open(dir, "w1")

	for _, content := range []string{"one", "two", "three"} {
		if _, err := log.Append("user", content, nil); err != nil {
			t.Fatalf("Append(%q): %v", content, err)
		}
	}

	msgs, err := log.GetMessages(0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	want := []string{"one", "two", "three"}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("message[%d].Content = %q, want %q", i, m.Content, want[i])
		}
		if m.MessageType != TypeText {
			t.Errorf("message[%d].MessageType = %q, want %q", i, m.MessageType, TypeText)
		}
	}
}

func TestGetMessagesLimitKeepsMostRecent(t *testing.T) {
	log := Open(t.TempDir(), "w1")
	for _, content := range []string{"a", "b", "c", "d"} {
		if _, err := log.Append("user", content, nil); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := log.GetMessages(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "c" || msgs[1].Content != "d" {
		t.Errorf("limit=2 returned %+v, want the two most recent", msgs)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	log := Open(dir, "w1")
	if _, err := log.Append("user", "hello", nil); err != nil {
		t.Fatal(err)
	}

	reopened := Open(dir, "w1")
	msgs, err := reopened.GetMessages(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatalf("reopened log = %+v, want the appended message", msgs)
	}

	// no stray temp files after atomic save
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != "chat_history.json" {
			t.Errorf("unexpected file in log dir: %s", e.Name())
		}
	}
}

func TestLegacyIntIDsTolerated(t *testing.T) {
	dir := t.TempDir()
	legacy := `{
		"work_id": "w1",
		"session_id": "s1",
		"messages": [
			{"id": 7, "role": "user", "content": "old", "timestamp": "2024-01-01T00:00:00Z", "message_type": "text"}
		],
		"context": {},
		"created_at": "2024-01-01T00:00:00Z",
		"version": "1.0"
	}`
	if err := os.WriteFile(filepath.Join(dir, "chat_history.json"), []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	log := Open(dir, "w1")
	msgs, err := log.GetMessages(0)
	if err != nil {
		t.Fatalf("GetMessages on legacy file: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].ID) != "7" {
		t.Fatalf("legacy id = %+v, want decimal string \"7\"", msgs)
	}

	// appends after migration get uuid ids and sort after the legacy entry
	if _, err := log.Append("assistant", "new", nil); err != nil {
		t.Fatal(err)
	}
	msgs, err = log.GetMessages(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].Content != "new" {
		t.Fatalf("messages after append = %+v", msgs)
	}
}

func TestAppendCardAndAddCard(t *testing.T) {
	log := Open(t.TempDir(), "w1")

	id, err := log.AppendCard("assistant", "body", []Card{{Type: "tool_call", Data: map[string]interface{}{"name": "tree"}}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.AddCardToMessage(id, Card{Type: "tool_result", Data: "ok"}); err != nil {
		t.Fatalf("AddCardToMessage: %v", err)
	}

	msgs, err := log.GetMessages(0)
	if err != nil {
		t.Fatal(err)
	}
	m := msgs[0]
	if m.MessageType != TypeJSONCard {
		t.Errorf("MessageType = %q, want %q", m.MessageType, TypeJSONCard)
	}
	if len(m.JSONBlocks) != 2 || m.JSONBlocks[0].Type != "tool_call" || m.JSONBlocks[1].Type != "tool_result" {
		t.Errorf("JSONBlocks = %+v, want tool_call then tool_result", m.JSONBlocks)
	}

	if err := log.AddCardToMessage("missing", Card{Type: "x"}); err == nil {
		t.Error("AddCardToMessage on unknown id should fail")
	}
}

func TestUpdateContextShallowMerge(t *testing.T) {
	log := Open(t.TempDir(), "w1")
	if err := log.UpdateContext(map[string]interface{}{"a": "1", "b": "2"}); err != nil {
		t.Fatal(err)
	}
	if err := log.UpdateContext(map[string]interface{}{"b": "3"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(log.path)
	if err != nil {
		t.Fatal(err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Context["a"] != "1" || rec.Context["b"] != "3" {
		t.Errorf("context = %v, want a=1 b=3", rec.Context)
	}
	if rec.Version != CurrentVersion {
		t.Errorf("version = %q, want %q", rec.Version, CurrentVersion)
	}
}

func TestClear(t *testing.T) {
	log := Open(t.TempDir(), "w1")
	if _, err := log.Append("user", "hello", nil); err != nil {
		t.Fatal(err)
	}
	if err := log.Clear(); err != nil {
		t.Fatal(err)
	}
	msgs, err := log.GetMessages(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("after Clear got %d messages, want 0", len(msgs))
	}
}

func TestGetForFrontendAvatars(t *testing.T) {
	log := Open(t.TempDir(), "w1")
	log.Append("user", "q", nil)
	log.Append("assistant", "a", nil)
	log.Append("system", "s", map[string]interface{}{"system_type": "compression"})

	msgs, err := log.GetForFrontend(0)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Avatar != "user" || msgs[1].Avatar != "assistant" {
		t.Errorf("avatars = %q, %q", msgs[0].Avatar, msgs[1].Avatar)
	}
	if msgs[2].SystemType != "compression" {
		t.Errorf("system_type = %q, want compression", msgs[2].SystemType)
	}
}
