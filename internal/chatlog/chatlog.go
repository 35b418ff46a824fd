// Package chatlog persists the per-work conversation as chat_history.json.
package chatlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion of the on-disk format.
const CurrentVersion = "2.0"

// record is the full on-disk shape.
type record struct {
	WorkID    string                 `json:"work_id"`
	SessionID string                 `json:"session_id"`
	Messages  []Message              `json:"messages"`
	Context   map[string]interface{} `json:"context"`
	CreatedAt string                 `json:"created_at"`
	Version   string                 `json:"version"`
}

// Log serializes all access to one work's chat_history.json. Concurrent
// appends for the same work must share the same Log instance.
type Log struct {
	mu     sync.Mutex
	workID string
	path   string

	lastStamp time.Time
}

// Open returns the chat log stored in dir (normally the workspace root).
func Open(dir, workID string) *Log {
	return &Log{
		workID: workID,
		path:   filepath.Join(dir, "chat_history.json"),
	}
}

func (l *Log) load() (*record, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return l.fresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("chatlog: read: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("chatlog: parse %s: %w", l.path, err)
	}
	if rec.Context == nil {
		rec.Context = map[string]interface{}{}
	}
	return &rec, nil
}

func (l *Log) fresh() *record {
	return &record{
		WorkID:    l.workID,
		SessionID: uuid.NewString(),
		Messages:  []Message{},
		Context:   map[string]interface{}{},
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Version:   CurrentVersion,
	}
}

// save writes the record atomically, temp file then rename.
func (l *Log) save(rec *record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("chatlog: marshal: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmpFile, err := os.CreateTemp(dir, "chat-*.tmp")
	if err != nil {
		return fmt.Errorf("chatlog: temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("chatlog: write: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("chatlog: sync: %w", err)
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("chatlog: rename: %w", err)
	}
	cleanup = false
	return nil
}

// stamp returns a strictly increasing RFC3339Nano timestamp so iteration
// by timestamp matches insertion order even within one nanosecond tick.
func (l *Log) stamp() string {
	now := time.Now().UTC()
	if !now.After(l.lastStamp) {
		now = l.lastStamp.Add(time.Nanosecond)
	}
	l.lastStamp = now
	return now.Format(time.RFC3339Nano)
}

// Append adds a text message and returns its id.
func (l *Log) Append(role, content string, metadata map[string]interface{}) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load()
	if err != nil {
		return "", err
	}
	msg := Message{
		ID:          ID(uuid.NewString()),
		Role:        role,
		Content:     content,
		Timestamp:   l.stamp(),
		Metadata:    metadata,
		MessageType: TypeText,
	}
	rec.Messages = append(rec.Messages, msg)
	if err := l.save(rec); err != nil {
		return "", err
	}
	return string(msg.ID), nil
}

// AppendCard adds a json_card message carrying an ordered card list.
func (l *Log) AppendCard(role, content string, cards []Card, metadata map[string]interface{}) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load()
	if err != nil {
		return "", err
	}
	msg := Message{
		ID:          ID(uuid.NewString()),
		Role:        role,
		Content:     content,
		Timestamp:   l.stamp(),
		Metadata:    metadata,
		JSONBlocks:  append([]Card(nil), cards...),
		MessageType: TypeJSONCard,
	}
	rec.Messages = append(rec.Messages, msg)
	if err := l.save(rec); err != nil {
		return "", err
	}
	return string(msg.ID), nil
}

// AddCardToMessage appends one card to an existing message.
func (l *Log) AddCardToMessage(messageID string, card Card) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load()
	if err != nil {
		return err
	}
	for i := range rec.Messages {
		if string(rec.Messages[i].ID) == messageID {
			rec.Messages[i].JSONBlocks = append(rec.Messages[i].JSONBlocks, card)
			rec.Messages[i].MessageType = TypeJSONCard
			return l.save(rec)
		}
	}
	return fmt.Errorf("chatlog: message %s not found", messageID)
}

// GetMessages returns messages sorted by timestamp. A positive limit keeps
// only the most recent limit messages.
func (l *Log) GetMessages(limit int) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load()
	if err != nil {
		return nil, err
	}
	msgs := append([]Message(nil), rec.Messages...)
	sort.SliceStable(msgs, func(i, j int) bool {
		ti, erri := time.Parse(time.RFC3339Nano, msgs[i].Timestamp)
		tj, errj := time.Parse(time.RFC3339Nano, msgs[j].Timestamp)
		if erri != nil || errj != nil {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return ti.Before(tj)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// GetForFrontend returns messages with display hints.
func (l *Log) GetForFrontend(limit int) ([]FrontendMessage, error) {
	msgs, err := l.GetMessages(limit)
	if err != nil {
		return nil, err
	}
	out := make([]FrontendMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toFrontend(m)
	}
	return out, nil
}

// UpdateContext shallow-merges updates into the top-level context object.
func (l *Log) UpdateContext(updates map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load()
	if err != nil {
		return err
	}
	for k, v := range updates {
		rec.Context[k] = v
	}
	return l.save(rec)
}

// Clear resets the log to a fresh empty record.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(l.fresh())
}
