// Package tasks supervises one active task per work: status transitions,
// a bounded replay buffer, and cancellation.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Output kinds buffered for replay.
const (
	OutputContent   = "content"
	OutputJSONBlock = "json_block"
)

// maxBufferedOutputs bounds the replay buffer; one normal assistant turn
// fits comfortably. Overflow drops the oldest entries.
const maxBufferedOutputs = 4096

// Output is one buffered emission.
type Output struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Transport receives live and replayed task output. Implementations must
// not block; a dead client degrades to buffering only.
type Transport interface {
	SendContent(text string)
	SendBlock(typ string, data interface{})
}

// Task is the per-work execution record. It implements stream.Emitter:
// every emission is appended to the replay buffer and forwarded to the
// attached transport under the same lock, keeping replay order exact.
type Task struct {
	ID       string
	WorkID   string
	UserID   string
	Question string

	mu        sync.Mutex
	status    string
	err       string
	startedAt time.Time
	endedAt   time.Time
	outputs   []Output
	dropped   int
	transport Transport
	cancel    context.CancelFunc
}

func newTask(workID, userID, question string) *Task {
	return &Task{
		ID:       uuid.NewString(),
		WorkID:   workID,
		UserID:   userID,
		Question: question,
		status:   StatusPending,
	}
}

func (t *Task) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) Terminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return isTerminal(t.status)
}

func isTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Start moves pending to running and derives the run context carrying
// cancellation and the wall-clock cap.
func (t *Task) Start(parent context.Context, timeout time.Duration) (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return nil, fmt.Errorf("task %s: cannot start from %s", t.ID, t.status)
	}
	t.status = StatusRunning
	t.startedAt = time.Now()

	ctx, cancel := context.WithTimeout(parent, timeout)
	t.cancel = cancel
	return ctx, nil
}

// Complete marks a clean finish.
func (t *Task) Complete() {
	t.finish(StatusCompleted, "")
}

// Fail records a terminal error.
func (t *Task) Fail(errMsg string) {
	t.finish(StatusFailed, errMsg)
}

// Cancel signals the running loop and marks the task cancelled. Legal
// from pending and running only.
func (t *Task) Cancel() {
	t.mu.Lock()
	if isTerminal(t.status) {
		t.mu.Unlock()
		return
	}
	t.status = StatusCancelled
	t.endedAt = time.Now()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Task) finish(status, errMsg string) {
	t.mu.Lock()
	if isTerminal(t.status) {
		t.mu.Unlock()
		return
	}
	t.status = status
	t.err = errMsg
	t.endedAt = time.Now()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Task) Error() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) EndedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endedAt
}

// EmitContent buffers a content token and forwards it live.
func (t *Task) EmitContent(text string) {
	t.emit(Output{Type: OutputContent, Data: text, Timestamp: time.Now()})
}

// EmitBlock buffers a structured card and forwards it live.
func (t *Task) EmitBlock(typ string, data interface{}) {
	t.emit(Output{
		Type:      OutputJSONBlock,
		Data:      map[string]interface{}{"type": typ, "data": data},
		Timestamp: time.Now(),
	})
}

func (t *Task) emit(out Output) {
	t.mu.Lock()
	t.outputs = append(t.outputs, out)
	if len(t.outputs) > maxBufferedOutputs {
		over := len(t.outputs) - maxBufferedOutputs
		t.outputs = t.outputs[over:]
		t.dropped += over
	}
	tr := t.transport
	t.mu.Unlock()

	if tr != nil {
		deliver(tr, out)
	}
}

func deliver(tr Transport, out Output) {
	switch out.Type {
	case OutputContent:
		if s, ok := out.Data.(string); ok {
			tr.SendContent(s)
		}
	case OutputJSONBlock:
		if m, ok := out.Data.(map[string]interface{}); ok {
			typ, _ := m["type"].(string)
			tr.SendBlock(typ, m["data"])
		}
	}
}

// Attach replays the buffer to tr in order, then makes it the live
// transport. A previously attached transport is silently replaced; the
// newer connection wins.
func (t *Task) Attach(tr Transport) {
	t.AttachNotify(tr, nil)
}

// AttachNotify is Attach with a marker invoked between the replay and
// go-live, still under the output lock: no live frame can reach tr ahead
// of the marker. The marker must not call back into the task.
func (t *Task) AttachNotify(tr Transport, marker func()) {
	// replay happens under the lock so a concurrent emit cannot slip in
	// between the buffered and live phases; Transport sends are
	// non-blocking by contract
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, out := range t.outputs {
		deliver(tr, out)
	}
	if marker != nil {
		marker()
	}
	t.transport = tr
}

// Detach clears the transport if tr is still the attached one.
func (t *Task) Detach(tr Transport) {
	t.mu.Lock()
	if t.transport == tr {
		t.transport = nil
	}
	t.mu.Unlock()
}
